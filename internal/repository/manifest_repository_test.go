package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sefazor/ourphotos-gallery/internal/apperror"
	"github.com/sefazor/ourphotos-gallery/internal/models"
	"github.com/sefazor/ourphotos-gallery/pkg/storage"
)

func newManifest(id string) *models.Manifest {
	return &models.Manifest{
		EventID:   id,
		Title:     "Summer Trip",
		Date:      "2024-07-01",
		Photos:    []models.Photo{},
		CreatedAt: "2024-07-01T10:00:00.000Z",
		UpdatedAt: "2024-07-01T10:00:00.000Z",
	}
}

// racingBucket lets another writer append a photo right before each of the
// next `races` conditional manifest writes.
type racingBucket struct {
	*storage.MemoryStorage
	races int
}

func (b *racingBucket) Put(ctx context.Context, key string, body io.Reader, opts storage.PutOptions) (*storage.ObjectInfo, error) {
	if opts.IfMatch != "" && b.races > 0 {
		b.races--

		obj, err := b.MemoryStorage.Get(ctx, key, storage.GetOptions{})
		if err != nil {
			return nil, err
		}
		var m models.Manifest
		err = json.NewDecoder(obj.Body).Decode(&m)
		obj.Body.Close()
		if err != nil {
			return nil, err
		}

		m.Photos = append(m.Photos, models.Photo{File: fmt.Sprintf("concurrent-%d.jpg", len(m.Photos))})
		raw, _ := json.Marshal(m)
		if _, err := b.MemoryStorage.Put(ctx, key, bytes.NewReader(raw), storage.PutOptions{}); err != nil {
			return nil, err
		}
	}
	return b.MemoryStorage.Put(ctx, key, body, opts)
}

func TestManifestRepository_Keys(t *testing.T) {
	assert.Equal(t, "events/abc/", EventPrefix("abc"))
	assert.Equal(t, "events/abc/manifest.json", ManifestKey("abc"))
	assert.Equal(t, "events/abc/1-ff.jpg", PhotoKey("abc", "1-ff.jpg"))
}

func TestManifestRepository_CreateAndLoad(t *testing.T) {
	ctx := context.Background()
	repo := NewManifestRepository(storage.NewMemoryStorage(), zap.NewNop())

	require.NoError(t, repo.Create(ctx, newManifest("2024-07-01-trip-aaaaaa")))

	m, etag, err := repo.Load(ctx, "2024-07-01-trip-aaaaaa")
	require.NoError(t, err)
	assert.NotEmpty(t, etag)
	assert.Equal(t, "Summer Trip", m.Title)
	assert.Empty(t, m.Photos)
	assert.NotNil(t, m.Photos)

	err = repo.Create(ctx, newManifest("2024-07-01-trip-aaaaaa"))
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))
}

func TestManifestRepository_LoadErrors(t *testing.T) {
	ctx := context.Background()
	bucket := storage.NewMemoryStorage()
	repo := NewManifestRepository(bucket, zap.NewNop())

	_, _, err := repo.Load(ctx, "missing-event")
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	_, err = bucket.Put(ctx, ManifestKey("broken-event"), bytes.NewReader([]byte("{not json")), storage.PutOptions{})
	require.NoError(t, err)

	_, _, err = repo.Load(ctx, "broken-event")
	assert.True(t, apperror.IsKind(err, apperror.KindInternal))

	_, err = repo.LoadRaw(ctx, "broken-event")
	assert.True(t, apperror.IsKind(err, apperror.KindInternal))
}

func TestManifestRepository_LoadRawIsVerbatim(t *testing.T) {
	ctx := context.Background()
	bucket := storage.NewMemoryStorage()
	repo := NewManifestRepository(bucket, zap.NewNop())

	raw := []byte(`{"eventId":"legacy-event","title":"Old","date":"2023-01-01","extra":{"kept":true},"photos":[]}`)
	_, err := bucket.Put(ctx, ManifestKey("legacy-event"), bytes.NewReader(raw), storage.PutOptions{})
	require.NoError(t, err)

	got, err := repo.LoadRaw(ctx, "legacy-event")
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestManifestRepository_SaveStaleEtag(t *testing.T) {
	ctx := context.Background()
	repo := NewManifestRepository(storage.NewMemoryStorage(), zap.NewNop())
	require.NoError(t, repo.Create(ctx, newManifest("stale-event")))

	m, etag, err := repo.Load(ctx, "stale-event")
	require.NoError(t, err)

	m.Note = "first"
	_, err = repo.Save(ctx, "stale-event", m, etag)
	require.NoError(t, err)

	m.Note = "second"
	_, err = repo.Save(ctx, "stale-event", m, etag)
	assert.ErrorIs(t, err, storage.ErrPreconditionFailed)
}

func TestManifestRepository_MutateRetriesOnConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	bucket := &racingBucket{MemoryStorage: storage.NewMemoryStorage()}
	repo := NewManifestRepository(bucket, zap.NewNop())
	require.NoError(t, repo.Create(ctx, newManifest("race-event")))

	conflicts := 0
	repo.OnConflict = func() { conflicts++ }
	bucket.races = 1

	calls := 0
	m, err := repo.Mutate(ctx, "race-event", func(m *models.Manifest) error {
		calls++
		m.Note = "updated"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, conflicts)

	stored, _, err := repo.Load(ctx, "race-event")
	require.NoError(t, err)
	assert.Equal(t, "updated", stored.Note)
	require.Len(t, stored.Photos, 1, "concurrent append must survive")
	assert.Equal(t, "concurrent-0.jpg", stored.Photos[0].File)
	assert.Equal(t, m.Photos, stored.Photos)
}

func TestManifestRepository_MutateGivesUp(t *testing.T) {
	ctx := context.Background()
	bucket := &racingBucket{MemoryStorage: storage.NewMemoryStorage()}
	repo := NewManifestRepository(bucket, zap.NewNop())
	require.NoError(t, repo.Create(ctx, newManifest("busy-event")))
	bucket.races = 100

	calls := 0
	_, err := repo.Mutate(ctx, "busy-event", func(m *models.Manifest) error {
		calls++
		return nil
	})
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))
	assert.Equal(t, maxMutateAttempts, calls)
}

func TestManifestRepository_MutateStopsOnCallbackError(t *testing.T) {
	ctx := context.Background()
	repo := NewManifestRepository(storage.NewMemoryStorage(), zap.NewNop())
	require.NoError(t, repo.Create(ctx, newManifest("cb-event")))

	boom := errors.New("boom")
	_, err := repo.Mutate(ctx, "cb-event", func(m *models.Manifest) error { return boom })
	assert.ErrorIs(t, err, boom)

	_, err = repo.Mutate(ctx, "missing-event", func(m *models.Manifest) error { return nil })
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestManifestRepository_ListManifestKeys(t *testing.T) {
	ctx := context.Background()
	bucket := storage.NewMemoryStorage()
	repo := NewManifestRepository(bucket, zap.NewNop())

	require.NoError(t, repo.Create(ctx, newManifest("event-one")))
	require.NoError(t, repo.Create(ctx, newManifest("event-two")))
	_, err := bucket.Put(ctx, PhotoKey("event-one", "1-aa.jpg"), bytes.NewReader([]byte("img")), storage.PutOptions{})
	require.NoError(t, err)
	_, err = bucket.Put(ctx, "uploads/2024-01-01/1-bb.jpg", bytes.NewReader([]byte("img")), storage.PutOptions{})
	require.NoError(t, err)

	keys, err := repo.ListManifestKeys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ManifestKey("event-one"), ManifestKey("event-two")}, keys)

	objects, err := repo.ListObjects(ctx, "event-one")
	require.NoError(t, err)
	assert.Len(t, objects, 2)
}

func TestManifestRepository_MutateWritesToLoadedKey(t *testing.T) {
	ctx := context.Background()
	bucket := storage.NewMemoryStorage()
	repo := NewManifestRepository(bucket, zap.NewNop())

	id := "2024-07-01-legacy-abcdef"
	raw := []byte(`{"title":"Old","date":"2024-07-01","photos":[]}`)
	_, err := bucket.Put(ctx, ManifestKey(id), bytes.NewReader(raw), storage.PutOptions{})
	require.NoError(t, err)

	m, err := repo.Mutate(ctx, id, func(m *models.Manifest) error {
		m.Title = "New"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, id, m.EventID)
	assert.Equal(t, 1, bucket.Len())

	got, err := repo.LoadRaw(ctx, id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"New","date":"2024-07-01","photos":[]}`, string(got))
}

func TestManifestRepository_MutateKeepsForeignFields(t *testing.T) {
	ctx := context.Background()
	bucket := storage.NewMemoryStorage()
	repo := NewManifestRepository(bucket, zap.NewNop())

	id := "2024-07-01-foreign-abcdef"
	photos := `[{"file":"a.jpg","uploadedAt":"2024-07-01T10:00:00.000Z","width":800}]`
	raw := `{"eventId":"` + id + `","title":"Old","date":"2024-07-01","cover":"a.jpg",` +
		`"photos":` + photos + `,"camera":{"model":"x100"}}`
	_, err := bucket.Put(ctx, ManifestKey(id), bytes.NewReader([]byte(raw)), storage.PutOptions{})
	require.NoError(t, err)

	_, err = repo.Mutate(ctx, id, func(m *models.Manifest) error {
		m.Note = "hello"
		return nil
	})
	require.NoError(t, err)

	got, err := repo.LoadRaw(ctx, id)
	require.NoError(t, err)
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(got, &fields))
	assert.Equal(t, photos, string(fields["photos"]))
	assert.Equal(t, `"a.jpg"`, string(fields["cover"]))
	assert.Equal(t, `{"model":"x100"}`, string(fields["camera"]))
	assert.Equal(t, `"hello"`, string(fields["note"]))

	// Appending keeps the existing entry bytes.
	_, err = repo.Mutate(ctx, id, func(m *models.Manifest) error {
		m.Photos = append(m.Photos, models.Photo{File: "b.jpg", UploadedAt: "2024-07-01T11:00:00.000Z"})
		return nil
	})
	require.NoError(t, err)

	got, err = repo.LoadRaw(ctx, id)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(got, &fields))
	assert.Equal(t,
		`[{"file":"a.jpg","uploadedAt":"2024-07-01T10:00:00.000Z","width":800},`+
			`{"file":"b.jpg","desc":"","uploadedAt":"2024-07-01T11:00:00.000Z"}]`,
		string(fields["photos"]))
}

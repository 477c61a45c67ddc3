package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/sefazor/ourphotos-gallery/internal/apperror"
	"github.com/sefazor/ourphotos-gallery/internal/models"
	"github.com/sefazor/ourphotos-gallery/pkg/storage"
)

const (
	EventsPrefix      = "events/"
	manifestName      = "manifest.json"
	manifestSuffix    = "/" + manifestName
	jsonContentType   = "application/json; charset=utf-8"
	maxListPages      = 200
	maxMutateAttempts = 5
)

// ErrManifestConflict is returned by Mutate when concurrent writers kept
// winning for every attempt.
var ErrManifestConflict = errors.New("manifest changed concurrently")

func EventPrefix(eventID string) string { return EventsPrefix + eventID + "/" }

func ManifestKey(eventID string) string { return EventPrefix(eventID) + manifestName }

func PhotoKey(eventID, file string) string { return EventPrefix(eventID) + file }

type ManifestRepository struct {
	bucket storage.Bucket
	log    *zap.Logger

	// OnConflict is called for every lost optimistic write.
	OnConflict func()
}

func NewManifestRepository(bucket storage.Bucket, log *zap.Logger) *ManifestRepository {
	return &ManifestRepository{bucket: bucket, log: log}
}

// Load returns the manifest and the etag it was read at.
func (r *ManifestRepository) Load(ctx context.Context, eventID string) (*models.Manifest, string, error) {
	sm, etag, err := r.load(ctx, eventID)
	if err != nil {
		return nil, "", err
	}
	return sm.manifest, etag, nil
}

func (r *ManifestRepository) load(ctx context.Context, eventID string) (*storedManifest, string, error) {
	key := ManifestKey(eventID)

	obj, err := r.bucket.Get(ctx, key, storage.GetOptions{})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", apperror.NotFound("Not found")
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read manifest %s: %w", key, err)
	}
	defer obj.Body.Close()

	raw, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read manifest body %s: %w", key, err)
	}

	sm, err := decodeStored(raw)
	if err != nil {
		return nil, "", apperror.Internal("Invalid manifest", err)
	}
	// The key is authoritative for the id.
	if sm.manifest.EventID == "" {
		sm.manifest.EventID = eventID
		sm.decoded.EventID = eventID
	}
	return sm, obj.ETag, nil
}

// LoadRaw returns the stored manifest bytes after checking they parse.
func (r *ManifestRepository) LoadRaw(ctx context.Context, eventID string) ([]byte, error) {
	obj, err := r.bucket.Get(ctx, ManifestKey(eventID), storage.GetOptions{})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperror.NotFound("Not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	defer obj.Body.Close()

	raw, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest body: %w", err)
	}
	if _, err := decodeManifest(raw); err != nil {
		return nil, apperror.Internal("Invalid manifest", err)
	}
	return raw, nil
}

// Create writes a new manifest. The Head check gives a clean Conflict for
// the common case; IfNoneMatch closes the race with a concurrent creator.
func (r *ManifestRepository) Create(ctx context.Context, m *models.Manifest) error {
	key := ManifestKey(m.EventID)

	_, err := r.bucket.Head(ctx, key)
	if err == nil {
		return apperror.Conflict("Event already exists")
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to check manifest %s: %w", key, err)
	}

	raw, err := encodeManifest(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if _, err := r.put(ctx, key, raw, storage.PutOptions{IfNoneMatch: "*"}); err != nil {
		if errors.Is(err, storage.ErrPreconditionFailed) {
			return apperror.Conflict("Event already exists")
		}
		return err
	}

	r.log.Info("manifest created", zap.String("event_id", m.EventID))
	return nil
}

// Save overwrites the manifest of eventID only if it is still at etag.
func (r *ManifestRepository) Save(ctx context.Context, eventID string, m *models.Manifest, etag string) (string, error) {
	raw, err := encodeManifest(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	return r.put(ctx, ManifestKey(eventID), raw, storage.PutOptions{IfMatch: etag})
}

// Mutate runs a read-modify-write cycle guarded by the manifest etag and
// retries when another writer got there first. fn may be called more than
// once and must only touch the manifest it is given. Fields and photo
// entries fn leaves alone are written back exactly as they were stored.
func (r *ManifestRepository) Mutate(ctx context.Context, eventID string, fn func(m *models.Manifest) error) (*models.Manifest, error) {
	for attempt := 1; attempt <= maxMutateAttempts; attempt++ {
		sm, etag, err := r.load(ctx, eventID)
		if err != nil {
			return nil, err
		}

		if err := fn(sm.manifest); err != nil {
			return nil, err
		}

		raw, err := sm.encode()
		if err != nil {
			return nil, fmt.Errorf("failed to encode manifest: %w", err)
		}

		_, err = r.put(ctx, ManifestKey(eventID), raw, storage.PutOptions{IfMatch: etag})
		if err == nil {
			return sm.manifest, nil
		}
		if !errors.Is(err, storage.ErrPreconditionFailed) {
			return nil, err
		}

		r.log.Warn("manifest write lost to a concurrent update, retrying",
			zap.String("event_id", eventID), zap.Int("attempt", attempt))
		if r.OnConflict != nil {
			r.OnConflict()
		}
	}

	return nil, apperror.Conflict(ErrManifestConflict.Error())
}

// ListManifestKeys returns every manifest key under events/.
func (r *ManifestRepository) ListManifestKeys(ctx context.Context) ([]string, error) {
	objects, err := storage.ListAll(ctx, r.bucket, EventsPrefix, maxListPages)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, o := range objects {
		if strings.HasSuffix(o.Key, manifestSuffix) {
			keys = append(keys, o.Key)
		}
	}
	return keys, nil
}

// LoadKey reads a manifest by its full key, as listed by ListManifestKeys.
func (r *ManifestRepository) LoadKey(ctx context.Context, key string) (*models.Manifest, error) {
	obj, err := r.bucket.Get(ctx, key, storage.GetOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Body.Close()

	raw, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, err
	}
	return decodeManifest(raw)
}

// ListObjects returns every object under the event prefix, manifest included.
func (r *ManifestRepository) ListObjects(ctx context.Context, eventID string) ([]storage.ObjectInfo, error) {
	return storage.ListAll(ctx, r.bucket, EventPrefix(eventID), maxListPages)
}

func (r *ManifestRepository) DeleteKeys(ctx context.Context, keys []string) (int, error) {
	return storage.DeleteAll(ctx, r.bucket, keys)
}

func (r *ManifestRepository) put(ctx context.Context, key string, raw []byte, opts storage.PutOptions) (string, error) {
	opts.ContentType = jsonContentType
	opts.ContentLength = int64(len(raw))

	info, err := r.bucket.Put(ctx, key, bytes.NewReader(raw), opts)
	if err != nil {
		return "", err
	}
	return info.ETag, nil
}

func decodeManifest(raw []byte) (*models.Manifest, error) {
	var m models.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m.Photos == nil {
		m.Photos = []models.Photo{}
	}
	return &m, nil
}

func encodeManifest(m *models.Manifest) ([]byte, error) {
	return marshalValue(m)
}

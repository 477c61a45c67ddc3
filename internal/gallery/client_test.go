package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sefazor/ourphotos-gallery/internal/models"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_Events(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, models.EventsResponse{Events: []models.EventSummary{{EventID: "e1", Title: "One", Count: 2}}})
	})
	mux.HandleFunc("/api/event", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("eventId") != "e1" {
			writeJSON(w, 404, models.ErrorResponse("Not found"))
			return
		}
		writeJSON(w, 200, models.Manifest{EventID: "e1", Photos: []models.Photo{{File: "1-aa.jpg"}}})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	events, err := c.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "One", events[0].Title)

	m, err := c.GetEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "1-aa.jpg", m.Photos[0].File)

	_, err = c.GetEvent(ctx, "e2")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
	assert.Equal(t, "Not found", apiErr.Message)
}

func TestClient_CreateUpdateDelete(t *testing.T) {
	var got []string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/event-create", func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateEventRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got = append(got, "create:"+req.Title+":"+req.Date)
		writeJSON(w, 200, models.CreateEventResponse{OK: true, EventID: "2024-07-01-trip-abcdef"})
	})
	mux.HandleFunc("/api/event-update", func(w http.ResponseWriter, r *http.Request) {
		var req models.UpdateEventRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got = append(got, "update:"+req.EventID+":"+req.Title)
		writeJSON(w, 200, models.SuccessResponse())
	})
	mux.HandleFunc("/api/event-delete", func(w http.ResponseWriter, r *http.Request) {
		var req models.DeleteEventRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Force)
		got = append(got, "delete:"+req.EventID)
		writeJSON(w, 200, models.DeleteEventResponse{OK: true, Deleted: 3})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	id, err := c.CreateEvent(ctx, models.CreateEventRequest{Title: "Trip", Date: "2024-07-01"})
	require.NoError(t, err)
	assert.Equal(t, "2024-07-01-trip-abcdef", id)

	require.NoError(t, c.UpdateEvent(ctx, models.UpdateEventRequest{EventID: id, Title: "New", Date: "2024-07-01"}))

	n, err := c.DeleteEvent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, []string{
		"create:Trip:2024-07-01",
		"update:2024-07-01-trip-abcdef:New",
		"delete:2024-07-01-trip-abcdef",
	}, got)
}

func TestClient_PlainTextError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
	}))

	_, err := c.ListUploads(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 429, apiErr.Status)
	assert.Equal(t, "Too Many Requests", apiErr.Message)
}

func TestClient_MetaAndImageURL(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/meta", r.URL.Path)
		writeJSON(w, 200, models.MetaResponse{Key: r.URL.Query().Get("key"), Desc: "hello"})
	}))

	desc, err := c.Meta(context.Background(), "uploads/2024-07-01/a b.jpg")
	require.NoError(t, err)
	assert.Equal(t, "hello", desc)

	assert.True(t, strings.HasSuffix(c.ImageURL("events/e1/a b.jpg"), "/api/img?key=events%2Fe1%2Fa+b.jpg"))
}

// uploadRecorder serves the upload endpoints and remembers each request.
type uploadRecorder struct {
	mu       sync.Mutex
	files    []string
	uploadID []string
	failOn   string
}

func (u *uploadRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f, fh, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, 400, models.ErrorResponse("Missing file"))
		return
	}
	defer f.Close()
	body, _ := io.ReadAll(f)

	u.mu.Lock()
	u.files = append(u.files, fh.Filename+"="+string(body)+"|"+fh.Header.Get("Content-Type")+"|"+r.FormValue("desc"))
	u.uploadID = append(u.uploadID, r.FormValue("uploadId"))
	u.mu.Unlock()

	if fh.Filename == u.failOn {
		writeJSON(w, 413, models.ErrorResponse("File too large"))
		return
	}

	switch r.URL.Path {
	case "/api/event-upload":
		eventID := r.FormValue("eventId")
		writeJSON(w, 200, models.EventUploadResponse{OK: true, EventID: eventID, File: fh.Filename, Key: "events/" + eventID + "/" + fh.Filename})
	default:
		writeJSON(w, 200, models.UploadResponse{OK: true, Key: "uploads/2024-07-01/" + fh.Filename})
	}
}

func imageFiles(names ...string) []File {
	out := make([]File, len(names))
	for i, n := range names {
		out[i] = File{Name: n, ContentType: "image/jpeg", Body: strings.NewReader("data-" + n)}
	}
	return out
}

func TestUploader_SequentialEventUpload(t *testing.T) {
	rec := &uploadRecorder{}
	u := NewUploader(newTestClient(t, rec))

	var progress []int
	keys, err := u.UploadBatch(context.Background(), "e1", imageFiles("a.jpg", "b.jpg", "c.jpg"), "  trip ", func(n, total int, name string) {
		assert.Equal(t, 3, total)
		progress = append(progress, n)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"events/e1/a.jpg", "events/e1/b.jpg", "events/e1/c.jpg"}, keys)
	assert.Equal(t, []int{1, 2, 3}, progress)
	assert.Equal(t, "a.jpg=data-a.jpg|image/jpeg|trip", rec.files[0])

	require.Len(t, rec.uploadID, 3)
	assert.Len(t, rec.uploadID[0], 36)
	assert.NotEqual(t, rec.uploadID[0], rec.uploadID[1])
}

func TestUploader_StopsAtFirstFailure(t *testing.T) {
	rec := &uploadRecorder{failOn: "b.jpg"}
	u := NewUploader(newTestClient(t, rec))

	keys, err := u.UploadBatch(context.Background(), "", imageFiles("a.jpg", "b.jpg", "c.jpg"), "", nil)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 1, batchErr.Index)
	assert.Equal(t, "b.jpg", batchErr.File)
	assert.Contains(t, err.Error(), "File too large")
	assert.Contains(t, err.Error(), "file: b.jpg")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 413, apiErr.Status)

	assert.Equal(t, []string{"uploads/2024-07-01/a.jpg"}, keys)
	assert.Len(t, rec.files, 2, "c.jpg is never sent")
}

func TestUploader_Validation(t *testing.T) {
	rec := &uploadRecorder{}
	u := NewUploader(newTestClient(t, rec))
	ctx := context.Background()

	_, err := u.UploadBatch(ctx, "e1", nil, "", nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)

	many := make([]string, MaxBatch+1)
	for i := range many {
		many[i] = "x.jpg"
	}
	_, err = u.UploadBatch(ctx, "e1", imageFiles(many...), "", nil)
	assert.ErrorContains(t, err, "at most 30")

	files := imageFiles("a.jpg", "notes.txt")
	files[1].ContentType = "text/plain"
	_, err = u.UploadBatch(ctx, "e1", files, "", nil)
	assert.ErrorIs(t, err, ErrNotImage)

	assert.Empty(t, rec.files)
}

func TestNewClient_DefaultHasNoTimeout(t *testing.T) {
	c := NewClient("http://localhost:8080/", nil)
	assert.Zero(t, c.http.Timeout)
	assert.Equal(t, "http://localhost:8080/api/img?key=a%2Fb.jpg", c.ImageURL("a/b.jpg"))
}

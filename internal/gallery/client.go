package gallery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/sefazor/ourphotos-gallery/internal/models"
)

// APIError is a non-2xx answer from the gallery API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gallery api: status %d", e.Status)
	}
	return fmt.Sprintf("gallery api: %s (status %d)", e.Message, e.Status)
}

// File is one image to upload.
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient talks to the API at baseURL. A nil httpClient gets one without
// a timeout; callers bound requests through their context.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// ImageURL is the address the image of key is served from.
func (c *Client) ImageURL(key string) string {
	return c.baseURL + "/api/img?key=" + url.QueryEscape(key)
}

func (c *Client) ListEvents(ctx context.Context) ([]models.EventSummary, error) {
	var out models.EventsResponse
	if err := c.get(ctx, "/api/events", nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

func (c *Client) GetEvent(ctx context.Context, eventID string) (*models.Manifest, error) {
	var out models.Manifest
	if err := c.get(ctx, "/api/event", url.Values{"eventId": {eventID}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateEvent(ctx context.Context, req models.CreateEventRequest) (string, error) {
	var out models.CreateEventResponse
	if err := c.postJSON(ctx, "/api/event-create", req, &out); err != nil {
		return "", err
	}
	return out.EventID, nil
}

func (c *Client) UpdateEvent(ctx context.Context, req models.UpdateEventRequest) error {
	return c.postJSON(ctx, "/api/event-update", req, nil)
}

// DeleteEvent removes the event and all its photos.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) (int, error) {
	var out models.DeleteEventResponse
	req := models.DeleteEventRequest{EventID: eventID, Force: true}
	if err := c.postJSON(ctx, "/api/event-delete", req, &out); err != nil {
		return 0, err
	}
	return out.Deleted, nil
}

func (c *Client) SweepEvent(ctx context.Context, eventID string) (int, error) {
	var out models.SweepEventResponse
	if err := c.postJSON(ctx, "/api/event-sweep", models.SweepEventRequest{EventID: eventID}, &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

func (c *Client) UploadEventPhoto(ctx context.Context, eventID string, f File, desc, uploadID string) (*models.EventUploadResponse, error) {
	fields := map[string]string{"eventId": eventID, "desc": desc}
	if uploadID != "" {
		fields["uploadId"] = uploadID
	}

	var out models.EventUploadResponse
	if err := c.postMultipart(ctx, "/api/event-upload", fields, f, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload stores a standalone image and returns its key.
func (c *Client) Upload(ctx context.Context, f File, desc string) (string, error) {
	var out models.UploadResponse
	if err := c.postMultipart(ctx, "/api/upload", map[string]string{"desc": desc}, f, &out); err != nil {
		return "", err
	}
	return out.Key, nil
}

func (c *Client) ListUploads(ctx context.Context) ([]models.Item, error) {
	var out models.ItemsResponse
	if err := c.get(ctx, "/api/list", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Meta returns the description of key. It matches CaptionFetcher.
func (c *Client) Meta(ctx context.Context, key string) (string, error) {
	var out models.MetaResponse
	if err := c.get(ctx, "/api/meta", url.Values{"key": {key}}, &out); err != nil {
		return "", err
	}
	return out.Desc, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) postMultipart(ctx context.Context, path string, fields map[string]string, f File, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}

	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
	h.Set("Content-Type", f.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f.Body); err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	apiErr := &APIError{Status: resp.StatusCode}
	var body models.Response
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

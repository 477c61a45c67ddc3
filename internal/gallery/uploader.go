package gallery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const MaxBatch = 30

var (
	ErrEmptyBatch = errors.New("no files selected")
	ErrNotImage   = errors.New("only image files can be uploaded")
)

// BatchError reports the file that stopped a batch. Files before it were
// uploaded, files after it were not attempted.
type BatchError struct {
	Index int
	File  string
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%v\nfile: %s", e.Err, e.File)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Progress is called before each file with its 1-based position.
type Progress func(n, total int, name string)

type Uploader struct {
	client *Client
	newID  func() string
}

func NewUploader(client *Client) *Uploader {
	return &Uploader{client: client, newID: uuid.NewString}
}

// UploadBatch uploads files one at a time, in order, all with the same
// description. An empty eventID uploads into the standalone uploads area.
// It returns the stored keys of the files that made it.
func (u *Uploader) UploadBatch(ctx context.Context, eventID string, files []File, desc string, progress Progress) ([]string, error) {
	if len(files) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(files) > MaxBatch {
		return nil, fmt.Errorf("at most %d images per batch, got %d", MaxBatch, len(files))
	}
	for _, f := range files {
		if !strings.HasPrefix(f.ContentType, "image/") {
			return nil, fmt.Errorf("%w: %s", ErrNotImage, f.Name)
		}
	}

	desc = strings.TrimSpace(desc)
	keys := make([]string, 0, len(files))
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return keys, &BatchError{Index: i, File: f.Name, Err: err}
		}
		if progress != nil {
			progress(i+1, len(files), f.Name)
		}

		key, err := u.uploadOne(ctx, eventID, f, desc)
		if err != nil {
			return keys, &BatchError{Index: i, File: f.Name, Err: err}
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (u *Uploader) uploadOne(ctx context.Context, eventID string, f File, desc string) (string, error) {
	if eventID == "" {
		return u.client.Upload(ctx, f, desc)
	}

	res, err := u.client.UploadEventPhoto(ctx, eventID, f, desc, u.newID())
	if err != nil {
		return "", err
	}
	return res.Key, nil
}

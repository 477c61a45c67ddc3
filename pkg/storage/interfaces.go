package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// MaxDeleteBatch is the largest number of keys a single Delete call accepts,
// matching the S3/R2 DeleteObjects limit.
const MaxDeleteBatch = 1000

var (
	ErrNotFound           = errors.New("object not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrNotModified        = errors.New("not modified")
)

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Object is an open object body. Callers must close Body.
type Object struct {
	ObjectInfo
	Body io.ReadCloser
}

type GetOptions struct {
	// IfNoneMatch makes Get return ErrNotModified when the stored etag equals it.
	IfNoneMatch string
}

type PutOptions struct {
	ContentType   string
	ContentLength int64
	Metadata      map[string]string
	// IfMatch only writes when the current etag equals it.
	IfMatch string
	// IfNoneMatch set to "*" only writes when the key does not exist yet.
	IfNoneMatch string
}

type ListOptions struct {
	Prefix string
	Cursor string
	Limit  int
}

type ListResult struct {
	Objects   []ObjectInfo
	Truncated bool
	Cursor    string
}

// Bucket is the object store holding manifests and images.
type Bucket interface {
	Get(ctx context.Context, key string, opts GetOptions) (*Object, error)
	Head(ctx context.Context, key string) (*ObjectInfo, error)
	Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (*ObjectInfo, error)
	Delete(ctx context.Context, keys []string) error
	List(ctx context.Context, opts ListOptions) (*ListResult, error)
}

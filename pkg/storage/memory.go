package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	data []byte
	info ObjectInfo
}

// MemoryStorage is a process-local Bucket. It backs tests and the
// STORAGE_DRIVER=memory mode and follows the R2 conditional-write rules.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]*memoryObject
	now     func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		objects: make(map[string]*memoryObject),
		now:     time.Now,
	}
}

// SetClock replaces the time source used for LastModified.
func (s *MemoryStorage) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStorage) Get(ctx context.Context, key string, opts GetOptions) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	if opts.IfNoneMatch != "" && opts.IfNoneMatch == obj.info.ETag {
		return nil, ErrNotModified
	}

	return &Object{
		ObjectInfo: copyInfo(obj.info),
		Body:       io.NopCloser(bytes.NewReader(obj.data)),
	}, nil
}

func (s *MemoryStorage) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	info := copyInfo(obj.info)
	return &info, nil
}

func (s *MemoryStorage) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (*ObjectInfo, error) {
	if key == "" {
		return nil, fmt.Errorf("key cannot be empty")
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.objects[key]
	if opts.IfNoneMatch == "*" && exists {
		return nil, ErrPreconditionFailed
	}
	if opts.IfMatch != "" && (!exists || current.info.ETag != opts.IfMatch) {
		return nil, ErrPreconditionFailed
	}

	sum := md5.Sum(data)
	info := ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         `"` + hex.EncodeToString(sum[:]) + `"`,
		ContentType:  opts.ContentType,
		LastModified: s.now().UTC(),
		Metadata:     copyMetadata(opts.Metadata),
	}
	s.objects[key] = &memoryObject{data: data, info: info}

	out := copyInfo(info)
	return &out, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, keys []string) error {
	if len(keys) > MaxDeleteBatch {
		return fmt.Errorf("delete batch of %d exceeds limit %d", len(keys), MaxDeleteBatch)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.objects, k)
	}
	return nil
}

// List returns keys in lexical order. The cursor is the last key of the
// previous page.
func (s *MemoryStorage) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit <= 0 || limit > ListPageSize {
		limit = ListPageSize
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		if strings.HasPrefix(k, opts.Prefix) && k > opts.Cursor {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	res := &ListResult{}
	if len(keys) > limit {
		keys = keys[:limit]
		res.Truncated = true
		res.Cursor = keys[len(keys)-1]
	}
	for _, k := range keys {
		res.Objects = append(res.Objects, copyInfo(s.objects[k].info))
	}
	return res, nil
}

// Len is the number of stored objects.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func copyInfo(in ObjectInfo) ObjectInfo {
	in.Metadata = copyMetadata(in.Metadata)
	return in
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sefazor/ourphotos-gallery/internal/models"
	"github.com/sefazor/ourphotos-gallery/pkg/storage"
)

const (
	UploadsPrefix = "uploads/"
	sidecarSuffix = ".meta.json"
	listLimit     = 1000
	sidecarReads  = 8
)

var imageKey = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|webp|avif)$`)

func SidecarKey(key string) string { return key + sidecarSuffix }

// UploadRepository stores standalone uploads under uploads/ with their
// description in a {key}.meta.json sidecar.
type UploadRepository struct {
	bucket storage.Bucket
	log    *zap.Logger
}

func NewUploadRepository(bucket storage.Bucket, log *zap.Logger) *UploadRepository {
	return &UploadRepository{bucket: bucket, log: log}
}

func (r *UploadRepository) Put(ctx context.Context, key string, body io.Reader, contentType string, size int64) error {
	_, err := r.bucket.Put(ctx, key, body, storage.PutOptions{
		ContentType:   contentType,
		ContentLength: size,
	})
	if err != nil {
		return fmt.Errorf("failed to store upload %s: %w", key, err)
	}
	return nil
}

// PutDesc writes the sidecar. Empty descriptions are not stored.
func (r *UploadRepository) PutDesc(ctx context.Context, key, desc string) error {
	if desc == "" {
		return nil
	}

	raw, err := json.Marshal(models.Sidecar{Desc: desc})
	if err != nil {
		return err
	}

	_, err = r.bucket.Put(ctx, SidecarKey(key), bytes.NewReader(raw), storage.PutOptions{
		ContentType:   jsonContentType,
		ContentLength: int64(len(raw)),
	})
	if err != nil {
		return fmt.Errorf("failed to store description for %s: %w", key, err)
	}
	return nil
}

// Desc returns the stored description, "" when there is none.
func (r *UploadRepository) Desc(ctx context.Context, key string) (string, error) {
	obj, err := r.bucket.Get(ctx, SidecarKey(key), storage.GetOptions{})
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer obj.Body.Close()

	var sc models.Sidecar
	if err := json.NewDecoder(obj.Body).Decode(&sc); err != nil {
		r.log.Warn("ignoring unreadable sidecar", zap.String("key", key), zap.Error(err))
		return "", nil
	}
	return sc.Desc, nil
}

func (r *UploadRepository) Exists(ctx context.Context, key string) (bool, error) {
	_, err := r.bucket.Head(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes an upload and its sidecar.
func (r *UploadRepository) Delete(ctx context.Context, key string) error {
	return r.bucket.Delete(ctx, []string{key, SidecarKey(key)})
}

// List returns image uploads sorted by key, one page of at most 1000
// objects across the whole bucket. Descriptions are read only for keys
// whose sidecar is listed.
func (r *UploadRepository) List(ctx context.Context) ([]models.Item, error) {
	res, err := r.bucket.List(ctx, storage.ListOptions{Limit: listLimit})
	if err != nil {
		return nil, err
	}

	sidecars := make(map[string]bool)
	var keys []string
	for _, o := range res.Objects {
		if imageKey.MatchString(o.Key) {
			keys = append(keys, o.Key)
		} else if len(o.Key) > len(sidecarSuffix) && o.Key[len(o.Key)-len(sidecarSuffix):] == sidecarSuffix {
			sidecars[o.Key] = true
		}
	}
	sort.Strings(keys)

	items := make([]models.Item, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sidecarReads)
	for i, k := range keys {
		items[i].Key = k
		if !sidecars[SidecarKey(k)] {
			continue
		}
		i, k := i, k
		g.Go(func() error {
			desc, err := r.Desc(gctx, k)
			if err != nil {
				return err
			}
			items[i].Desc = desc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if res.Truncated {
		r.log.Debug("upload listing truncated", zap.Int("limit", listLimit))
	}
	return items, nil
}

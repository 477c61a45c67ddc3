package storage

import (
	"context"
	"fmt"
)

const ListPageSize = 1000

// ListAll walks the cursor protocol under prefix and returns every object,
// stopping after maxPages pages even if the listing is still truncated.
func ListAll(ctx context.Context, b Bucket, prefix string, maxPages int) ([]ObjectInfo, error) {
	var (
		objects []ObjectInfo
		cursor  string
	)

	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := b.List(ctx, ListOptions{Prefix: prefix, Cursor: cursor, Limit: ListPageSize})
		if err != nil {
			return nil, fmt.Errorf("list %q page %d: %w", prefix, page, err)
		}
		objects = append(objects, res.Objects...)

		if !res.Truncated || res.Cursor == "" {
			break
		}
		cursor = res.Cursor
	}

	return objects, nil
}

// Keys projects objects to their keys.
func Keys(objects []ObjectInfo) []string {
	keys := make([]string, 0, len(objects))
	for _, o := range objects {
		keys = append(keys, o.Key)
	}
	return keys
}

// DeleteAll removes keys in batches of MaxDeleteBatch and returns how many
// keys were submitted.
func DeleteAll(ctx context.Context, b Bucket, keys []string) (int, error) {
	deleted := 0
	for i := 0; i < len(keys); i += MaxDeleteBatch {
		end := i + MaxDeleteBatch
		if end > len(keys) {
			end = len(keys)
		}
		if err := b.Delete(ctx, keys[i:end]); err != nil {
			return deleted, fmt.Errorf("delete batch at %d: %w", i, err)
		}
		deleted += end - i
	}
	return deleted, nil
}

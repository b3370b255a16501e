// Package storage is the blob layer for dashboards, sidecars, traces and
// pending run state. Keys are slash separated and relative, for example
// dashboards/acme/pending_approval/due_diligence_run_x_20240101_120000.md.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"
)

var ErrNotFound = errors.New("object not found")

type Object struct {
	Key      string
	Size     int64
	Modified time.Time
}

type Store interface {
	Name() string
	Put(ctx context.Context, key string, content []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]Object, error)
	Delete(ctx context.Context, key string) error
	// URI is a human readable location for key.
	URI(key string) string
}

// CleanKey normalizes a key and rejects keys that escape the store root.
func CleanKey(key string) (string, error) {
	k := strings.TrimSpace(key)
	if k == "" {
		return "", fmt.Errorf("key is required")
	}
	k = path.Clean("/" + strings.ReplaceAll(k, "\\", "/"))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." {
		return "", fmt.Errorf("invalid key %q", key)
	}
	for _, part := range strings.Split(strings.TrimSpace(key), "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid key %q", key)
		}
	}
	return k, nil
}

// Latest returns the most recently modified object under prefix whose key
// ends with suffix. Ties are broken by key, which embeds a timestamp.
func Latest(ctx context.Context, s Store, prefix, suffix string) (Object, error) {
	objs, err := s.List(ctx, prefix)
	if err != nil {
		return Object{}, err
	}
	var matched []Object
	for _, o := range objs {
		if strings.HasSuffix(o.Key, suffix) {
			matched = append(matched, o)
		}
	}
	if len(matched) == 0 {
		return Object{}, ErrNotFound
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Modified.Equal(matched[j].Modified) {
			return matched[i].Modified.After(matched[j].Modified)
		}
		return matched[i].Key > matched[j].Key
	})
	return matched[0], nil
}

// Move copies src to dst and deletes src.
func Move(ctx context.Context, s Store, src, dst, contentType string) error {
	data, err := s.Get(ctx, src)
	if err != nil {
		return err
	}
	if err := s.Put(ctx, dst, data, contentType); err != nil {
		return err
	}
	return s.Delete(ctx, src)
}

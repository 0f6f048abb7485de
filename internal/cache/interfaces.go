package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache stores opaque values with a TTL. Item detail lookups against the
// marketplaces go through it so repeated syncs do not refetch them.
type Cache interface {
	// Get retrieves a value by key. Returns ErrCacheMiss if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// Close releases background resources.
	Close() error
}

// CacheError is a sentinel cache error.
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"
)

// Fetch returns the JSON value cached under key, or calls fn and caches its result.
// Cache failures fall through to fn.
func Fetch[T any](ctx context.Context, c Cache, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	if raw, err := c.Get(ctx, key); err == nil {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
	}

	v, err := fn()
	if err != nil {
		return v, err
	}
	if raw, err := json.Marshal(v); err == nil {
		_ = c.Set(ctx, key, raw, ttl)
	}
	return v, nil
}

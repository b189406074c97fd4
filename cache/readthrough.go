package cache

import (
	"context"
	"time"
)

// FetchFunc loads a value on a cache miss. A nil value means "absent".
type FetchFunc func(ctx context.Context) ([]byte, error)

// ReadThrough returns the cached value for key or loads it with fetch.
//
// Errors and absent (nil) values are not cached, so a record created later
// is found on the next call. An invalid key bypasses the cache.
func ReadThrough(ctx context.Context, c Cache, key string, ttl time.Duration, fetch FetchFunc) ([]byte, error) {
	if c == nil {
		return nil, ErrNilCache
	}
	if ValidateKey(key) != nil {
		return fetch(ctx)
	}
	if cached, ok := c.Get(ctx, key); ok {
		return cached, nil
	}

	value, err := fetch(ctx)
	if err != nil || value == nil {
		return value, err
	}
	_ = c.Set(ctx, key, value, ttl)
	return value, nil
}

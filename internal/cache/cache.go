package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Cache stores lookup tables (companies, cost center codes) between runs.
// Backends: memory (single run), the sqlite ledger (db.KVStore) and redis.
type Cache interface {
	// Get returns ErrCacheMiss when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value; ttl <= 0 keeps it forever.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)

	// GetOrSet returns the cached value or stores the result of fn.
	GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error)

	Clear(ctx context.Context) error
}

type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	ErrCacheMiss CacheError = "cache miss"
)

// GetJSON decodes a cached value into v. ok is false on a miss.
func GetJSON(ctx context.Context, c Cache, key string, v any) (bool, error) {
	if c == nil {
		return false, nil
	}
	raw, err := c.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, err
	}
	return true, nil
}

func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, raw, ttl)
}

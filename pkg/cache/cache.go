package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/txgnn-explorer/backend/pkg/logger"
)

// Cache stores serialized query responses.
type Cache interface {
	// Get returns the stored value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value for ttl. A ttl <= 0 keeps the value until evicted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Key joins parts into a cache key.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Remember returns the cached JSON value of key, or computes it with fn and
// stores the result. Cache failures are logged and never fail the call.
func Remember[T any](ctx context.Context, c Cache, key string, ttl time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if c == nil {
		return fn(ctx)
	}

	if raw, ok, err := c.Get(ctx, key); err != nil {
		logger.Warn("Cache read failed", "key", key, "error", err)
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		logger.Warn("Discarding undecodable cache entry", "key", key)
	}

	v, err := fn(ctx)
	if err != nil {
		return v, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		logger.Warn("Cache encode failed", "key", key, "error", err)
		return v, nil
	}
	if err := c.Set(ctx, key, raw, ttl); err != nil {
		logger.Warn("Cache write failed", "key", key, "error", err)
	}
	return v, nil
}

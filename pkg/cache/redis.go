package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisCache shares cached responses between server replicas.
type RedisCache struct {
	rdb    *goredis.Client
	prefix string
}

// NewRedisCache connects to the redis:// URL and pings the server.
func NewRedisCache(ctx context.Context, url, prefix string) (*RedisCache, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second

	rdb := goredis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisCacheWithClient(rdb, prefix), nil
}

// NewRedisCacheWithClient wraps rdb. Keys are stored as "<prefix>:<key>"; a
// trailing colon on prefix is dropped.
func NewRedisCacheWithClient(rdb *goredis.Client, prefix string) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: strings.TrimRight(prefix, ":")}
}

func (c *RedisCache) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return c.rdb.Set(ctx, c.key(key), value, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

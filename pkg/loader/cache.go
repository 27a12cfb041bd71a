package loader

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// CachedReader keeps whole-file reads in memory. It is meant for the small
// JSON lookup files the frontend requests on every page load.
type CachedReader struct {
	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

func NewCachedReader() *CachedReader {
	return &CachedReader{
		cache: make(map[string][]byte),
	}
}

// ReadAll returns the cached content of file, reading it at most once even
// under concurrent callers.
func (c *CachedReader) ReadAll(ctx context.Context, file DataFile) ([]byte, error) {
	key := CacheKey(file)

	c.cacheMu.RLock()
	if cached, ok := c.cache[key]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	result, err, _ := c.group.Do(key, func() (any, error) {
		c.cacheMu.RLock()
		if cached, ok := c.cache[key]; ok {
			c.cacheMu.RUnlock()
			return cached, nil
		}
		c.cacheMu.RUnlock()

		content, err := file.ReadAll(ctx)
		if err != nil {
			return nil, err
		}

		c.cacheMu.Lock()
		c.cache[key] = content
		c.cacheMu.Unlock()

		return content, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}

// Forget drops a cached entry.
func (c *CachedReader) Forget(file DataFile) {
	c.cacheMu.Lock()
	delete(c.cache, CacheKey(file))
	c.cacheMu.Unlock()
}

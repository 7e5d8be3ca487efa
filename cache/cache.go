package cache

import (
	"sync"
)

// Cache is a simple overwrite-only key/value store for serialized values.
// There is no expiry; entries are invalidated by being overwritten.
type Cache interface {
	Put(key string, value []byte) error
	Get(key string) ([]byte, bool)
}

// MemoryCache is an in-process Cache. Writes are plain key overwrites, the
// last writer wins; stale reads are acceptable until the next overwrite.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string][]byte),
	}
}

func (c *MemoryCache) Put(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.entries[key]
	return value, ok
}

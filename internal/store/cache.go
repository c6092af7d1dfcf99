package store

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of decoded objects kept in memory by LocalStore.
const DefaultCacheSize = 128

// Cache provides in-memory caching for decoded objects.
type Cache interface {
	Get(key string) ([]byte, bool)
	Add(key string, value []byte)
	Remove(key string)
	Clear()
}

// LRUCache is a size-bounded least-recently-used Cache.
type LRUCache struct {
	items *lru.Cache[string, []byte]
}

// NewLRUCache creates a new LRU cache holding at most maxSize entries.
func NewLRUCache(maxSize int) (*LRUCache, error) {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	items, err := lru.New[string, []byte](maxSize)
	if err != nil {
		return nil, err
	}
	return &LRUCache{items: items}, nil
}

// Get retrieves a value from the cache.
func (c *LRUCache) Get(key string) ([]byte, bool) {
	return c.items.Get(key)
}

// Add adds a value to the cache, evicting the least recently used entry when full.
func (c *LRUCache) Add(key string, value []byte) {
	c.items.Add(key, value)
}

// Remove removes a key from the cache.
func (c *LRUCache) Remove(key string) {
	c.items.Remove(key)
}

// Clear clears the cache.
func (c *LRUCache) Clear() {
	c.items.Purge()
}

package classify

import (
	"strings"
	"sync"
)

// CacheEntry is the advisory value stored per context fingerprint. A hit never
// bypasses the routing threshold; it only saves an external call.
type CacheEntry struct {
	Category    string
	SubCategory string
	Confidence  float64
	ContextLen  int
}

// Cache is the injectable key-value store behind the classifier. Tests swap in
// a deterministic fake; production uses the in-memory implementation below.
type Cache interface {
	Get(key string) (CacheEntry, bool)
	Put(key string, entry CacheEntry)
}

// MemoryCache is a mutex-guarded map cache scoped to one classifier instance.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]CacheEntry)}
}

func (c *MemoryCache) Get(key string) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry, ok
}

func (c *MemoryCache) Put(key string, entry CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
}

// CacheKey normalizes a context string into the cache key: lower-cased,
// whitespace collapsed, digits dropped so amounts do not fragment the key
// space.
func CacheKey(context string) string {
	var builder strings.Builder
	for _, r := range strings.ToLower(context) {
		switch {
		case r >= 'a' && r <= 'z':
			builder.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n':
			builder.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(builder.String()), " ")
}

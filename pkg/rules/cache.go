package rules

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is the rule/evidence cache contract. The default implementation is
// TTL-based; tests may inject a fake to make expiry deterministic.
type Cache interface {
	// Get retrieves a cached value.
	Get(key string) (any, bool)

	// Set stores a value under the cache's TTL.
	Set(key string, value any)

	// Flush drops every entry. Called on any successful write; whole-cache
	// invalidation trades efficiency for correctness simplicity.
	Flush()
}

// TTLCache implements Cache on top of go-cache with a fixed TTL.
type TTLCache struct {
	cache *gocache.Cache
}

// NewTTLCache creates a TTL cache. Entries expire after ttl; the janitor
// sweeps expired entries every cleanupInterval.
func NewTTLCache(ttl, cleanupInterval time.Duration) *TTLCache {
	return &TTLCache{cache: gocache.New(ttl, cleanupInterval)}
}

// Get retrieves a cached value.
func (c *TTLCache) Get(key string) (any, bool) {
	return c.cache.Get(key)
}

// Set stores a value under the default TTL.
func (c *TTLCache) Set(key string, value any) {
	c.cache.SetDefault(key, value)
}

// Flush drops every entry.
func (c *TTLCache) Flush() {
	c.cache.Flush()
}

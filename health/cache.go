package health

import (
	"sync"
	"time"
)

// resultCache stores the most recent result per check name. An entry is
// valid while now - timestamp < ttl.
type resultCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	result    Result
	timestamp time.Time
	ttl       time.Duration
}

func newResultCache() *resultCache {
	return &resultCache{entries: make(map[string]cacheEntry)}
}

// get returns the cached result for name if it has not expired.
func (c *resultCache) get(name string) (Result, bool) {
	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()

	if !ok {
		return Result{}, false
	}

	if time.Since(entry.timestamp) >= entry.ttl {
		// Expired - clean up lazily
		c.mu.Lock()
		delete(c.entries, name)
		c.mu.Unlock()
		return Result{}, false
	}

	return entry.result, true
}

// set stores a result. TTL<=0 means the result is not cached.
func (c *resultCache) set(name string, result Result, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	c.entries[name] = cacheEntry{
		result:    result,
		timestamp: time.Now(),
		ttl:       ttl,
	}
	c.mu.Unlock()
}

// delete removes the cached result for name. Idempotent.
func (c *resultCache) delete(name string) {
	c.mu.Lock()
	delete(c.entries, name)
	c.mu.Unlock()
}

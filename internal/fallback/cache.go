package fallback

import (
	"sync"
	"time"
)

type cacheEntry struct {
	payload  any
	storedAt time.Time
}

// ResponseCache stores successful tool responses with two horizons: entries
// younger than ttl are fresh and short-circuit execution; entries younger
// than staleTTL may still be served when every live strategy has failed.
type ResponseCache struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry
	ttl      time.Duration
	staleTTL time.Duration
	maxSize  int
}

// NewResponseCache creates a cache. staleTTL shorter than ttl is raised to
// ttl; maxSize <= 0 means unbounded.
func NewResponseCache(ttl, staleTTL time.Duration, maxSize int) *ResponseCache {
	if staleTTL < ttl {
		staleTTL = ttl
	}
	return &ResponseCache{
		entries:  make(map[string]cacheEntry),
		ttl:      ttl,
		staleTTL: staleTTL,
		maxSize:  maxSize,
	}
}

// Put stores a payload under key at the given instant, evicting anything past
// the stale horizon.
func (c *ResponseCache) Put(key string, payload any, now time.Time) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{payload: payload, storedAt: now}
	c.prune(now)
}

// GetFresh returns the payload when the entry is within the fresh TTL.
func (c *ResponseCache) GetFresh(key string, now time.Time) (any, bool) {
	return c.get(key, now, c.ttl)
}

// GetStale returns the payload when the entry is within the stale-tolerance
// window. Callers use this only after live execution has failed.
func (c *ResponseCache) GetStale(key string, now time.Time) (any, bool) {
	return c.get(key, now, c.staleTTL)
}

func (c *ResponseCache) get(key string, now time.Time, horizon time.Duration) (any, bool) {
	if key == "" {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if now.Sub(entry.storedAt) >= horizon {
		return nil, false
	}
	return entry.payload, true
}

// Size returns the current number of entries.
func (c *ResponseCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// prune removes entries past the stale horizon and enforces maxSize by
// evicting the oldest entries. Caller holds the lock.
func (c *ResponseCache) prune(now time.Time) {
	for key, entry := range c.entries {
		if now.Sub(entry.storedAt) >= c.staleTTL {
			delete(c.entries, key)
		}
	}
	if c.maxSize <= 0 {
		return
	}
	for len(c.entries) > c.maxSize {
		var oldestKey string
		var oldestAt time.Time
		first := true
		for k, entry := range c.entries {
			if first || entry.storedAt.Before(oldestAt) {
				oldestKey = k
				oldestAt = entry.storedAt
				first = false
			}
		}
		delete(c.entries, oldestKey)
	}
}

package counter

import (
	"sync"
	"time"
)

// CountCacheTTL bounds how long a cached unread count is trusted before a
// read falls through to a recount.
const CountCacheTTL = 5 * time.Minute

// CountCache is the cache layer in front of the persisted unread count.
// Implementations may be remote; every method can fail, and the service
// degrades to a direct recount when one does.
type CountCache interface {
	Get(inboxID uint) (int64, bool, error)
	Set(inboxID uint, count int64) error
	Invalidate(inboxID uint) error
}

type countEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryCache is the in-process CountCache
type MemoryCache struct {
	mu      sync.Mutex
	entries map[uint]countEntry
	ttl     time.Duration
	clock   func() time.Time
}

// NewMemoryCache creates a MemoryCache with the standard TTL
func NewMemoryCache() *MemoryCache {
	return newMemoryCache(CountCacheTTL, time.Now)
}

func newMemoryCache(ttl time.Duration, clock func() time.Time) *MemoryCache {
	return &MemoryCache{
		entries: make(map[uint]countEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the cached count for an inbox if present and fresh
func (c *MemoryCache) Get(inboxID uint) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[inboxID]
	if !ok {
		return 0, false, nil
	}
	if c.clock().After(entry.expiresAt) {
		delete(c.entries, inboxID)
		return 0, false, nil
	}
	return entry.count, true, nil
}

// Set stores the count for an inbox with a fresh TTL
func (c *MemoryCache) Set(inboxID uint, count int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[inboxID] = countEntry{
		count:     count,
		expiresAt: c.clock().Add(c.ttl),
	}
	return nil
}

// Invalidate drops the entry for an inbox
func (c *MemoryCache) Invalidate(inboxID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, inboxID)
	return nil
}

// Package cache holds the in-process set of fingerprints delivered
// during the current process lifetime. It backstops the persistent
// store: duplicates inside a run are caught without a round-trip, and
// double-sends are prevented even while the store is unreachable.
package cache

import "sync"

// RecentDeliveries is safe for concurrent use. It has no eviction and
// no TTL; its only bound is process lifetime.
type RecentDeliveries struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// New returns an empty cache.
func New() *RecentDeliveries {
	return &RecentDeliveries{seen: make(map[string]struct{})}
}

// Seen reports whether the fingerprint was delivered this process.
func (c *RecentDeliveries) Seen(fingerprint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[fingerprint]
	return ok
}

// Mark records a delivered fingerprint.
func (c *RecentDeliveries) Mark(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[fingerprint] = struct{}{}
}

// Len reports the number of fingerprints delivered so far.
func (c *RecentDeliveries) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

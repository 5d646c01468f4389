// Package bancache holds a fast in-process projection of banned account ids.
//
// The projection is derived state: it is refreshed synchronously after a
// conviction commits (before the caller sees success) and can be dropped
// and rebuilt from the store at any time. False positives cannot occur
// because nothing populates the set speculatively; the only tolerated
// staleness is a reader racing the post-commit Add, bounded by one write
// cycle.
package bancache

import (
	"sync"

	"github.com/gofrs/uuid/v5"
)

// Cache is a concurrency-safe set of banned account ids.
type Cache struct {
	mu  sync.RWMutex
	ids map[uuid.UUID]struct{}
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{ids: make(map[uuid.UUID]struct{})}
}

// Add records account ids as banned.
func (c *Cache) Add(ids ...uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.ids[id] = struct{}{}
	}
}

// Contains reports whether the id is in the banned set.
func (c *Cache) Contains(id uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ids[id]
	return ok
}

// Replace swaps the entire set, for rebuilds from the store.
func (c *Cache) Replace(ids []uuid.UUID) {
	next := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	c.mu.Lock()
	c.ids = next
	c.mu.Unlock()
}

// Len returns the number of cached banned ids.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

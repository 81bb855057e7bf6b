// Package pricecache holds the latest known quote for every tracked symbol.
//
// The table is published copy-on-write: Merge builds a new map and swaps it
// in atomically, so readers never wait on a refresh and never observe a
// partially applied cycle.
package pricecache

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is an immutable view of the cache at one point in time.
type Snapshot struct {
	prices    map[string]float64
	updatedAt time.Time
}

var emptySnapshot = &Snapshot{prices: map[string]float64{}}

// Get returns the price for symbol and whether one has ever been fetched.
func (s *Snapshot) Get(symbol string) (float64, bool) {
	p, ok := s.prices[symbol]
	return p, ok
}

// Len returns the number of symbols with a known price.
func (s *Snapshot) Len() int { return len(s.prices) }

// UpdatedAt returns the time of the merge that produced this snapshot, or
// the zero time for a cache that was never populated.
func (s *Snapshot) UpdatedAt() time.Time { return s.updatedAt }

// Symbols returns the cached symbols in sorted order.
func (s *Snapshot) Symbols() []string {
	out := make([]string, 0, len(s.prices))
	for sym := range s.prices {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Cache is the process-wide symbol to price table. The zero value is not
// usable; call New.
type Cache struct {
	mu      sync.Mutex // serializes writers
	current atomic.Pointer[Snapshot]
	now     func() time.Time
}

// New returns an empty cache.
func New() *Cache {
	c := &Cache{now: time.Now}
	c.current.Store(emptySnapshot)
	return c
}

// Get returns the latest price for symbol.
func (c *Cache) Get(symbol string) (float64, bool) {
	return c.current.Load().Get(symbol)
}

// Snapshot returns the currently published view.
func (c *Cache) Snapshot() *Snapshot {
	return c.current.Load()
}

// Merge publishes updates on top of the current table. Symbols absent from
// updates keep their previous price. An empty update is a no-op.
func (c *Cache) Merge(updates map[string]float64) {
	if len(updates) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.current.Load()
	next := make(map[string]float64, len(old.prices)+len(updates))
	for sym, p := range old.prices {
		next[sym] = p
	}
	for sym, p := range updates {
		next[sym] = p
	}
	c.current.Store(&Snapshot{prices: next, updatedAt: c.now()})
}

package cache

import (
	"context"
	"sync"
	"time"

	"lmp-gridmap/internal/geo"
	"lmp-gridmap/internal/observability"
)

type memoryEntry struct {
	entry
	expiresAt time.Time
}

// Memory is an in-process grid cache with a fixed TTL. A janitor goroutine
// drops expired entries until Close is called.
type Memory struct {
	mu    sync.RWMutex
	store map[string]*memoryEntry
	ttl   time.Duration
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemory returns a cache whose entries live for ttl. ttl <= 0 keeps entries
// until invalidated. cleanupEvery <= 0 disables the janitor.
func NewMemory(ttl, cleanupEvery time.Duration) *Memory {
	c := &Memory{
		store: make(map[string]*memoryEntry),
		ttl:   ttl,
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	if cleanupEvery > 0 {
		go c.cleanup(cleanupEvery)
	}
	return c
}

// Get retrieves a cached grid if available and not expired.
func (c *Memory) Get(_ context.Context, key string) ([]geo.Cell, []geo.Skip, bool, error) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || c.expired(e) {
		observability.ObserveCache("memory", "miss")
		return nil, nil, false, nil
	}
	observability.ObserveCache("memory", "hit")
	return e.Cells, e.Skipped, true, nil
}

// Set stores a grid under key.
func (c *Memory) Set(_ context.Context, key string, cells []geo.Cell, skipped []geo.Skip) error {
	e := &memoryEntry{entry: entry{Cells: cells, Skipped: skipped}}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	c.store[key] = e
	c.mu.Unlock()

	observability.ObserveCache("memory", "set")
	return nil
}

// Invalidate removes key.
func (c *Memory) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.store, key)
	c.mu.Unlock()

	observability.ObserveCache("memory", "del")
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the janitor. It is safe to call more than once.
func (c *Memory) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *Memory) expired(e *memoryEntry) bool {
	return !e.expiresAt.IsZero() && c.now().After(e.expiresAt)
}

// purge removes expired entries.
func (c *Memory) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.store {
		if c.expired(e) {
			delete(c.store, key)
		}
	}
}

func (c *Memory) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.purge()
		case <-c.stop:
			return
		}
	}
}

package dataset

import (
	"log/slog"
	"time"

	"pandapark/internal/cache"
	"pandapark/internal/stats"
)

// Cache memoizes Load per source path. The source is a static snapshot for
// the process lifetime, so correctness never depends on expiry; the bound
// and TTL only keep memory in check, and Invalidate is the explicit hook
// for when an operator swaps the file underneath us.
type Cache struct {
	snapshots *cache.LRU[*stats.Snapshot]
	load      func(path string) (*stats.Snapshot, error)
}

// NewCache creates a dataset cache holding at most maxEntries snapshots
// for at most ttl each.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		snapshots: cache.New[*stats.Snapshot](maxEntries, ttl),
		load:      Load,
	}
}

// Load returns the memoized snapshot for path, loading it on first use.
func (c *Cache) Load(path string) (*stats.Snapshot, error) {
	if snap, ok := c.snapshots.Get(path); ok {
		return snap, nil
	}
	snap, err := c.load(path)
	if err != nil {
		return nil, err
	}
	c.snapshots.Set(path, snap)
	return snap, nil
}

// Invalidate drops the memoized snapshot for path so the next Load rereads
// the source.
func (c *Cache) Invalidate(path string) {
	c.snapshots.Delete(path)
	slog.Info("Dataset cache invalidated", "path", path)
}

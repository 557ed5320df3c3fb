package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sells-group/region-atlas/internal/treemap"
)

// TreeCache is a concurrent-safe LRU cache of region trees with TTL
// expiration, keyed by region key.
type TreeCache struct {
	mu         sync.Mutex
	entries    map[string]*treeCacheEntry
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	hits       atomic.Int64
	misses     atomic.Int64
}

type treeCacheEntry struct {
	tree      *treemap.Node
	createdAt time.Time
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewTreeCache creates a TreeCache. A non-positive maxEntries disables
// caching; a non-positive ttl means entries never expire.
func NewTreeCache(maxEntries int, ttl time.Duration) *TreeCache {
	return &TreeCache{
		entries:    make(map[string]*treeCacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns the cached tree for key, or nil on miss or expiry.
func (c *TreeCache) Get(key string) *treemap.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *TreeCache) getLocked(key string) *treemap.Node {
	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil
	}

	if c.ttl > 0 && c.now().Sub(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return nil
	}

	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return entry.tree
}

// Put stores a tree, evicting the least recently used entry at capacity.
func (c *TreeCache) Put(key string, tree *treemap.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(key, tree)
}

func (c *TreeCache) putLocked(key string, tree *treemap.Node) {
	if c.maxEntries <= 0 {
		return
	}

	if _, ok := c.entries[key]; ok {
		c.entries[key] = &treeCacheEntry{tree: tree, createdAt: c.now()}
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = &treeCacheEntry{tree: tree, createdAt: c.now()}
	c.order = append(c.order, key)
}

// GetOrBuild returns the cached tree for key, calling build and caching its
// result on a miss. Nil trees are not cached.
func (c *TreeCache) GetOrBuild(key string, build func() *treemap.Node) *treemap.Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tree := c.getLocked(key); tree != nil {
		return tree
	}
	tree := build()
	if tree != nil {
		c.putLocked(key, tree)
	}
	return tree
}

// Purge drops every entry. Hit and miss counters are kept.
func (c *TreeCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.order = nil
}

// Stats returns cache performance statistics.
func (c *TreeCache) Stats() CacheStats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Entries:    entries,
		MaxEntries: c.maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

func (c *TreeCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

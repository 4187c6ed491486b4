package snapshot

import (
	"container/list"
	"context"
	"sync"

	"github.com/couchcryptid/flood-grid-playback/internal/domain"
	"github.com/couchcryptid/flood-grid-playback/internal/observability"
)

// CachedSource wraps a SnapshotSource with an in-memory LRU cache. Snapshots
// are immutable once written, so entries never expire.
type CachedSource struct {
	inner   domain.SnapshotSource
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedSource creates a cache decorator around a snapshot source.
func NewCachedSource(inner domain.SnapshotSource, maxEntries int, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedSource) Fetch(ctx context.Context, key string) (domain.Snapshot, error) {
	return c.load(ctx, "ts:"+key, func(ctx context.Context) (domain.Snapshot, error) {
		return c.inner.Fetch(ctx, key)
	})
}

func (c *CachedSource) Baseline(ctx context.Context) (domain.Snapshot, error) {
	return c.load(ctx, "baseline", c.inner.Baseline)
}

func (c *CachedSource) load(ctx context.Context, key string, fetch func(context.Context) (domain.Snapshot, error)) (domain.Snapshot, error) {
	if snap, ok := c.cache.get(key); ok {
		c.metrics.SnapshotCache.WithLabelValues("memory", "hit").Inc()
		return snap, nil
	}
	c.metrics.SnapshotCache.WithLabelValues("memory", "miss").Inc()

	snap, err := fetch(ctx)
	if err != nil {
		// Errors are not cached so a missing file can appear later.
		return snap, err
	}
	c.cache.put(key, snap)
	return snap, nil
}

// lruCache is a thread-safe LRU cache of snapshots.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List // front = most recently used
	entries    map[string]*list.Element
}

type cacheEntry struct {
	key   string
	value domain.Snapshot
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *lruCache) get(key string) (domain.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return domain.Snapshot{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).value, true
}

func (c *lruCache) put(key string, value domain.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, value: value})
	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

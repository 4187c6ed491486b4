// Package redis shares fetched snapshots between service replicas through Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/flood-grid-playback/internal/domain"
	"github.com/couchcryptid/flood-grid-playback/internal/observability"
	goredis "github.com/go-redis/redis/v8"
)

const keyPrefix = "flood-grid:snapshot:"

// errMiss is returned by a store when a key is absent.
var errMiss = errors.New("cache miss")

// store is the subset of Redis the cache needs.
type store interface {
	get(ctx context.Context, key string) ([]byte, error)
	set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type clientStore struct {
	client *goredis.Client
}

func (s clientStore) get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, errMiss
	}
	return b, err
}

func (s clientStore) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// CachedSource wraps a SnapshotSource with a Redis read-through cache. Redis
// failures degrade to the inner source and are only logged.
type CachedSource struct {
	inner   domain.SnapshotSource
	store   store
	ttl     time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewClient creates a go-redis client for addr.
func NewClient(addr string) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
		ReadTimeout: time.Second,
	})
}

// NewCachedSource creates a Redis cache decorator around a snapshot source.
func NewCachedSource(inner domain.SnapshotSource, client *goredis.Client, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *CachedSource {
	return newCachedSource(inner, clientStore{client: client}, ttl, logger, metrics)
}

func newCachedSource(inner domain.SnapshotSource, s store, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{inner: inner, store: s, ttl: ttl, logger: logger, metrics: metrics}
}

func (c *CachedSource) Fetch(ctx context.Context, key string) (domain.Snapshot, error) {
	return c.load(ctx, keyPrefix+key, func(ctx context.Context) (domain.Snapshot, error) {
		return c.inner.Fetch(ctx, key)
	})
}

func (c *CachedSource) Baseline(ctx context.Context) (domain.Snapshot, error) {
	return c.load(ctx, keyPrefix+"baseline", c.inner.Baseline)
}

func (c *CachedSource) load(ctx context.Context, key string, fetch func(context.Context) (domain.Snapshot, error)) (domain.Snapshot, error) {
	if snap, ok := c.lookup(ctx, key); ok {
		c.metrics.SnapshotCache.WithLabelValues("redis", "hit").Inc()
		return snap, nil
	}
	c.metrics.SnapshotCache.WithLabelValues("redis", "miss").Inc()

	snap, err := fetch(ctx)
	if err != nil {
		return snap, err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return snap, fmt.Errorf("encode snapshot for cache: %w", err)
	}
	if err := c.store.set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("redis cache write failed", "key", key, "error", err)
	}
	return snap, nil
}

func (c *CachedSource) lookup(ctx context.Context, key string) (domain.Snapshot, bool) {
	data, err := c.store.get(ctx, key)
	if errors.Is(err, errMiss) {
		return domain.Snapshot{}, false
	}
	if err != nil {
		c.logger.Warn("redis cache read failed", "key", key, "error", err)
		return domain.Snapshot{}, false
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.logger.Warn("redis cache entry corrupt", "key", key, "error", err)
		return domain.Snapshot{}, false
	}
	return snap, true
}

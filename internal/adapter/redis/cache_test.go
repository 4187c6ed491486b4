package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/flood-grid-playback/internal/domain"
	"github.com/couchcryptid/flood-grid-playback/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	failGet error
	failSet error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	b, ok := m.data[key]
	if !ok {
		return nil, errMiss
	}
	return b, nil
}

func (m *memStore) set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

type countingSource struct {
	calls int
}

func (s *countingSource) Fetch(_ context.Context, key string) (domain.Snapshot, error) {
	s.calls++
	return domain.Snapshot{Hierarchy: domain.Hierarchy{Substations: []domain.Facility{{ID: key}}}}, nil
}

func (s *countingSource) Baseline(_ context.Context) (domain.Snapshot, error) {
	s.calls++
	return domain.Snapshot{}, domain.ErrSnapshotNotFound
}

func newTestCache(inner domain.SnapshotSource, s store) (*CachedSource, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newCachedSource(inner, s, time.Minute, logger, metrics), metrics
}

// --- tests ---

func TestCachedSource_ReadThrough(t *testing.T) {
	inner := &countingSource{}
	s := newMemStore()
	c, metrics := newTestCache(inner, s)

	first, err := c.Fetch(context.Background(), "20221008_000000")
	require.NoError(t, err)
	second, err := c.Fetch(context.Background(), "20221008_000000")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, time.Minute, s.ttls[keyPrefix+"20221008_000000"])
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SnapshotCache.WithLabelValues("redis", "hit")), 0)
}

func TestCachedSource_RedisDownDegradesToInner(t *testing.T) {
	inner := &countingSource{}
	s := newMemStore()
	s.failGet = errors.New("connection refused")
	s.failSet = errors.New("connection refused")
	c, _ := newTestCache(inner, s)

	snap, err := c.Fetch(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "k", snap.Hierarchy.Substations[0].ID)

	_, err = c.Fetch(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedSource_CorruptEntryRefetched(t *testing.T) {
	inner := &countingSource{}
	s := newMemStore()
	s.data[keyPrefix+"k"] = []byte("{broken")
	c, _ := newTestCache(inner, s)

	_, err := c.Fetch(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedSource_ErrorsNotCached(t *testing.T) {
	inner := &countingSource{}
	s := newMemStore()
	c, _ := newTestCache(inner, s)

	_, err := c.Baseline(context.Background())
	require.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	assert.Empty(t, s.data)
}

// Package pipeline refreshes the infrastructure snapshot whenever the active
// timestep changes and pushes the result into the flow animation.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/flood-grid-playback/internal/domain"
	"github.com/couchcryptid/flood-grid-playback/internal/observability"
)

// FlowRebuilder regenerates the animated overlay for a new cable set.
type FlowRebuilder interface {
	Rebuild(cables []domain.Cable, visible bool) (particles, junctions int)
	Visible() bool
	SetVisible(visible bool)
}

// EventPublisher delivers playback events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.PlaybackEvent) error
}

// Applied is the snapshot currently driving the overlay.
type Applied struct {
	Timestep domain.Timestep       `json:"timestep"`
	Sequence uint64                `json:"sequence"`
	Origin   domain.SnapshotOrigin `json:"origin"`
	Snapshot domain.Snapshot       `json:"snapshot"`
}

// Refresher issues one snapshot fetch per timestep change. Every request is
// tagged with an increasing sequence number and a response is applied only
// if it is newer than the last applied one, so a slow earlier fetch can never
// overwrite a later timestep.
type Refresher struct {
	source     domain.SnapshotSource
	flow       FlowRebuilder
	publishers []EventPublisher
	logger     *slog.Logger
	metrics    *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	issued atomic.Uint64
	ready  atomic.Bool

	mu      sync.Mutex
	applied uint64
	current Applied
	closed  bool

	// publishMu is taken before mu is released on apply, so events reach
	// publishers in sequence order.
	publishMu sync.Mutex
}

// New creates a Refresher. Publishers may be empty.
func New(source domain.SnapshotSource, flow FlowRebuilder, logger *slog.Logger, metrics *observability.Metrics, publishers ...EventPublisher) *Refresher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Refresher{
		source:     source,
		flow:       flow,
		publishers: publishers,
		logger:     logger,
		metrics:    metrics,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// OnTimestep starts an asynchronous refresh for ts. It is shaped to be used
// directly as a playback listener.
// Changes arriving after Close are ignored.
func (r *Refresher) OnTimestep(ts domain.Timestep) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.logger.Debug("refresher closed, timestep ignored", "timestep", ts.Key)
		return
	}
	seq := r.issued.Add(1)
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		r.refresh(r.ctx, seq, ts)
	}()
}

// Refresh fetches and applies ts synchronously. It reports whether the
// result was applied.
func (r *Refresher) Refresh(ctx context.Context, ts domain.Timestep) bool {
	return r.refresh(ctx, r.issued.Add(1), ts)
}

// SetVisible toggles the overlay for the currently applied cables.
func (r *Refresher) SetVisible(visible bool) {
	r.flow.SetVisible(visible)
}

// Current returns the applied snapshot, or false before the first apply.
func (r *Refresher) Current() (Applied, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.applied > 0
}

// CheckReadiness returns nil once a snapshot has been applied.
func (r *Refresher) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no infrastructure snapshot applied yet")
	}
	return nil
}

// Wait blocks until every in-flight refresh has finished.
func (r *Refresher) Wait() {
	r.wg.Wait()
}

// Close cancels in-flight fetches and waits for them to return.
func (r *Refresher) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

func (r *Refresher) refresh(ctx context.Context, seq uint64, ts domain.Timestep) bool {
	start := time.Now()
	snap, origin := r.fetch(ctx, ts)
	r.metrics.FetchDuration.Observe(time.Since(start).Seconds())

	if ctx.Err() != nil {
		return false
	}
	return r.apply(ctx, seq, ts, origin, snap)
}

// fetch loads the snapshot for ts, degrading to the baseline and then to an
// empty snapshot. Failures are logged, never returned.
func (r *Refresher) fetch(ctx context.Context, ts domain.Timestep) (domain.Snapshot, domain.SnapshotOrigin) {
	snap, err := r.source.Fetch(ctx, ts.Key)
	if err == nil {
		r.metrics.SnapshotFetches.WithLabelValues("success").Inc()
		return snap, domain.OriginTimestep
	}
	if ctx.Err() != nil {
		return domain.Snapshot{}, domain.OriginEmpty
	}
	r.logger.Warn("snapshot fetch failed, using baseline", "timestep", ts.Key, "error", err)

	snap, err = r.source.Baseline(ctx)
	if err == nil {
		r.metrics.SnapshotFetches.WithLabelValues("fallback").Inc()
		return snap, domain.OriginBaseline
	}
	r.logger.Error("baseline fetch failed, clearing overlay", "timestep", ts.Key, "error", err)
	r.metrics.SnapshotFetches.WithLabelValues("empty").Inc()
	return domain.Snapshot{}, domain.OriginEmpty
}

func (r *Refresher) apply(ctx context.Context, seq uint64, ts domain.Timestep, origin domain.SnapshotOrigin, snap domain.Snapshot) bool {
	cables := snap.CableSet()

	r.mu.Lock()
	if seq <= r.applied {
		r.mu.Unlock()
		r.metrics.StaleResponses.Inc()
		r.logger.Debug("stale snapshot dropped", "timestep", ts.Key, "sequence", seq)
		return false
	}
	r.applied = seq
	r.current = Applied{Timestep: ts, Sequence: seq, Origin: origin, Snapshot: snap}
	particles, junctions := r.flow.Rebuild(cables, r.flow.Visible())
	r.publishMu.Lock()
	r.mu.Unlock()
	defer r.publishMu.Unlock()

	r.ready.Store(true)
	r.logger.Info("snapshot applied",
		"timestep", ts.Key,
		"sequence", seq,
		"origin", origin,
		"cables", len(cables),
		"particles", particles,
		"junctions", junctions,
	)

	event := domain.NewPlaybackEvent(ts, seq, origin, cables)
	event.Particles = particles
	event.Junctions = junctions
	r.publish(ctx, event)
	return true
}

func (r *Refresher) publish(ctx context.Context, event domain.PlaybackEvent) {
	for _, p := range r.publishers {
		if err := p.Publish(ctx, event); err != nil {
			r.metrics.PublishErrors.Inc()
			r.logger.Warn("publish playback event failed", "timestep", event.Timestep.Key, "error", err)
			continue
		}
		r.metrics.EventsPublished.Inc()
	}
}

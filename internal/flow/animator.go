package flow

import (
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/flood-grid-playback/internal/domain"
	"github.com/couchcryptid/flood-grid-playback/internal/observability"
	"github.com/jonboulle/clockwork"
)

// FramePeriod is the modulus of the frame counter.
const FramePeriod = 10000

// FrameState is everything a renderer needs to draw one animation frame.
type FrameState struct {
	Frame     uint64               `json:"frame"`
	Visible   bool                 `json:"visible"`
	Particles []PositionedParticle `json:"particles"`
	Glows     []Glow               `json:"glows"`
}

// FrameSink receives every computed frame. PublishFrame must not block.
type FrameSink interface {
	PublishFrame(FrameState)
}

// Animator owns the frame counter and the current particle and junction set.
// The counter is the only time source for positions; the ticker merely
// advances it.
type Animator struct {
	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu        sync.Mutex
	frame     uint64
	cables    []domain.Cable
	visible   bool
	particles []Particle
	junctions []Junction
	sinks     []FrameSink

	ticker    clockwork.Ticker
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewAnimator creates an idle Animator. Call Start to begin ticking.
func NewAnimator(clock clockwork.Clock, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Animator {
	return &Animator{
		clock:    clock,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		visible:  true,
	}
}

// Subscribe registers a sink for computed frames.
func (a *Animator) Subscribe(sink FrameSink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sinks = append(a.sinks, sink)
}

// Start acquires the frame ticker. Calling Start on a running or closed
// animator does nothing.
func (a *Animator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ticker != nil || a.done != nil {
		return
	}

	a.ticker = a.clock.NewTicker(a.interval)
	a.stop = make(chan struct{})
	a.done = make(chan struct{})
	go a.run(a.ticker, a.stop, a.done)
	a.logger.Info("flow animator started", "interval", a.interval)
}

// Close releases the ticker and waits for the tick loop to exit. Repeated
// calls are no-ops.
func (a *Animator) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		ticker, stop, done := a.ticker, a.stop, a.done
		if done == nil {
			// Never started; block future Starts.
			a.done = make(chan struct{})
			close(a.done)
		}
		a.ticker = nil
		a.mu.Unlock()

		if ticker == nil {
			return
		}
		ticker.Stop()
		close(stop)
		<-done
		a.logger.Info("flow animator stopped")
	})
}

func (a *Animator) run(ticker clockwork.Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			a.Tick()
		}
	}
}

// Tick advances the frame counter by one, wrapping at FramePeriod, and
// delivers the new frame to every sink.
func (a *Animator) Tick() FrameState {
	a.mu.Lock()
	a.frame = (a.frame + 1) % FramePeriod
	state := a.frameLocked()
	sinks := append([]FrameSink(nil), a.sinks...)
	a.mu.Unlock()

	a.metrics.FramesRendered.Inc()
	for _, s := range sinks {
		s.PublishFrame(state)
	}
	return state
}

// Frame returns the state at the current counter without advancing it.
func (a *Animator) Frame() FrameState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frameLocked()
}

// FrameAt returns the state the current particle set would have at frame.
func (a *Animator) FrameAt(frame uint64) FrameState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateAt(frame % FramePeriod)
}

func (a *Animator) frameLocked() FrameState {
	return a.stateAt(a.frame)
}

func (a *Animator) stateAt(frame uint64) FrameState {
	glows := make([]Glow, len(a.junctions))
	for i, j := range a.junctions {
		glows[i] = GlowAtFrame(j, frame)
	}
	return FrameState{
		Frame:     frame,
		Visible:   a.visible,
		Particles: Resolve(a.particles, frame),
		Glows:     glows,
	}
}

// Rebuild replaces the cable set and visibility and regenerates particles
// and junctions from scratch. It returns the new particle and junction counts.
func (a *Animator) Rebuild(cables []domain.Cable, visible bool) (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cables = cables
	a.visible = visible
	return a.regenerateLocked()
}

// SetVisible toggles the overlay and regenerates the batch for the current cables.
func (a *Animator) SetVisible(visible bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.visible == visible {
		return
	}
	a.visible = visible
	a.regenerateLocked()
}

// Visible reports whether the overlay is shown.
func (a *Animator) Visible() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.visible
}

func (a *Animator) regenerateLocked() (int, int) {
	if a.visible {
		a.particles = GenerateParticles(a.cables)
		a.junctions = ComputeJunctions(a.cables)
	} else {
		a.particles = nil
		a.junctions = nil
	}

	a.metrics.Particles.Set(float64(len(a.particles)))
	a.metrics.Junctions.Set(float64(len(a.junctions)))
	a.logger.Debug("flow set regenerated",
		"cables", len(a.cables),
		"visible", a.visible,
		"particles", len(a.particles),
		"junctions", len(a.junctions),
	)
	return len(a.particles), len(a.junctions)
}

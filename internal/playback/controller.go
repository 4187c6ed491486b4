// Package playback steps through an ordered timestep sequence on a fixed
// cadence. The controller has two states, idle and playing; a single toggle
// moves between them and a direct selection always leaves it idle.
package playback

import (
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/flood-grid-playback/internal/domain"
	"github.com/couchcryptid/flood-grid-playback/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Listener is notified with the active timestep on every index change.
type Listener func(domain.Timestep)

// State describes the controller at one instant.
type State struct {
	Timesteps []domain.Timestep `json:"timesteps,omitempty"`
	Index     int               `json:"index"`
	Current   *domain.Timestep  `json:"current,omitempty"`
	Playing   bool              `json:"playing"`
}

// Controller owns the timestep sequence, the current index and the advance ticker.
type Controller struct {
	clock    clockwork.Clock
	interval time.Duration
	listener Listener
	logger   *slog.Logger
	metrics  *observability.Metrics

	// emitMu is taken before mu is released on every index change, so the
	// listener sees changes in the order they were made.
	emitMu sync.Mutex
	wg     sync.WaitGroup

	mu        sync.Mutex
	timesteps []domain.Timestep
	index     int
	ticker    clockwork.Ticker
	stop      chan struct{}
	closed    bool
}

// NewController creates an idle controller. listener may be nil.
func NewController(clock clockwork.Clock, interval time.Duration, listener Listener, logger *slog.Logger, metrics *observability.Metrics) *Controller {
	return &Controller{
		clock:    clock,
		interval: interval,
		listener: listener,
		logger:   logger,
		metrics:  metrics,
	}
}

// SetTimesteps replaces the sequence, resets the index to 0 and emits the
// first entry. An empty sequence is replaced by domain.DefaultTimesteps.
// The listener must not call back into the controller.
func (c *Controller) SetTimesteps(seq []domain.Timestep) {
	if len(seq) == 0 {
		seq = domain.DefaultTimesteps()
		c.logger.Warn("empty timestep sequence, using default grid", "count", len(seq))
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.timesteps = append([]domain.Timestep(nil), seq...)
	c.index = 0
	ts := c.timesteps[0]
	c.emitMu.Lock()
	c.mu.Unlock()

	c.logger.Info("timesteps loaded", "count", len(seq), "first", seq[0].Key, "last", seq[len(seq)-1].Key)
	c.emitLocked(ts)
}

// Toggle starts playback when idle and pauses it when playing. It reports
// whether the controller is playing afterwards. Toggling an empty or closed
// controller does nothing.
func (c *Controller) Toggle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ticker != nil {
		c.stopLocked()
		c.logger.Info("playback paused", "index", c.index)
		return false
	}
	if c.closed || len(c.timesteps) == 0 {
		return false
	}

	c.ticker = c.clock.NewTicker(c.interval)
	c.stop = make(chan struct{})
	c.wg.Add(1)
	go c.run(c.ticker, c.stop)
	c.metrics.PlaybackPlaying.Set(1)
	c.logger.Info("playback started", "index", c.index, "interval", c.interval)
	return true
}

// Pause stops playback if it is running.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ticker != nil {
		c.stopLocked()
		c.logger.Info("playback paused", "index", c.index)
	}
}

// SelectIndex jumps to i, pausing playback as a side effect. Selections on an
// empty sequence or outside [0, len) are rejected without any state change.
func (c *Controller) SelectIndex(i int) bool {
	c.mu.Lock()
	if c.closed || i < 0 || i >= len(c.timesteps) {
		n := len(c.timesteps)
		c.mu.Unlock()
		c.logger.Debug("selection rejected", "index", i, "count", n)
		return false
	}
	c.stopLocked()
	c.index = i
	ts := c.timesteps[i]
	c.emitMu.Lock()
	c.mu.Unlock()

	c.emitLocked(ts)
	return true
}

// Current returns the active timestep, or false when the sequence is empty.
func (c *Controller) Current() (domain.Timestep, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timesteps) == 0 {
		return domain.Timestep{}, false
	}
	return c.timesteps[c.index], true
}

// Index returns the current index.
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Playing reports whether the advance ticker is running.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticker != nil
}

// Snapshot returns a copy of the full controller state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{
		Timesteps: append([]domain.Timestep(nil), c.timesteps...),
		Index:     c.index,
		Playing:   c.ticker != nil,
	}
	if len(c.timesteps) > 0 {
		ts := c.timesteps[c.index]
		s.Current = &ts
	}
	return s
}

// Close releases the ticker and waits for the advance goroutine and any
// in-flight notification to finish. No timestep is emitted after Close
// returns. Later calls, and later Toggles, do nothing.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopLocked()
	c.mu.Unlock()

	c.wg.Wait()
	c.emitMu.Lock()
	c.emitMu.Unlock() //nolint:staticcheck // barrier for a notification already under way
}

func (c *Controller) stopLocked() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	close(c.stop)
	c.ticker = nil
	c.stop = nil
	c.metrics.PlaybackPlaying.Set(0)
}

func (c *Controller) run(ticker clockwork.Ticker, stop <-chan struct{}) {
	defer c.wg.Done()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			c.advance(stop)
		}
	}
}

// advance moves one step forward, looping at the end. Ticks that race with a
// pause are discarded.
func (c *Controller) advance(stop <-chan struct{}) {
	c.mu.Lock()
	select {
	case <-stop:
		c.mu.Unlock()
		return
	default:
	}
	if len(c.timesteps) == 0 {
		c.mu.Unlock()
		return
	}
	c.index = (c.index + 1) % len(c.timesteps)
	ts := c.timesteps[c.index]
	c.emitMu.Lock()
	c.mu.Unlock()

	c.emitLocked(ts)
}

// emitLocked notifies the listener and releases emitMu.
func (c *Controller) emitLocked(ts domain.Timestep) {
	defer c.emitMu.Unlock()
	c.metrics.TimestepChanges.Inc()
	c.logger.Debug("timestep changed", "timestep", ts.Key)
	if c.listener != nil {
		c.listener(ts)
	}
}

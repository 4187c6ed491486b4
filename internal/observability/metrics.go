package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for playback and animation.
type Metrics struct {
	TimestepChanges prometheus.Counter
	PlaybackPlaying prometheus.Gauge

	// Snapshot refresh metrics.
	SnapshotFetches *prometheus.CounterVec // labels: outcome={success,fallback,empty}
	StaleResponses  prometheus.Counter
	FetchDuration   prometheus.Histogram
	SnapshotCache   *prometheus.CounterVec // labels: layer={memory,redis}, result={hit,miss}

	// Animation metrics.
	Particles      prometheus.Gauge
	Junctions      prometheus.Gauge
	FramesRendered prometheus.Counter

	// Delivery metrics.
	EventsPublished prometheus.Counter
	PublishErrors   prometheus.Counter
	StreamClients   prometheus.Gauge
	StreamDropped   prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		TimestepChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_grid",
			Name:      "timestep_changes_total",
			Help:      "Total timestep changes emitted by the playback controller.",
		}),
		PlaybackPlaying: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_grid",
			Name:      "playback_playing",
			Help:      "1 while playback is advancing, 0 when idle.",
		}),
		SnapshotFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_grid",
			Name:      "snapshot_fetches_total",
			Help:      "Snapshot fetches by outcome.",
		}, []string{"outcome"}),
		StaleResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_grid",
			Name:      "snapshot_stale_responses_total",
			Help:      "Snapshot responses dropped because a newer one was already applied.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_grid",
			Name:      "snapshot_fetch_duration_seconds",
			Help:      "Duration of a snapshot fetch including baseline fallback.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		SnapshotCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_grid",
			Name:      "snapshot_cache_total",
			Help:      "Snapshot cache lookups by layer and result.",
		}, []string{"layer", "result"}),
		Particles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_grid",
			Name:      "flow_particles",
			Help:      "Number of particles in the current flow set.",
		}),
		Junctions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_grid",
			Name:      "flow_junctions",
			Help:      "Number of glowing junctions in the current flow set.",
		}),
		FramesRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_grid",
			Name:      "flow_frames_total",
			Help:      "Total animation frames computed.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_grid",
			Name:      "playback_events_published_total",
			Help:      "Total playback events written to the event topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_grid",
			Name:      "playback_event_publish_errors_total",
			Help:      "Total playback event publish failures.",
		}),
		StreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_grid",
			Name:      "stream_clients",
			Help:      "Connected websocket stream clients.",
		}),
		StreamDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_grid",
			Name:      "stream_dropped_messages_total",
			Help:      "Messages dropped because a stream client was too slow.",
		}),
	}

	prometheus.MustRegister(
		m.TimestepChanges,
		m.PlaybackPlaying,
		m.SnapshotFetches,
		m.StaleResponses,
		m.FetchDuration,
		m.SnapshotCache,
		m.Particles,
		m.Junctions,
		m.FramesRendered,
		m.EventsPublished,
		m.PublishErrors,
		m.StreamClients,
		m.StreamDropped,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		TimestepChanges: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_grid", Name: "timestep_changes_total"}),
		PlaybackPlaying: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "flood_grid", Name: "playback_playing"}),
		SnapshotFetches: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "flood_grid", Name: "snapshot_fetches_total"}, []string{"outcome"}),
		StaleResponses:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_grid", Name: "snapshot_stale_responses_total"}),
		FetchDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "flood_grid", Name: "snapshot_fetch_duration_seconds"}),
		SnapshotCache:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "flood_grid", Name: "snapshot_cache_total"}, []string{"layer", "result"}),
		Particles:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "flood_grid", Name: "flow_particles"}),
		Junctions:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "flood_grid", Name: "flow_junctions"}),
		FramesRendered:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_grid", Name: "flow_frames_total"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_grid", Name: "playback_events_published_total"}),
		PublishErrors:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_grid", Name: "playback_event_publish_errors_total"}),
		StreamClients:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "flood_grid", Name: "stream_clients"}),
		StreamDropped:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_grid", Name: "stream_dropped_messages_total"}),
	}
}

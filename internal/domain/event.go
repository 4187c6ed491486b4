package domain

import "time"

// SnapshotOrigin records where an applied snapshot came from.
type SnapshotOrigin string

const (
	OriginTimestep SnapshotOrigin = "timestep"
	OriginBaseline SnapshotOrigin = "baseline"
	OriginEmpty    SnapshotOrigin = "empty"
)

// StatusCounts tallies cables by normalized status.
type StatusCounts struct {
	Operational int `json:"operational"`
	Warning     int `json:"warning"`
	Down        int `json:"down"`
}

// PlaybackEvent is published every time a snapshot is applied for a timestep.
type PlaybackEvent struct {
	Timestep  Timestep       `json:"timestep"`
	Sequence  uint64         `json:"sequence"`
	Origin    SnapshotOrigin `json:"origin"`
	Cables    StatusCounts   `json:"cables"`
	Particles int            `json:"particles"`
	Junctions int            `json:"junctions"`
	EmittedAt time.Time      `json:"emitted_at"`
}

// NewPlaybackEvent summarizes an applied cable set, stamped with the package clock.
func NewPlaybackEvent(ts Timestep, seq uint64, origin SnapshotOrigin, cables []Cable) PlaybackEvent {
	return PlaybackEvent{
		Timestep:  ts,
		Sequence:  seq,
		Origin:    origin,
		Cables:    CountStatuses(cables),
		EmittedAt: clock.Now().UTC(),
	}
}

// CountStatuses tallies cables by normalized status.
func CountStatuses(cables []Cable) StatusCounts {
	var c StatusCounts
	for _, cable := range cables {
		switch cable.Status.Normalize() {
		case StatusDown:
			c.Down++
		case StatusWarning:
			c.Warning++
		default:
			c.Operational++
		}
	}
	return c
}

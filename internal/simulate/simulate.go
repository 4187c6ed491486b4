// Package simulate derives per-timestep infrastructure snapshots from a
// baseline by degrading facilities and cables near the river as the flood
// rises and recedes.
package simulate

import (
	"math"
	"math/rand"
	"time"

	"github.com/couchcryptid/flood-grid-playback/internal/domain"
)

// DefaultSeed makes generated series reproducible across runs.
const DefaultSeed = 42

// PropagationFactor scales transition probabilities for items that are only
// affected through a degraded upstream neighbor.
const PropagationFactor = 0.7

// BBox is a lon/lat bounding box, inclusive on all edges.
type BBox struct {
	MinLon, MaxLon float64
	MinLat, MaxLat float64
}

// RiverArea covers the river corridor that floods first.
var RiverArea = BBox{MinLon: 147.35, MaxLon: 147.42, MinLat: -35.15, MaxLat: -35.08}

// Contains reports whether a [lon, lat] pair lies inside the box.
func (b BBox) Contains(p [2]float64) bool {
	return p[0] >= b.MinLon && p[0] <= b.MaxLon && p[1] >= b.MinLat && p[1] <= b.MaxLat
}

// Riverside holds the IDs of facilities and cables exposed to the flood.
type Riverside struct {
	Facilities map[string]bool
	Cables     map[string]bool
}

// IdentifyRiverside collects every facility inside area and every cable with
// at least one vertex inside it.
func IdentifyRiverside(snap domain.Snapshot, area BBox) Riverside {
	r := Riverside{Facilities: map[string]bool{}, Cables: map[string]bool{}}
	for _, level := range levels(&snap.Hierarchy) {
		for _, f := range *level {
			if area.Contains(f.Coordinates) {
				r.Facilities[f.ID] = true
			}
		}
	}
	for _, feat := range snap.Cables.Features {
		for _, c := range feat.Geometry.Coordinates {
			if area.Contains(c) {
				r.Cables[feat.Properties.CableID] = true
				break
			}
		}
	}
	return r
}

// Probabilities are the chances of degrading an operational item.
type Probabilities struct {
	Warning float64
	Down    float64
}

// ProbabilitiesFor maps flood severity in [0, 1] to transition probabilities.
func ProbabilitiesFor(severity float64) Probabilities {
	return Probabilities{
		Warning: math.Min(0.1+severity*0.4, 0.9),
		Down:    math.Min(0.05+severity*0.3, 0.7),
	}
}

func (p Probabilities) scale(f float64) Probabilities {
	return Probabilities{Warning: p.Warning * f, Down: p.Down * f}
}

// Transition draws the next status. Operational items may fail or degrade,
// warnings fail more readily and occasionally recover, down items rarely
// come back as warnings. Unknown statuses are treated as operational.
func Transition(s domain.Status, p Probabilities, rng *rand.Rand) domain.Status {
	switch s.Normalize() {
	case domain.StatusWarning:
		if rng.Float64() < p.Down*1.5 {
			return domain.StatusDown
		}
		if rng.Float64() < 0.1 {
			return domain.StatusOperational
		}
		return domain.StatusWarning
	case domain.StatusDown:
		if rng.Float64() < 0.05 {
			return domain.StatusWarning
		}
		return domain.StatusDown
	default:
		if rng.Float64() < p.Down {
			return domain.StatusDown
		}
		if rng.Float64() < p.Warning {
			return domain.StatusWarning
		}
		return domain.StatusOperational
	}
}

// FloodSeverity places t on a triangle over the span of all flood times: 0
// at the first and last timestep, 1 in the middle, with up to ±0.1 of noise.
// A single-instant span yields 0.5.
func FloodSeverity(t time.Time, all []time.Time, rng *rand.Rand) float64 {
	if len(all) == 0 {
		return 0
	}
	first, last := all[0], all[0]
	for _, a := range all[1:] {
		if a.Before(first) {
			first = a
		}
		if a.After(last) {
			last = a
		}
	}
	span := last.Sub(first)
	if span <= 0 {
		return 0.5
	}

	phase := float64(t.Sub(first)) / float64(span)
	severity := phase * 2
	if phase >= 0.5 {
		severity = (1 - phase) * 2
	}
	severity += rng.Float64()*0.2 - 0.1
	return math.Max(0, math.Min(1, severity))
}

// Simulator applies seeded status transitions to snapshots.
type Simulator struct {
	rng       *rand.Rand
	riverside Riverside
}

// New creates a simulator for base. The riverside set is computed once from
// the baseline geometry.
func New(base domain.Snapshot, area BBox, seed int64) *Simulator {
	return &Simulator{
		rng:       rand.New(rand.NewSource(seed)),
		riverside: IdentifyRiverside(base, area),
	}
}

// Riverside returns the exposed item sets.
func (s *Simulator) Riverside() Riverside {
	return s.riverside
}

// Step returns a copy of base with statuses advanced for one flood severity.
// Facilities are processed level by level so degraded upstream facilities
// raise the exposure of the ones they feed; cables follow their endpoints.
func (s *Simulator) Step(base domain.Snapshot, severity float64) domain.Snapshot {
	snap := clone(base)
	probs := ProbabilitiesFor(severity)
	changed := make(map[string]domain.Status)

	degraded := func(id string) bool {
		st, ok := changed[id]
		return ok && st != domain.StatusOperational
	}

	for i, level := range levels(&snap.Hierarchy) {
		for j := range *level {
			f := &(*level)[j]
			upstream := false
			if i > 0 {
				for _, id := range f.ReceivesFrom {
					if degraded(id) {
						upstream = true
						break
					}
				}
			}
			if !s.riverside.Facilities[f.ID] && !upstream {
				continue
			}
			p := probs
			if upstream {
				p = probs.scale(PropagationFactor)
			}
			f.Status = Transition(f.Status, p, s.rng)
			changed[f.ID] = f.Status
		}
	}

	for i := range snap.Cables.Features {
		props := &snap.Cables.Features[i].Properties
		upstream := degraded(props.From) || degraded(props.To)
		if !s.riverside.Cables[props.CableID] && !upstream {
			continue
		}
		p := probs
		if upstream {
			p = probs.scale(PropagationFactor)
		}
		props.Status = Transition(props.Status, p, s.rng)
		changed[props.CableID] = props.Status
	}
	return snap
}

// Frame is one generated timestep snapshot.
type Frame struct {
	Timestep domain.Timestep
	Severity float64
	Snapshot domain.Snapshot
}

// Series generates one snapshot per timestep, each derived independently
// from base. Timesteps with unparsable keys are skipped.
func (s *Simulator) Series(base domain.Snapshot, steps []domain.Timestep) []Frame {
	times := make([]time.Time, 0, len(steps))
	valid := make([]domain.Timestep, 0, len(steps))
	for _, ts := range steps {
		t, err := domain.ParseTimestepKey(ts.Key)
		if err != nil {
			continue
		}
		times = append(times, t)
		valid = append(valid, ts)
	}

	out := make([]Frame, 0, len(valid))
	for i, ts := range valid {
		severity := FloodSeverity(times[i], times, s.rng)
		out = append(out, Frame{Timestep: ts, Severity: severity, Snapshot: s.Step(base, severity)})
	}
	return out
}

func levels(h *domain.Hierarchy) []*[]domain.Facility {
	return []*[]domain.Facility{&h.PowerPlants, &h.Substations, &h.Transformers, &h.Towers}
}

// clone copies everything Step mutates so base stays untouched.
func clone(s domain.Snapshot) domain.Snapshot {
	out := s
	out.Hierarchy = domain.Hierarchy{
		PowerPlants:  append([]domain.Facility(nil), s.Hierarchy.PowerPlants...),
		Substations:  append([]domain.Facility(nil), s.Hierarchy.Substations...),
		Transformers: append([]domain.Facility(nil), s.Hierarchy.Transformers...),
		Towers:       append([]domain.Facility(nil), s.Hierarchy.Towers...),
	}
	out.Cables.Features = append([]domain.CableFeature(nil), s.Cables.Features...)
	return out
}

package flow

import (
	"fmt"
	"math"
	"sort"

	"github.com/couchcryptid/flood-grid-playback/internal/domain"
)

// JunctionKeyPrecision is the number of decimal digits endpoints are rounded
// to before grouping.
const JunctionKeyPrecision = 6

// Junction is a point where cable endpoints coincide.
type Junction struct {
	Key       string        `json:"key"`
	Position  domain.Point3 `json:"position"`
	Count     int           `json:"count"`
	Status    domain.Status `json:"status"`
	Intensity float64       `json:"intensity"`
}

// Glow is a junction resolved at a specific frame.
type Glow struct {
	Key       string        `json:"key"`
	Position  domain.Point3 `json:"position"`
	Intensity float64       `json:"intensity"`
	Color     domain.RGB    `json:"color"`
}

// JunctionKey rounds a point to JunctionKeyPrecision digits.
func JunctionKey(p domain.Point3) string {
	return fmt.Sprintf("%.*f,%.*f", JunctionKeyPrecision, p.Lon, JunctionKeyPrecision, p.Lat)
}

// AggregateEndpoints groups the first and last point of every cable by
// JunctionKey. Each group counts the cables touching it and folds their
// statuses to the worst one. The result is sorted by key.
func AggregateEndpoints(cables []domain.Cable) []Junction {
	groups := make(map[string]*Junction)
	for _, cable := range cables {
		if len(cable.Path) == 0 {
			continue
		}
		ends := []domain.Point3{cable.Path[0], cable.Path[len(cable.Path)-1]}
		if len(cable.Path) == 1 {
			ends = ends[:1]
		}
		for _, p := range ends {
			key := JunctionKey(p)
			j, ok := groups[key]
			if !ok {
				j = &Junction{
					Key:      key,
					Position: atBase(p),
					Status:   domain.StatusOperational,
				}
				groups[key] = j
			}
			j.Count++
			j.Status = domain.WorstStatus(j.Status, cable.Status)
		}
	}

	out := make([]Junction, 0, len(groups))
	for _, j := range groups {
		j.Intensity = junctionIntensity(j.Count)
		out = append(out, *j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Key < out[b].Key })
	return out
}

// ComputeJunctions returns the glowing junctions: groups shared by more than
// one cable whose aggregate status is not down.
func ComputeJunctions(cables []domain.Cable) []Junction {
	all := AggregateEndpoints(cables)
	out := all[:0]
	for _, j := range all {
		if j.Count > 1 && j.Status != domain.StatusDown {
			out = append(out, j)
		}
	}
	return out
}

func junctionIntensity(count int) float64 {
	return math.Min(0.2+0.1*float64(count), 0.8)
}

// GlowAtFrame pulses a junction's base intensity between 70% and 100%.
func GlowAtFrame(j Junction, frame uint64) Glow {
	pulse := 0.85 + 0.15*math.Sin(float64(frame)*TimeScale*2+float64(j.Count))
	return Glow{
		Key:       j.Key,
		Position:  j.Position,
		Intensity: j.Intensity * pulse,
		Color:     domain.StatusColor(j.Status),
	}
}

package flow

import (
	"fmt"
	"math"

	"github.com/couchcryptid/flood-grid-playback/internal/domain"
)

const (
	// ParticlesPerSegment is the number of particles riding each arc segment.
	ParticlesPerSegment = 3

	// TimeScale is the phase advance per frame, in radians.
	TimeScale = 0.05
)

// Particle travels back and forth along one arc segment.
type Particle struct {
	ID      string        `json:"id"`
	CableID string        `json:"cable_id"`
	Start   domain.Point3 `json:"start"`
	End     domain.Point3 `json:"end"`
	Phase   float64       `json:"phase"`
	Color   domain.RGB    `json:"color"`
}

// PositionedParticle is a particle resolved at a specific frame.
type PositionedParticle struct {
	ID       string        `json:"id"`
	Position domain.Point3 `json:"position"`
	Alpha    float64       `json:"alpha"`
	Color    domain.RGB    `json:"color"`
}

// GenerateParticles builds the full particle set for a cable batch. Down
// cables are skipped. Each segment of a cable's arc path gets
// ParticlesPerSegment particles evenly spaced in phase over [0, 2π).
func GenerateParticles(cables []domain.Cable) []Particle {
	var out []Particle
	for _, cable := range cables {
		if cable.Status.Normalize() == domain.StatusDown {
			continue
		}

		path := BuildArcPath(cable.Path)
		color := domain.StatusColor(cable.Status)
		for seg := 0; seg+1 < len(path); seg++ {
			for k := 0; k < ParticlesPerSegment; k++ {
				out = append(out, Particle{
					ID:      fmt.Sprintf("%s/%d/%d", cable.ID, seg, k),
					CableID: cable.ID,
					Start:   path[seg],
					End:     path[seg+1],
					Phase:   2 * math.Pi * float64(k) / ParticlesPerSegment,
					Color:   color,
				})
			}
		}
	}
	return out
}

// Progress maps a frame onto the particle's normalized traversal t in [0, 1).
func Progress(p Particle, frame uint64) float64 {
	angle := math.Mod(float64(frame)*TimeScale+p.Phase, 2*math.Pi)
	if angle < 0 {
		angle += 2 * math.Pi
	}
	return angle / (2 * math.Pi)
}

// PositionAtT interpolates start to end at t and fades with sin(tπ), which is
// zero at both ends and peaks at the midpoint.
func PositionAtT(p Particle, t float64) (domain.Point3, float64) {
	return p.Start.Lerp(p.End, t), math.Sin(t * math.Pi)
}

// PositionAtFrame resolves a particle's position and alpha for a frame.
func PositionAtFrame(p Particle, frame uint64) (domain.Point3, float64) {
	return PositionAtT(p, Progress(p, frame))
}

// Resolve positions every particle at a frame.
func Resolve(particles []Particle, frame uint64) []PositionedParticle {
	out := make([]PositionedParticle, len(particles))
	for i, p := range particles {
		pos, alpha := PositionAtFrame(p, frame)
		out[i] = PositionedParticle{ID: p.ID, Position: pos, Alpha: alpha, Color: p.Color}
	}
	return out
}

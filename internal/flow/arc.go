// Package flow derives the animated cable overlay: sagging arc paths, moving
// particles and junction glows. Every position is a pure function of the cable
// set and an integer frame number, so any frame can be replayed exactly.
package flow

import (
	"math"

	"github.com/couchcryptid/flood-grid-playback/internal/domain"
)

const (
	// BaseHeight is the altitude of cable attachment points, in meters.
	BaseHeight = 40.0

	// SagFactor converts planar segment length (degrees) into sag (meters).
	SagFactor = 4000.0

	// MaxSag caps the sag of long spans, in meters.
	MaxSag = 25.0
)

// BuildArcPath inserts a sagging midpoint between every consecutive pair of
// raw coordinates. The output for n >= 1 inputs holds 2n-1 points: each input
// at BaseHeight with a midpoint lowered by min(length*SagFactor, MaxSag)
// between them. Input altitudes are ignored.
func BuildArcPath(raw []domain.Point3) []domain.Point3 {
	if len(raw) == 0 {
		return nil
	}

	out := make([]domain.Point3, 0, 2*len(raw)-1)
	for i := 0; i+1 < len(raw); i++ {
		start := atBase(raw[i])
		end := atBase(raw[i+1])
		sag := math.Min(start.PlanarDistance(end)*SagFactor, MaxSag)

		mid := start.Lerp(end, 0.5)
		mid.Alt = BaseHeight - sag

		out = append(out, start, mid)
	}
	return append(out, atBase(raw[len(raw)-1]))
}

func atBase(p domain.Point3) domain.Point3 {
	p.Alt = BaseHeight
	return p
}

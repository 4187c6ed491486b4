package flow

import (
	"math"
	"testing"

	"github.com/couchcryptid/flood-grid-playback/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCable(id string, status domain.Status, coords ...[2]float64) domain.Cable {
	path := make([]domain.Point3, len(coords))
	for i, c := range coords {
		path[i] = domain.Point3{Lon: c[0], Lat: c[1]}
	}
	return domain.Cable{ID: id, Status: status, Type: domain.CableDistribution, Path: path}
}

func TestGenerateParticles_ExcludesDownCables(t *testing.T) {
	cables := []domain.Cable{
		testCable("up", domain.StatusOperational, [2]float64{0, 0}, [2]float64{0.01, 0}),
		testCable("dead", domain.StatusDown, [2]float64{0, 0}, [2]float64{0.01, 0}),
	}

	particles := GenerateParticles(cables)
	for _, p := range particles {
		assert.NotEqual(t, "dead", p.CableID)
	}
	assert.NotEmpty(t, particles)
}

func TestGenerateParticles_CountPerCable(t *testing.T) {
	cable := testCable("c", domain.StatusWarning,
		[2]float64{0, 0}, [2]float64{0.01, 0}, [2]float64{0.02, 0.01})

	particles := GenerateParticles([]domain.Cable{cable})

	pointCount := len(BuildArcPath(cable.Path))
	assert.Len(t, particles, (pointCount-1)*ParticlesPerSegment)
	assert.Equal(t, "c/0/0", particles[0].ID)
	assert.Equal(t, domain.StatusColor(domain.StatusWarning), particles[0].Color)
}

func TestGenerateParticles_EvenPhases(t *testing.T) {
	cable := testCable("c", domain.StatusOperational, [2]float64{0, 0}, [2]float64{0.01, 0})
	particles := GenerateParticles([]domain.Cable{cable})

	require.GreaterOrEqual(t, len(particles), ParticlesPerSegment)
	for k := 0; k < ParticlesPerSegment; k++ {
		want := 2 * math.Pi * float64(k) / ParticlesPerSegment
		assert.InDelta(t, want, particles[k].Phase, 1e-12)
		assert.Less(t, particles[k].Phase, 2*math.Pi)
	}
}

func TestGenerateParticles_ShortCablesProduceNothing(t *testing.T) {
	cables := []domain.Cable{
		testCable("empty", domain.StatusOperational),
		testCable("point", domain.StatusOperational, [2]float64{1, 1}),
	}
	assert.Empty(t, GenerateParticles(cables))
}

func TestPositionAtT_FadesAtEnds(t *testing.T) {
	p := Particle{
		Start: domain.Point3{Lon: 0, Lat: 0, Alt: 40},
		End:   domain.Point3{Lon: 1, Lat: 2, Alt: 20},
	}

	pos, alpha := PositionAtT(p, 0)
	assert.Equal(t, p.Start, pos)
	assert.InDelta(t, 0, alpha, 1e-12)

	pos, alpha = PositionAtT(p, 1)
	assert.InDelta(t, 1, pos.Lon, 1e-12)
	assert.InDelta(t, 0, alpha, 1e-12)

	pos, alpha = PositionAtT(p, 0.5)
	assert.InDelta(t, 0.5, pos.Lon, 1e-12)
	assert.InDelta(t, 1, pos.Lat, 1e-12)
	assert.InDelta(t, 30, pos.Alt, 1e-12)
	assert.InDelta(t, 1, alpha, 1e-12)
}

func TestPositionAtFrame_ReproducibleAndPeriodic(t *testing.T) {
	p := Particle{
		Start: domain.Point3{Lon: 0},
		End:   domain.Point3{Lon: 1},
		Phase: 0,
	}

	pos0, alpha0 := PositionAtFrame(p, 0)
	assert.InDelta(t, 0, pos0.Lon, 1e-12)
	assert.InDelta(t, 0, alpha0, 1e-12)

	a1, b1 := PositionAtFrame(p, 42)
	a2, b2 := PositionAtFrame(p, 42)
	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)

	// Half a revolution: frame*TimeScale == π.
	half := uint64(math.Round(math.Pi / TimeScale))
	_, alpha := PositionAtFrame(p, half)
	assert.Greater(t, alpha, 0.99)
}

func TestProgress_UsesPhase(t *testing.T) {
	p := Particle{Phase: math.Pi}
	assert.InDelta(t, 0.5, Progress(p, 0), 1e-12)
}

package simulate

import (
	"math/rand"
	"testing"
	"time"

	"github.com/couchcryptid/flood-grid-playback/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	inside  = [2]float64{147.38, -35.10}
	outside = [2]float64{147.60, -35.30}
)

func baseSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Hierarchy: domain.Hierarchy{
			PowerPlants: []domain.Facility{
				{ID: "PP1", Coordinates: inside, Status: domain.StatusOperational},
				{ID: "PP2", Coordinates: outside, Status: domain.StatusOperational},
			},
			Substations: []domain.Facility{
				{ID: "SS1", Coordinates: outside, Status: domain.StatusOperational, ReceivesFrom: []string{"PP2"}},
			},
			Towers: []domain.Facility{
				{ID: "CT1", Coordinates: outside},
			},
		},
		Cables: domain.CableCollection{
			Type: "FeatureCollection",
			Features: []domain.CableFeature{
				{
					Type:       "Feature",
					Properties: domain.CableProperties{CableID: "C1", Status: domain.StatusOperational, From: "PP2", To: "SS1"},
					Geometry:   domain.LineString{Type: "LineString", Coordinates: [][2]float64{outside, {147.61, -35.31}}},
				},
				{
					Type:       "Feature",
					Properties: domain.CableProperties{CableID: "C2", Status: domain.StatusOperational, From: "PP1", To: "SS1"},
					Geometry:   domain.LineString{Type: "LineString", Coordinates: [][2]float64{outside, inside}},
				},
			},
		},
	}
}

func TestBBoxContains(t *testing.T) {
	assert.True(t, RiverArea.Contains(inside))
	assert.True(t, RiverArea.Contains([2]float64{147.35, -35.15}), "edges are inclusive")
	assert.False(t, RiverArea.Contains(outside))
}

func TestIdentifyRiverside(t *testing.T) {
	r := IdentifyRiverside(baseSnapshot(), RiverArea)
	assert.Equal(t, map[string]bool{"PP1": true}, r.Facilities)
	assert.Equal(t, map[string]bool{"C2": true}, r.Cables, "any vertex inside counts")
}

func TestProbabilitiesFor(t *testing.T) {
	p := ProbabilitiesFor(0)
	assert.InDelta(t, 0.1, p.Warning, 1e-9)
	assert.InDelta(t, 0.05, p.Down, 1e-9)

	p = ProbabilitiesFor(1)
	assert.InDelta(t, 0.5, p.Warning, 1e-9)
	assert.InDelta(t, 0.35, p.Down, 1e-9)

	p = ProbabilitiesFor(5)
	assert.InDelta(t, 0.9, p.Warning, 1e-9, "capped")
	assert.InDelta(t, 0.7, p.Down, 1e-9, "capped")
}

func TestTransitionCertainOutcomes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		assert.Equal(t, domain.StatusDown, Transition(domain.StatusOperational, Probabilities{Down: 1}, rng))
		assert.Equal(t, domain.StatusOperational, Transition(domain.StatusOperational, Probabilities{}, rng))
		assert.Equal(t, domain.StatusWarning, Transition("", Probabilities{Warning: 1}, rng), "missing status starts operational")
		assert.Equal(t, domain.StatusDown, Transition(domain.StatusWarning, Probabilities{Down: 0.7}, rng), "1.5x down chance exceeds 1")
	}
}

func TestTransitionRecoveryRates(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const n = 20000
	var recovered, downToWarning int
	for i := 0; i < n; i++ {
		if Transition(domain.StatusWarning, Probabilities{}, rng) == domain.StatusOperational {
			recovered++
		}
		if Transition(domain.StatusDown, Probabilities{Down: 1, Warning: 1}, rng) == domain.StatusWarning {
			downToWarning++
		}
	}
	assert.InDelta(t, 0.10, float64(recovered)/n, 0.01)
	assert.InDelta(t, 0.05, float64(downToWarning)/n, 0.01)
}

func TestFloodSeverityTriangle(t *testing.T) {
	start := time.Date(2022, 10, 8, 0, 0, 0, 0, time.UTC)
	all := []time.Time{start, start.Add(12 * time.Hour), start.Add(24 * time.Hour)}
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 50; i++ {
		assert.LessOrEqual(t, FloodSeverity(all[0], all, rng), 0.1)
		assert.GreaterOrEqual(t, FloodSeverity(all[1], all, rng), 0.9)
		assert.LessOrEqual(t, FloodSeverity(all[2], all, rng), 0.1)
	}
	assert.InDelta(t, 0.5, FloodSeverity(start, []time.Time{start}, rng), 0)
	assert.Zero(t, FloodSeverity(start, nil, rng))
}

func TestStepLeavesUnexposedItemsAlone(t *testing.T) {
	base := baseSnapshot()
	sim := New(base, RiverArea, DefaultSeed)

	for i := 0; i < 20; i++ {
		out := sim.Step(base, 1)
		assert.Equal(t, domain.StatusOperational, out.Hierarchy.PowerPlants[1].Status)
		assert.Equal(t, domain.StatusOperational, out.Hierarchy.Substations[0].Status, "upstream PP2 never degrades")
		assert.Equal(t, domain.StatusOperational, out.Cables.Features[0].Properties.Status)
		assert.Empty(t, out.Hierarchy.Towers[0].Status)
	}
	assert.Equal(t, baseSnapshot(), base, "base must not be mutated")
}

func TestStepPropagatesFromDegradedUpstream(t *testing.T) {
	base := baseSnapshot()
	base.Hierarchy.Substations[0].ReceivesFrom = []string{"PP1"}
	sim := New(base, RiverArea, DefaultSeed)

	var touched bool
	for i := 0; i < 200 && !touched; i++ {
		out := sim.Step(base, 1)
		touched = out.Hierarchy.PowerPlants[0].Status != domain.StatusOperational &&
			out.Hierarchy.Substations[0].Status != domain.StatusOperational
	}
	assert.True(t, touched, "substation fed by a failed plant should eventually degrade")
}

func TestSeriesIsReproducible(t *testing.T) {
	base := baseSnapshot()
	steps := domain.DefaultTimesteps()[:6]
	steps = append(steps, domain.Timestep{Key: "garbage"})

	a := New(base, RiverArea, DefaultSeed).Series(base, steps)
	b := New(base, RiverArea, DefaultSeed).Series(base, steps)

	require.Len(t, a, 6)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("series differ for the same seed (-a +b):\n%s", diff)
	}
	assert.Equal(t, steps[0], a[0].Timestep)
	for _, f := range a {
		assert.GreaterOrEqual(t, f.Severity, 0.0)
		assert.LessOrEqual(t, f.Severity, 1.0)
	}
}

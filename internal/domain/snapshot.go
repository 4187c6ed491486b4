package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrSnapshotNotFound is returned by a SnapshotSource when no snapshot exists for a key.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotSource loads infrastructure snapshots.
type SnapshotSource interface {
	// Fetch returns the snapshot for a timestep key.
	Fetch(ctx context.Context, key string) (Snapshot, error)

	// Baseline returns the non-time-indexed snapshot.
	Baseline(ctx context.Context) (Snapshot, error)
}

// Point3 is a WGS-84 position with an altitude in meters.
type Point3 struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
	Alt float64 `json:"alt"`
}

// Lerp interpolates linearly between p and q.
func (p Point3) Lerp(q Point3, t float64) Point3 {
	return Point3{
		Lon: p.Lon + (q.Lon-p.Lon)*t,
		Lat: p.Lat + (q.Lat-p.Lat)*t,
		Alt: p.Alt + (q.Alt-p.Alt)*t,
	}
}

// PlanarDistance is the Euclidean distance in the lon/lat plane, in degrees.
func (p Point3) PlanarDistance(q Point3) float64 {
	return math.Hypot(q.Lon-p.Lon, q.Lat-p.Lat)
}

// Cable is a directed power line between two infrastructure levels.
type Cable struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Type      CableType `json:"cable_type"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	FromLevel int       `json:"from_level,omitempty"`
	ToLevel   int       `json:"to_level,omitempty"`
	Path      []Point3  `json:"path"`
}

// Facility is a single plant, substation, transformer or tower.
type Facility struct {
	ID           string     `json:"id"`
	Name         string     `json:"name,omitempty"`
	Type         string     `json:"type,omitempty"`
	Coordinates  [2]float64 `json:"coordinates"` // [lon, lat]
	Status       Status     `json:"status,omitempty"`
	ReceivesFrom []string   `json:"receives_from,omitempty"`
}

// Hierarchy groups facilities by level.
type Hierarchy struct {
	PowerPlants  []Facility `json:"level_1_power_plants"`
	Substations  []Facility `json:"level_2_substations"`
	Transformers []Facility `json:"level_3_transformers"`
	Towers       []Facility `json:"level_4_communication_towers"`
}

// CableProperties are the GeoJSON feature properties of a cable.
type CableProperties struct {
	CableID   string    `json:"cable_id"`
	Status    Status    `json:"status"`
	CableType CableType `json:"cable_type"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	FromLevel int       `json:"from_level,omitempty"`
	ToLevel   int       `json:"to_level,omitempty"`
}

// LineString is a GeoJSON LineString geometry of [lon, lat] pairs.
type LineString struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

// CableFeature is one GeoJSON cable feature.
type CableFeature struct {
	Type       string          `json:"type"`
	Properties CableProperties `json:"properties"`
	Geometry   LineString      `json:"geometry"`
}

// CableCollection is a GeoJSON FeatureCollection of cables.
type CableCollection struct {
	Type     string         `json:"type"`
	Features []CableFeature `json:"features"`
}

// Snapshot is the full infrastructure state for one timestep.
type Snapshot struct {
	Hierarchy Hierarchy       `json:"infrastructure_hierarchy"`
	Cables    CableCollection `json:"hierarchical_power_cables"`
}

// CableSet converts the snapshot's cable features into Cables. Altitude is
// left at zero.
func (s Snapshot) CableSet() []Cable {
	out := make([]Cable, 0, len(s.Cables.Features))
	for _, f := range s.Cables.Features {
		path := make([]Point3, len(f.Geometry.Coordinates))
		for i, c := range f.Geometry.Coordinates {
			path[i] = Point3{Lon: c[0], Lat: c[1]}
		}
		out = append(out, Cable{
			ID:        f.Properties.CableID,
			Status:    f.Properties.Status,
			Type:      f.Properties.CableType,
			From:      f.Properties.From,
			To:        f.Properties.To,
			FromLevel: f.Properties.FromLevel,
			ToLevel:   f.Properties.ToLevel,
			Path:      path,
		})
	}
	return out
}

// FacilityCount returns the number of facilities across all levels.
func (s Snapshot) FacilityCount() int {
	h := s.Hierarchy
	return len(h.PowerPlants) + len(h.Substations) + len(h.Transformers) + len(h.Towers)
}

// Validate checks the structural invariants of a decoded snapshot.
func (s Snapshot) Validate() error {
	for i, f := range s.Cables.Features {
		if f.Properties.CableID == "" {
			return fmt.Errorf("cable feature %d: missing cable_id", i)
		}
	}
	return nil
}

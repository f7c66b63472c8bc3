package domain

import (
	"fmt"
	"sort"
)

// Dam is a privileged anchor that is also a flow source. Its coordinate is
// the surveyed dam location, not an interpolated path point.
type Dam struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	OfficialName string  `json:"official_name,omitempty"`
	Mile         float64 `json:"mile"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	CapacityCFS  float64 `json:"capacity_cfs"`
	GaugeID      string  `json:"gauge_id"`
	// ElevationFt is the surveyed pool elevation at the dam, a static table
	// attribute for display; zero means not recorded.
	ElevationFt float64 `json:"elevation_ft,omitempty"`
}

// Coordinate returns the dam's surveyed position.
func (d Dam) Coordinate() Coordinate {
	return Coordinate{Lat: d.Lat, Lon: d.Lon}
}

// DamRegistry is the immutable dam table, validated once at startup.
type DamRegistry struct {
	dams []Dam
	byID map[string]Dam
}

// NewDamRegistry validates dams against the reference path and constructs the
// registry. Every dam needs a unique ID, a gauge ID, positive capacity, and a
// mile within the path span.
func NewDamRegistry(dams []Dam, path *ReferencePath) (*DamRegistry, error) {
	if len(dams) == 0 {
		return nil, fmt.Errorf("%w: no dams configured", ErrBadRiverTable)
	}

	byID := make(map[string]Dam, len(dams))
	sorted := make([]Dam, len(dams))
	copy(sorted, dams)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Mile > sorted[j].Mile })

	for _, d := range sorted {
		if d.ID == "" || d.Name == "" {
			return nil, fmt.Errorf("%w: dam missing id or name (%+v)", ErrBadRiverTable, d)
		}
		if _, dup := byID[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate dam id %q", ErrBadRiverTable, d.ID)
		}
		if d.GaugeID == "" {
			return nil, fmt.Errorf("%w: dam %q has no gauge id", ErrBadRiverTable, d.ID)
		}
		if !isFinite(d.CapacityCFS) || d.CapacityCFS <= 0 {
			return nil, fmt.Errorf("%w: dam %q capacity must be positive, got %v", ErrBadRiverTable, d.ID, d.CapacityCFS)
		}
		if !path.Contains(d.Mile) {
			return nil, fmt.Errorf("%w: dam %q at mile %v is outside the path span [%v, %v]",
				ErrBadRiverTable, d.ID, d.Mile, path.MinMile(), path.MaxMile())
		}
		if !isFinite(d.Lat) || !isFinite(d.Lon) {
			return nil, fmt.Errorf("%w: dam %q has non-finite coordinates", ErrBadRiverTable, d.ID)
		}
		if !isFinite(d.ElevationFt) || d.ElevationFt < 0 {
			return nil, fmt.Errorf("%w: dam %q elevation must be non-negative, got %v", ErrBadRiverTable, d.ID, d.ElevationFt)
		}
		byID[d.ID] = d
	}

	return &DamRegistry{dams: sorted, byID: byID}, nil
}

// Get looks up a dam by ID.
func (r *DamRegistry) Get(id string) (Dam, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// All returns the dams ordered upstream to downstream.
func (r *DamRegistry) All() []Dam {
	out := make([]Dam, len(r.dams))
	copy(out, r.dams)
	return out
}

// NearestDam returns the dam closest to (lat, lon) by great-circle distance.
func (r *DamRegistry) NearestDam(lat, lon float64) (Dam, float64) {
	query := Coordinate{Lat: lat, Lon: lon}
	best := r.dams[0]
	bestDist := HaversineMiles(query, best.Coordinate())
	for _, d := range r.dams[1:] {
		if dist := HaversineMiles(query, d.Coordinate()); dist < bestDist {
			best, bestDist = d, dist
		}
	}
	return best, bestDist
}

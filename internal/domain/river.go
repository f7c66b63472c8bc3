package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrBadRiverTable indicates an empty or malformed anchor/dam table. It is
// fatal at startup: interpolation has no valid domain without a table.
var ErrBadRiverTable = errors.New("bad river table")

// Coordinate is a WGS-84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Anchor marks a known point on the river's true path.
type Anchor struct {
	Mile float64 `json:"mile"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Coordinate returns the anchor's position.
func (a Anchor) Coordinate() Coordinate {
	return Coordinate{Lat: a.Lat, Lon: a.Lon}
}

// ReferencePath is an immutable table of anchors in strictly increasing
// river-mile order. It is built once at startup and safe for concurrent use.
type ReferencePath struct {
	anchors []Anchor
}

// NewReferencePath validates and constructs a ReferencePath. Anchors are
// sorted by mile; duplicate miles and non-finite values are rejected, as is
// a table with fewer than two anchors (nothing to interpolate between).
func NewReferencePath(anchors []Anchor) (*ReferencePath, error) {
	if len(anchors) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 anchors, got %d", ErrBadRiverTable, len(anchors))
	}

	sorted := make([]Anchor, len(anchors))
	copy(sorted, anchors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Mile < sorted[j].Mile })

	for i, a := range sorted {
		if !isFinite(a.Mile) || !isFinite(a.Lat) || !isFinite(a.Lon) {
			return nil, fmt.Errorf("%w: anchor %d has non-finite field (mile=%v lat=%v lon=%v)",
				ErrBadRiverTable, i, a.Mile, a.Lat, a.Lon)
		}
		if a.Lat < -90 || a.Lat > 90 || a.Lon < -180 || a.Lon > 180 {
			return nil, fmt.Errorf("%w: anchor %d out of coordinate range (lat=%v lon=%v)",
				ErrBadRiverTable, i, a.Lat, a.Lon)
		}
		if i > 0 && a.Mile == sorted[i-1].Mile {
			return nil, fmt.Errorf("%w: duplicate anchor at mile %v", ErrBadRiverTable, a.Mile)
		}
	}

	return &ReferencePath{anchors: sorted}, nil
}

// MinMile returns the downstream end of the table.
func (p *ReferencePath) MinMile() float64 { return p.anchors[0].Mile }

// MaxMile returns the upstream end of the table.
func (p *ReferencePath) MaxMile() float64 { return p.anchors[len(p.anchors)-1].Mile }

// Contains reports whether mile is finite and within the anchor span.
func (p *ReferencePath) Contains(mile float64) bool {
	return isFinite(mile) && mile >= p.MinMile() && mile <= p.MaxMile()
}

// Anchors returns a copy of the anchor table.
func (p *ReferencePath) Anchors() []Anchor {
	out := make([]Anchor, len(p.anchors))
	copy(out, p.anchors)
	return out
}

// CoordinateAt converts a river mile to a geographic position. Values at or
// beyond either end of the table clamp to the endpoint anchor; in between,
// latitude and longitude are interpolated independently by the fractional
// position between the bracketing anchors. It never fails for finite input.
// NaN input clamps to the downstream endpoint rather than producing NaN
// output; callers that must reject non-finite miles validate before calling.
func (p *ReferencePath) CoordinateAt(mile float64) Coordinate {
	first, last := p.anchors[0], p.anchors[len(p.anchors)-1]
	if !isFinite(mile) || mile <= first.Mile {
		return first.Coordinate()
	}
	if mile >= last.Mile {
		return last.Coordinate()
	}

	// First anchor with Mile >= mile; the loop bounds above guarantee
	// 1 <= hi <= len-1.
	hi := sort.Search(len(p.anchors), func(i int) bool { return p.anchors[i].Mile >= mile })
	lo := hi - 1
	a, b := p.anchors[lo], p.anchors[hi]
	if a.Mile == b.Mile {
		return a.Coordinate()
	}

	ratio := (mile - a.Mile) / (b.Mile - a.Mile)
	return Coordinate{
		Lat: a.Lat + ratio*(b.Lat-a.Lat),
		Lon: a.Lon + ratio*(b.Lon-a.Lon),
	}
}

// Densify returns a new ReferencePath with synthetic anchors interpolated at
// most spacing miles apart. The extra anchors lie on the existing chords, so
// CoordinateAt is unchanged; densification only smooths a rendered path.
func (p *ReferencePath) Densify(spacing float64) (*ReferencePath, error) {
	if !isFinite(spacing) || spacing <= 0 {
		return nil, fmt.Errorf("%w: densify spacing must be positive, got %v", ErrBadRiverTable, spacing)
	}

	var out []Anchor
	for i := 0; i < len(p.anchors)-1; i++ {
		a, b := p.anchors[i], p.anchors[i+1]
		out = append(out, a)
		span := b.Mile - a.Mile
		steps := int(math.Ceil(span/spacing)) - 1
		for s := 1; s <= steps; s++ {
			mile := a.Mile + float64(s)*span/float64(steps+1)
			c := p.CoordinateAt(mile)
			out = append(out, Anchor{Mile: mile, Lat: c.Lat, Lon: c.Lon})
		}
	}
	out = append(out, p.anchors[len(p.anchors)-1])

	return NewReferencePath(out)
}

// Polyline samples the path between two miles at a fixed step, endpoints
// included, ordered from fromMile to toMile. It exists purely for map
// rendering; never derive travel distance from these points.
func (p *ReferencePath) Polyline(fromMile, toMile, step float64) []Coordinate {
	if !isFinite(step) || step <= 0 {
		step = 1.0
	}

	lo, hi := math.Min(fromMile, toMile), math.Max(fromMile, toMile)
	pts := make([]Coordinate, 0, int((hi-lo)/step)+2)
	for m := lo; m < hi; m += step {
		pts = append(pts, p.CoordinateAt(m))
	}
	pts = append(pts, p.CoordinateAt(hi))

	if fromMile > toMile {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
	return pts
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

package domain

// NearestMatch is the anchor closest to a query coordinate, with the
// great-circle distance to it. The anchor's mile is the caller's inferred
// river position; because of channel bends it is an inference by proximity,
// not a river-mile measurement.
type NearestMatch struct {
	Anchor        Anchor
	DistanceMiles float64
}

// NearestAnchor scans the table for the anchor minimizing great-circle
// distance to (lat, lon). Anchor counts are small enough that a linear scan
// beats maintaining a spatial index.
func (p *ReferencePath) NearestAnchor(lat, lon float64) NearestMatch {
	query := Coordinate{Lat: lat, Lon: lon}
	best := NearestMatch{Anchor: p.anchors[0], DistanceMiles: HaversineMiles(query, p.anchors[0].Coordinate())}
	for _, a := range p.anchors[1:] {
		d := HaversineMiles(query, a.Coordinate())
		if d < best.DistanceMiles {
			best = NearestMatch{Anchor: a, DistanceMiles: d}
		}
	}
	return best
}

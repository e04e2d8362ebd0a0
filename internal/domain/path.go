package domain

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/twpayne/go-polyline"
)

// DecodePath decodes a Google encoded polyline. An empty string is a valid
// empty path.
func DecodePath(encoded string) ([]Coordinate, error) {
	if encoded == "" {
		return nil, nil
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}
	path := make([]Coordinate, len(coords))
	for i, c := range coords {
		path[i] = Coordinate{Lat: c[0], Lon: c[1]}
		if err := path[i].Validate(); err != nil {
			return nil, fmt.Errorf("decode polyline: point %d: %w", i, err)
		}
	}
	return path, nil
}

// EncodePath encodes a path as a Google polyline.
func EncodePath(path []Coordinate) string {
	coords := make([][]float64, len(path))
	for i, c := range path {
		coords[i] = []float64{c.Lat, c.Lon}
	}
	return string(polyline.EncodeCoords(coords))
}

// DistanceMeters is the haversine distance between two coordinates.
func DistanceMeters(a, b Coordinate) float64 {
	return geo.DistanceHaversine(a.point(), b.point())
}

// NearestSegment measures the distance in meters from c to the path, taking
// each leg between consecutive vertices as a line. The index is the leg
// endpoint closer to the foot of the perpendicular, the earlier one on a tie.
// A single-vertex path measures to that vertex; an empty path yields -1 and
// +Inf.
func NearestSegment(path []Coordinate, c Coordinate) (int, float64) {
	switch len(path) {
	case 0:
		return -1, math.Inf(1)
	case 1:
		return 0, DistanceMeters(path[0], c)
	}

	best, bestDist := -1, math.Inf(1)
	for i := 0; i < len(path)-1; i++ {
		foot, t := footOnLeg(path[i], path[i+1], c)
		if d := DistanceMeters(foot, c); d < bestDist {
			best, bestDist = i, d
			if t > 0.5 {
				best = i + 1
			}
		}
	}
	return best, bestDist
}

// footOnLeg projects c onto the leg a-b in a local equirectangular plane
// centred on c and returns the clamped foot point with its fraction along
// the leg.
func footOnLeg(a, b, c Coordinate) (Coordinate, float64) {
	scale := math.Cos(c.Lat * math.Pi / 180)
	ax, ay := lonDelta(a.Lon, c.Lon)*scale, a.Lat-c.Lat
	bx, by := lonDelta(b.Lon, c.Lon)*scale, b.Lat-c.Lat
	dx, dy := bx-ax, by-ay

	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return a, 0
	}
	t := math.Max(0, math.Min(1, -(ax*dx+ay*dy)/lenSq))
	return Coordinate{
		Lat: a.Lat + t*(b.Lat-a.Lat),
		Lon: a.Lon + t*lonDelta(b.Lon, a.Lon),
	}, t
}

// lonDelta is to-from wrapped into [-180, 180).
func lonDelta(to, from float64) float64 {
	d := math.Mod(to-from+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}

func (c Coordinate) point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

package domain

import (
	"fmt"
	"math"
)

// Grid cell sizes in kilometers.
const (
	WeatherCellKm = 1.0
	RoadCellKm    = 0.5
)

const kmPerDegreeLat = 111.32

// GridCell is the snapped center of the fixed-size cell containing a coordinate.
type GridCell struct {
	SizeKm float64
	Lat    float64
	Lon    float64
}

// NewGridCell snaps (lat, lon) onto the grid of the given cell size.
// Halfway values round to even, so boundary points always land in the same cell.
func NewGridCell(lat, lon, sizeKm float64) GridCell {
	latStep := sizeKm / kmPerDegreeLat
	snappedLat := max(-90, min(90, snap(lat, latStep)))

	// The longitude step uses the snapped latitude so every point of a cell
	// row shares one step. cos reaches zero at the poles, where all
	// longitudes collapse into one cell.
	var snappedLon float64
	if cos := math.Cos(snappedLat * math.Pi / 180); math.Abs(cos) > 1e-12 {
		lonStep := sizeKm / (kmPerDegreeLat * math.Abs(cos))
		snappedLon = snap(lon, lonStep)
	}

	return GridCell{SizeKm: sizeKm, Lat: snappedLat, Lon: snappedLon}
}

// Key renders the canonical "lat,lon" cache key of the cell center.
func (g GridCell) Key() string {
	return fmt.Sprintf("%.4f,%.4f", g.Lat, g.Lon)
}

// Center returns the cell center as a Coordinate.
func (g GridCell) Center() Coordinate {
	return Coordinate{Lat: g.Lat, Lon: g.Lon}
}

// GridKey returns the canonical key of the cell containing (lat, lon).
func GridKey(lat, lon, sizeKm float64) string {
	return NewGridCell(lat, lon, sizeKm).Key()
}

func snap(v, step float64) float64 {
	s := math.RoundToEven(v/step) * step
	if s == 0 {
		return 0 // drop negative zero so keys never render as "-0.0000"
	}
	return s
}

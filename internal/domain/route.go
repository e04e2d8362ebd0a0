package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNoRoutesProcessed is returned when the provider returned routes but none
// of them could be enriched.
var ErrNoRoutesProcessed = errors.New("no routes could be processed")

// TravelMode is a directions travel mode.
type TravelMode string

const (
	ModeDriving    TravelMode = "driving"
	ModeWalking    TravelMode = "walking"
	ModeBicycling  TravelMode = "bicycling"
	ModeTransit    TravelMode = "transit"
	ModeTwoWheeler TravelMode = "two_wheeler"
)

// NormalizeMode maps a requested mode onto a supported one. Anything outside
// the supported set becomes driving.
func NormalizeMode(s string) TravelMode {
	switch m := TravelMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeDriving, ModeWalking, ModeBicycling, ModeTransit, ModeTwoWheeler:
		return m
	}
	return ModeDriving
}

// RawRoute is one candidate route as returned by the directions provider.
type RawRoute struct {
	Distance        string `json:"distance"`
	Duration        string `json:"duration"`
	DistanceMeters  int    `json:"distance_m"`
	DurationSeconds int    `json:"duration_s"`
	Polyline        string `json:"polyline"`
	Summary         string `json:"summary"`
}

// DirectionsProvider fetches candidate routes. A provider that finds no route
// returns an empty slice and a nil error.
type DirectionsProvider interface {
	Directions(ctx context.Context, origin, destination string, mode TravelMode) ([]RawRoute, error)
}

// RouteCondition is the weather and road state at one point of a route.
type RouteCondition struct {
	Lat     float64       `json:"lat"`
	Lon     float64       `json:"lon"`
	Weather WeatherRecord `json:"weather"`
	Road    RoadSummary   `json:"road"`
}

// NewRouteCondition combines weather and the nearest road at a point.
func NewRouteCondition(c Coordinate, weather WeatherRecord, road *RoadRecord) RouteCondition {
	return RouteCondition{
		Lat:     c.Lat,
		Lon:     c.Lon,
		Weather: weather,
		Road:    SummarizeRoad(road, weather),
	}
}

// Route is a candidate route enriched with per-point conditions.
type Route struct {
	ID          string           `json:"id"`
	Distance    string           `json:"distance"`
	Duration    string           `json:"duration"`
	Polyline    string           `json:"polyline"`
	Summary     string           `json:"summary"`
	Mode        TravelMode       `json:"mode"`
	Risk        []float64        `json:"risk"`
	Conditions  []RouteCondition `json:"conditions"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// NewRoute assembles a Route from a provider route and its conditions.
func NewRoute(raw RawRoute, mode TravelMode, conditions []RouteCondition) Route {
	return Route{
		ID:          uuid.NewString(),
		Distance:    raw.Distance,
		Duration:    raw.Duration,
		Polyline:    raw.Polyline,
		Summary:     raw.Summary,
		Mode:        mode,
		Risk:        RiskGradient(raw.Polyline, len(conditions)),
		Conditions:  conditions,
		GeneratedAt: clock.Now().UTC(),
	}
}

// SegmentResult answers a click on a rendered route. Source is "route" when
// the click snapped onto the path and "nearest_road" when it fell back to a
// plain nearest-road lookup.
type SegmentResult struct {
	Source         string          `json:"source"`
	Index          int             `json:"index"`
	DistanceMeters float64         `json:"distance_m"`
	Condition      *RouteCondition `json:"condition,omitempty"`
	*RoadInfoResponse
}

// Segment sources.
const (
	SegmentSourceRoute       = "route"
	SegmentSourceNearestRoad = "nearest_road"
)

// SegmentSnapMeters is how close a click must be to a path vertex to count as on the route.
const SegmentSnapMeters = 100.0

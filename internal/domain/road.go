package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RoadRecord is a road segment from the spatial database.
type RoadRecord struct {
	ID             string       `json:"osm_id"`
	Code           int          `json:"code"`
	Class          string       `json:"fclass"`
	Name           string       `json:"name"`
	Ref            string       `json:"ref"`
	OneWay         bool         `json:"oneway"`
	MaxSpeed       int          `json:"maxspeed"`
	Layer          int          `json:"layer"`
	Bridge         bool         `json:"bridge"`
	Tunnel         bool         `json:"tunnel"`
	Geometry       []Coordinate `json:"geometry"`
	DistanceMeters float64      `json:"distance_m"`
}

// DisplayName returns the road name, falling back to its ref and class.
func (r RoadRecord) DisplayName() string {
	switch {
	case r.Name != "":
		return r.Name
	case r.Ref != "":
		return r.Ref
	case r.Class != "":
		return "Unnamed " + strings.ReplaceAll(r.Class, "_", " ")
	}
	return "Unnamed road"
}

// RoadFinder queries road geometry from the spatial database.
type RoadFinder interface {
	// NearestRoad returns the road closest to (lat, lon) within radiusKm, or nil
	// when none lies inside the radius.
	NearestRoad(ctx context.Context, lat, lon, radiusKm float64) (*RoadRecord, error)

	// RoadsInBBox returns up to limit roads intersecting the box.
	RoadsInBBox(ctx context.Context, box BBox, limit int) ([]RoadRecord, error)
}

// RoadSummary is the per-point road block of a RouteCondition.
type RoadSummary struct {
	Surface   string `json:"surface"`
	RoadType  string `json:"road_type"`
	Condition string `json:"condition"`
	Name      string `json:"name"`
}

const unknown = "unknown"

// UnknownRoad is the placeholder used when no road was found near a point.
func UnknownRoad() RoadSummary {
	return RoadSummary{Surface: unknown, RoadType: unknown, Condition: unknown, Name: "Unknown"}
}

// SummarizeRoad infers surface and condition for a road under the given weather.
// A nil road yields UnknownRoad.
func SummarizeRoad(road *RoadRecord, weather WeatherRecord) RoadSummary {
	if road == nil {
		return UnknownRoad()
	}
	surface := inferSurface(road.Class)
	return RoadSummary{
		Surface:   surface,
		RoadType:  roadType(road.Class),
		Condition: inferCondition(surface, weather),
		Name:      road.DisplayName(),
	}
}

// RoadInfo is the road block of the /roads/info response.
type RoadInfo struct {
	ID             string  `json:"osm_id"`
	Name           string  `json:"name"`
	Ref            string  `json:"ref,omitempty"`
	RoadType       string  `json:"road_type"`
	MaxSpeed       int     `json:"maxspeed"`
	OneWay         bool    `json:"oneway"`
	Bridge         bool    `json:"bridge"`
	Tunnel         bool    `json:"tunnel"`
	Surface        string  `json:"surface"`
	Condition      string  `json:"condition"`
	DistanceMeters float64 `json:"distance_m"`
}

// RoadInfoResponse pairs the nearest road (if any) with local weather.
type RoadInfoResponse struct {
	Road    *RoadInfo      `json:"road"`
	Weather WeatherSummary `json:"weather"`
}

// NewRoadInfoResponse builds the /roads/info payload.
func NewRoadInfoResponse(road *RoadRecord, weather WeatherRecord) RoadInfoResponse {
	resp := RoadInfoResponse{Weather: weather.Summarize()}
	if road == nil {
		return resp
	}
	s := SummarizeRoad(road, weather)
	resp.Road = &RoadInfo{
		ID:             road.ID,
		Name:           s.Name,
		Ref:            road.Ref,
		RoadType:       s.RoadType,
		MaxSpeed:       road.MaxSpeed,
		OneWay:         road.OneWay,
		Bridge:         road.Bridge,
		Tunnel:         road.Tunnel,
		Surface:        s.Surface,
		Condition:      s.Condition,
		DistanceMeters: road.DistanceMeters,
	}
	return resp
}

// OSM fclass values grouped by the surface they almost always carry.
var unpavedClasses = map[string]bool{
	"track":        true,
	"track_grade1": false,
	"track_grade2": true,
	"track_grade3": true,
	"track_grade4": true,
	"track_grade5": true,
	"bridleway":    true,
	"path":         true,
}

func inferSurface(class string) string {
	if class == "" {
		return unknown
	}
	if unpaved, ok := unpavedClasses[class]; ok {
		if unpaved {
			return "unpaved"
		}
		return "gravel"
	}
	return "paved"
}

func roadType(class string) string {
	if class == "" {
		return unknown
	}
	// motorway_link and friends share the type of their parent road.
	return strings.ReplaceAll(strings.TrimSuffix(class, "_link"), "_", " ")
}

func inferCondition(surface string, weather WeatherRecord) string {
	if !weather.OK() {
		if surface == "unpaved" {
			return "fair"
		}
		return unknown
	}
	cw := weather.CurrentWeather
	switch {
	case IsFrozen(cw.WeatherCode):
		return "poor"
	case IsPrecipitation(cw.WeatherCode) && surface != "paved":
		return "poor"
	case IsPrecipitation(cw.WeatherCode), cw.WeatherCode == 45, cw.WeatherCode == 48, cw.WindSpeed >= 50:
		return "fair"
	case surface == "unpaved":
		return "fair"
	}
	return "good"
}

// ErrInvalidBBox is returned for a bounding box that is out of range or inverted.
var ErrInvalidBBox = errors.New("invalid bounding box")

// BBox is a south/west/north/east envelope in degrees.
type BBox struct {
	South float64
	West  float64
	North float64
	East  float64
}

// Validate checks ranges and ordering.
func (b BBox) Validate() error {
	for _, c := range []Coordinate{{Lat: b.South, Lon: b.West}, {Lat: b.North, Lon: b.East}} {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidBBox, err)
		}
	}
	if b.South >= b.North || b.West >= b.East {
		return fmt.Errorf("%w: south/west must be below north/east", ErrInvalidBBox)
	}
	return nil
}

// Key renders the box at three decimals, roughly 100 m, for caching.
func (b BBox) Key() string {
	return fmt.Sprintf("%.3f,%.3f,%.3f,%.3f", b.South, b.West, b.North, b.East)
}

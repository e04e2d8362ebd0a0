package postgis

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/couchcryptid/route-conditions-service/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gorm.io/gorm"
)

const roadColumns = `osm_id, COALESCE(code, 0) AS code, COALESCE(fclass, '') AS fclass,
	COALESCE(name, '') AS name, COALESCE(ref, '') AS ref, COALESCE(oneway, '') AS oneway,
	COALESCE(maxspeed, 0) AS maxspeed, COALESCE(layer, 0) AS layer,
	COALESCE(bridge, '') AS bridge, COALESCE(tunnel, '') AS tunnel,
	ST_AsGeoJSON(geom) AS geojson`

// The && envelope lets the planner use the geometry GIST index on tables
// without the geography expression index. ST_DWithin on geography then
// filters in meters, and ordering by geography distance gives the true
// geodesic nearest.
const nearestRoadSQL = `SELECT ` + roadColumns + `,
	ST_Distance(geom::geography, ST_SetSRID(ST_MakePoint(@lon, @lat), 4326)::geography) AS distance_m
FROM roads
WHERE geom && ST_Expand(ST_SetSRID(ST_MakePoint(@lon, @lat), 4326), @envelope)
	AND ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint(@lon, @lat), 4326)::geography, @radius)
ORDER BY distance_m
LIMIT 1`

const metersPerDegree = 111320.0

// envelopeDegrees is the half-width in degrees of a square around lat that
// contains every point within radiusM meters.
func envelopeDegrees(lat, radiusM float64) float64 {
	// 1% slack covers the ellipsoid against the spherical degree length.
	latDeg := radiusM * 1.01 / metersPerDegree
	// Longitude degrees shrink poleward, so size them at the far edge.
	edge := math.Abs(lat) + latDeg
	if edge >= 90 {
		return 180
	}
	return math.Min(180, latDeg/math.Cos(edge*math.Pi/180))
}

const bboxRoadsSQL = `SELECT ` + roadColumns + `, 0 AS distance_m
FROM roads
WHERE geom && ST_MakeEnvelope(@west, @south, @east, @north, 4326)
LIMIT @limit`

// RoadRepository implements domain.RoadFinder against the roads table.
// All queries are read-only.
type RoadRepository struct {
	db *gorm.DB
}

// NewRoadRepository creates a repository over an open database.
func NewRoadRepository(db *gorm.DB) *RoadRepository {
	return &RoadRepository{db: db}
}

func (r *RoadRepository) NearestRoad(ctx context.Context, lat, lon, radiusKm float64) (*domain.RoadRecord, error) {
	var rows []roadRow
	radiusM := radiusKm * 1000
	err := r.db.WithContext(ctx).Raw(nearestRoadSQL, map[string]any{
		"lat":      lat,
		"lon":      lon,
		"radius":   radiusM,
		"envelope": envelopeDegrees(lat, radiusM),
	}).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("nearest road query: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rec, err := rows[0].toRecord()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RoadRepository) RoadsInBBox(ctx context.Context, box domain.BBox, limit int) ([]domain.RoadRecord, error) {
	var rows []roadRow
	err := r.db.WithContext(ctx).Raw(bboxRoadsSQL, map[string]any{
		"south": box.South,
		"west":  box.West,
		"north": box.North,
		"east":  box.East,
		"limit": limit,
	}).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("bbox road query: %w", err)
	}

	roads := make([]domain.RoadRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		roads = append(roads, rec)
	}
	return roads, nil
}

// CheckReadiness pings the database.
func (r *RoadRepository) CheckReadiness(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type roadRow struct {
	OsmID     string  `gorm:"column:osm_id"`
	Code      int     `gorm:"column:code"`
	Fclass    string  `gorm:"column:fclass"`
	Name      string  `gorm:"column:name"`
	Ref       string  `gorm:"column:ref"`
	Oneway    string  `gorm:"column:oneway"`
	Maxspeed  int     `gorm:"column:maxspeed"`
	Layer     int     `gorm:"column:layer"`
	Bridge    string  `gorm:"column:bridge"`
	Tunnel    string  `gorm:"column:tunnel"`
	GeoJSON   string  `gorm:"column:geojson"`
	DistanceM float64 `gorm:"column:distance_m"`
}

func (row roadRow) toRecord() (domain.RoadRecord, error) {
	geom, err := parseGeometry(row.GeoJSON)
	if err != nil {
		return domain.RoadRecord{}, fmt.Errorf("road %s: %w", row.OsmID, err)
	}
	return domain.RoadRecord{
		ID:             row.OsmID,
		Code:           row.Code,
		Class:          row.Fclass,
		Name:           row.Name,
		Ref:            row.Ref,
		OneWay:         isOneWay(row.Oneway),
		MaxSpeed:       row.Maxspeed,
		Layer:          row.Layer,
		Bridge:         isTrue(row.Bridge),
		Tunnel:         isTrue(row.Tunnel),
		Geometry:       geom,
		DistanceMeters: row.DistanceM,
	}, nil
}

// parseGeometry flattens a GeoJSON LineString or MultiLineString into coordinates.
func parseGeometry(s string) ([]domain.Coordinate, error) {
	if s == "" {
		return nil, nil
	}
	g, err := geojson.UnmarshalGeometry([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("parse geometry: %w", err)
	}

	var lines []orb.LineString
	switch geom := g.Geometry().(type) {
	case orb.LineString:
		lines = []orb.LineString{geom}
	case orb.MultiLineString:
		lines = geom
	default:
		return nil, fmt.Errorf("parse geometry: unsupported type %T", geom)
	}

	var coords []domain.Coordinate
	for _, ls := range lines {
		for _, p := range ls {
			coords = append(coords, domain.Coordinate{Lat: p.Lat(), Lon: p.Lon()})
		}
	}
	return coords, nil
}

// Shapefile exports encode oneway as F (forward), T (backward) or B (both).
func isOneWay(v string) bool {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "F", "T", "YES", "TRUE", "1":
		return true
	}
	return false
}

func isTrue(v string) bool {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "T", "YES", "TRUE", "1":
		return true
	}
	return false
}

package pipeline

import (
	"context"

	"github.com/couchcryptid/route-conditions-service/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Service is the read API behind the HTTP handlers.
type Service struct {
	routes  *RouteService
	weather *WeatherLookup
	roads   *RoadLookup
}

// NewService bundles the lookups into one facade.
func NewService(routes *RouteService, weather *WeatherLookup, roads *RoadLookup) *Service {
	return &Service{routes: routes, weather: weather, roads: roads}
}

func (s *Service) GetRoutes(ctx context.Context, origin, destination, mode string) ([]domain.Route, error) {
	return s.routes.GetRoutes(ctx, origin, destination, mode)
}

// GetWeather queries the provider at the exact point; the cache is still
// shared per 1 km cell.
func (s *Service) GetWeather(ctx context.Context, lat, lon float64) domain.WeatherRecord {
	return s.weather.GetWeather(ctx, lat, lon, false)
}

// RoadInfo returns the nearest road and the weather at a point.
func (s *Service) RoadInfo(ctx context.Context, lat, lon float64) domain.RoadInfoResponse {
	weather, road := s.lookup(ctx, domain.Coordinate{Lat: lat, Lon: lon})
	return domain.NewRoadInfoResponse(road, weather)
}

func (s *Service) RoadsInBBox(ctx context.Context, box domain.BBox) ([]domain.RoadRecord, error) {
	return s.roads.RoadsInBBox(ctx, box)
}

// Segment answers a click at (lat, lon) on a rendered route. When the click
// lies within SegmentSnapMeters of the path the condition at the nearer
// endpoint of the closest leg is returned, computed from its nearest sample. Otherwise it falls back to a
// plain road info lookup at the click.
func (s *Service) Segment(ctx context.Context, lat, lon float64, encoded string) (domain.SegmentResult, error) {
	click := domain.Coordinate{Lat: lat, Lon: lon}
	path, err := domain.DecodePath(encoded)
	if err != nil {
		return domain.SegmentResult{}, err
	}

	idx, dist := domain.NearestSegment(path, click)
	if idx < 0 || dist > domain.SegmentSnapMeters {
		info := s.RoadInfo(ctx, lat, lon)
		return domain.SegmentResult{
			Source:           domain.SegmentSourceNearestRoad,
			Index:            -1,
			RoadInfoResponse: &info,
		}, nil
	}

	samples := domain.SampleIndices(len(path), s.routes.interval)
	sample := path[samples[domain.NearestSample(samples, idx)]]
	weather, road := s.lookup(ctx, sample)

	cond := domain.NewRouteCondition(path[idx], weather, road)
	return domain.SegmentResult{
		Source:         domain.SegmentSourceRoute,
		Index:          idx,
		DistanceMeters: dist,
		Condition:      &cond,
	}, nil
}

func (s *Service) lookup(ctx context.Context, c domain.Coordinate) (domain.WeatherRecord, *domain.RoadRecord) {
	var (
		weather domain.WeatherRecord
		road    *domain.RoadRecord
	)
	var g errgroup.Group
	g.Go(func() error {
		weather = s.weather.GetWeather(ctx, c.Lat, c.Lon, true)
		return nil
	})
	g.Go(func() error {
		road = s.roads.NearestRoad(ctx, c.Lat, c.Lon, 0)
		return nil
	})
	_ = g.Wait()
	return weather, road
}

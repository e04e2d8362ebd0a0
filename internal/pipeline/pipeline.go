// Package pipeline aggregates weather and road conditions along routes.
package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/route-conditions-service/internal/domain"
	"github.com/couchcryptid/route-conditions-service/internal/observability"
	"golang.org/x/sync/errgroup"
)

// WeatherSource returns one weather record per coordinate.
type WeatherSource interface {
	GetWeatherForCoords(ctx context.Context, coords []domain.Coordinate) []domain.WeatherRecord
}

// RoadSource returns one nearest road (or nil) per coordinate. A
// non-positive radius selects the source's configured search radius.
type RoadSource interface {
	NearestRoadsForCoords(ctx context.Context, coords []domain.Coordinate, radiusKm float64) []*domain.RoadRecord
}

// Pipeline turns an encoded path into per-point conditions.
type Pipeline struct {
	weather  WeatherSource
	roads    RoadSource
	interval int
	metrics  *observability.Metrics
}

// New creates a Pipeline sampling every interval points by default.
func New(weather WeatherSource, roads RoadSource, interval int, metrics *observability.Metrics) *Pipeline {
	if interval < 1 {
		interval = domain.DefaultSampleInterval
	}
	return &Pipeline{weather: weather, roads: roads, interval: interval, metrics: metrics}
}

// GetConditions decodes the path and returns exactly one condition per point.
// Weather and roads are fetched only for sampled points; every other point
// copies the nearest sample and keeps its own coordinate. sampleInterval < 1
// uses the pipeline default.
func (p *Pipeline) GetConditions(ctx context.Context, encoded string, sampleInterval int) ([]domain.RouteCondition, error) {
	path, err := domain.DecodePath(encoded)
	if err != nil {
		return nil, err
	}
	if len(path) == 0 {
		return []domain.RouteCondition{}, nil
	}
	if sampleInterval < 1 {
		sampleInterval = p.interval
	}

	samples := domain.SampleIndices(len(path), sampleInterval)
	sampled := make([]domain.Coordinate, len(samples))
	for k, i := range samples {
		sampled[k] = path[i]
	}
	p.metrics.RoutePoints.Observe(float64(len(path)))
	p.metrics.RouteSamples.Observe(float64(len(samples)))

	var (
		weather []domain.WeatherRecord
		roads   []*domain.RoadRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		weather = p.weather.GetWeatherForCoords(gctx, sampled)
		return nil
	})
	g.Go(func() error {
		roads = p.roads.NearestRoadsForCoords(gctx, sampled, 0)
		return nil
	})
	_ = g.Wait()

	if len(weather) != len(sampled) || len(roads) != len(sampled) {
		return nil, fmt.Errorf("condition lookup returned %d weather and %d road records for %d samples",
			len(weather), len(roads), len(sampled))
	}

	perSample := make([]domain.RouteCondition, len(samples))
	for k := range samples {
		perSample[k] = domain.NewRouteCondition(sampled[k], weather[k], roads[k])
	}

	conditions := make([]domain.RouteCondition, len(path))
	for i, c := range path {
		cond := perSample[domain.NearestSample(samples, i)]
		cond.Lat, cond.Lon = c.Lat, c.Lon
		conditions[i] = cond
	}
	return conditions, nil
}

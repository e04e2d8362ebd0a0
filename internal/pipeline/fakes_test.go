package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/route-conditions-service/internal/adapter/memory"
	"github.com/couchcryptid/route-conditions-service/internal/domain"
	"github.com/couchcryptid/route-conditions-service/internal/observability"
	"github.com/couchcryptid/route-conditions-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// --- weather ---

type fakeWeather struct {
	mu    sync.Mutex
	calls []domain.Coordinate
	err   error
}

func (f *fakeWeather) CurrentWeather(_ context.Context, lat, lon float64) (domain.WeatherRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, domain.Coordinate{Lat: lat, Lon: lon})
	if f.err != nil {
		return domain.WeatherRecord{}, f.err
	}
	return domain.WeatherRecord{
		Latitude:  lat,
		Longitude: lon,
		CurrentWeather: &domain.CurrentWeather{
			Temperature: 21.5,
			WindSpeed:   9,
			WeatherCode: 1,
			Time:        "2025-03-03T14:00",
		},
	}, nil
}

func (f *fakeWeather) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// --- roads ---

type fakeFinder struct {
	mu       sync.Mutex
	queries  int
	radii    []float64
	road     func(lat, lon float64) *domain.RoadRecord
	err      error
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32

	bboxCalls int
	bboxLimit int
}

func (f *fakeFinder) NearestRoad(_ context.Context, lat, lon, radiusKm float64) (*domain.RoadRecord, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.queries++
	f.radii = append(f.radii, radiusKm)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if f.road == nil {
		return nil, nil
	}
	return f.road(lat, lon), nil
}

func (f *fakeFinder) RoadsInBBox(_ context.Context, _ domain.BBox, limit int) ([]domain.RoadRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bboxCalls++
	f.bboxLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []domain.RoadRecord{{ID: "1", Class: "primary", Name: "Main Street"}}, nil
}

func (f *fakeFinder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

func primaryRoad(lat, lon float64) *domain.RoadRecord {
	return &domain.RoadRecord{
		ID:       "42",
		Class:    "primary",
		Name:     "Main Street",
		Geometry: []domain.Coordinate{{Lat: lat, Lon: lon}},
	}
}

// --- directions ---

type fakeDirections struct {
	routes   []domain.RawRoute
	err      error
	lastMode domain.TravelMode
}

func (f *fakeDirections) Directions(_ context.Context, _, _ string, mode domain.TravelMode) ([]domain.RawRoute, error) {
	f.lastMode = mode
	return f.routes, f.err
}

type fakePublisher struct {
	mu        sync.Mutex
	published []domain.Route
	err       error
}

func (f *fakePublisher) PublishRoutes(_ context.Context, routes []domain.Route) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, routes...)
	return f.err
}

// --- cache ---

// failingCache fails every operation.
type failingCache struct{}

func (failingCache) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("cache down")
}

func (failingCache) Set(context.Context, string, string, time.Duration) error {
	return errors.New("cache down")
}

// --- helpers ---

func newStore(clock clockwork.Clock) *memory.Store {
	return memory.NewStore(1000, clock)
}

func newWeatherLookup(p domain.WeatherProvider, c domain.Cache) *pipeline.WeatherLookup {
	return pipeline.NewWeatherLookup(p, c, zap.NewNop(), observability.NewMetricsForTesting())
}

func newRoadLookup(f domain.RoadFinder, c domain.Cache, concurrency int) *pipeline.RoadLookup {
	return pipeline.NewRoadLookup(f, c, zap.NewNop(), observability.NewMetricsForTesting(), concurrency, 0)
}

// straightPath returns n points heading north roughly 110 m apart.
func straightPath(n int) []domain.Coordinate {
	path := make([]domain.Coordinate, n)
	for i := range path {
		path[i] = domain.Coordinate{Lat: 32.70000 + float64(i)*0.001, Lon: -96.80000}
	}
	return path
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/route-conditions-service/internal/domain"
	"github.com/couchcryptid/route-conditions-service/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Road lookup defaults.
const (
	DefaultRoadConcurrency = 8
	DefaultRoadRadiusKm    = 0.5
	BBoxRoadLimit          = 5000
)

// cachedNull marks a cell known to have no road nearby.
const cachedNull = "null"

// RoadLookup resolves nearest roads through the cache, one query per 0.5 km cell.
type RoadLookup struct {
	finder      domain.RoadFinder
	cache       domain.Cache
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	radiusKm    float64
}

// NewRoadLookup creates a RoadLookup. Non-positive concurrency or radius fall
// back to the defaults.
func NewRoadLookup(finder domain.RoadFinder, cache domain.Cache, logger *zap.Logger, metrics *observability.Metrics, concurrency int, radiusKm float64) *RoadLookup {
	if concurrency < 1 {
		concurrency = DefaultRoadConcurrency
	}
	if radiusKm <= 0 {
		radiusKm = DefaultRoadRadiusKm
	}
	return &RoadLookup{
		finder:      finder,
		cache:       cache,
		logger:      logger,
		metrics:     metrics,
		concurrency: concurrency,
		radiusKm:    radiusKm,
	}
}

// NearestRoad returns the nearest road within radiusKm of a single point, or
// nil.
func (r *RoadLookup) NearestRoad(ctx context.Context, lat, lon, radiusKm float64) *domain.RoadRecord {
	return r.NearestRoadsForCoords(ctx, []domain.Coordinate{{Lat: lat, Lon: lon}}, radiusKm)[0]
}

// NearestRoadsForCoords returns the nearest road for every coordinate, in
// input order. Coordinates sharing a 0.5 km cell share the result of the
// first coordinate seen in that cell. A failed query yields nil for its
// cell and never aborts the batch. A non-positive radiusKm uses the radius
// the lookup was built with.
func (r *RoadLookup) NearestRoadsForCoords(ctx context.Context, coords []domain.Coordinate, radiusKm float64) []*domain.RoadRecord {
	out := make([]*domain.RoadRecord, len(coords))
	if len(coords) == 0 {
		return out
	}
	if radiusKm <= 0 {
		radiusKm = r.radiusKm
	}

	reps := make(map[string]domain.Coordinate)
	members := make(map[string][]int)
	var order []string
	for i, c := range coords {
		key := domain.GridKey(c.Lat, c.Lon, domain.RoadCellKm)
		if _, seen := reps[key]; !seen {
			reps[key] = c
			order = append(order, key)
		}
		members[key] = append(members[key], i)
	}

	results := make(map[string]*domain.RoadRecord, len(order))
	var misses []string
	for _, key := range order {
		road, ok := r.cached(ctx, key)
		if ok {
			results[key] = road
			continue
		}
		misses = append(misses, key)
	}

	if len(misses) > 0 {
		var mu sync.Mutex
		var g errgroup.Group
		g.SetLimit(r.concurrency)
		for _, key := range misses {
			g.Go(func() error {
				road := r.queryAndCache(ctx, key, reps[key], radiusKm)
				mu.Lock()
				results[key] = road
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait() // queryAndCache never returns an error
	}

	for _, key := range order {
		for _, i := range members[key] {
			out[i] = results[key]
		}
	}
	return out
}

// RoadsInBBox returns the roads intersecting box, cached for a day.
func (r *RoadLookup) RoadsInBBox(ctx context.Context, box domain.BBox) ([]domain.RoadRecord, error) {
	if err := box.Validate(); err != nil {
		return nil, err
	}
	key := domain.BBoxKeyPrefix + box.Key()

	raw, ok, err := r.cache.Get(ctx, key)
	switch {
	case err != nil:
		r.metrics.CacheLookups.WithLabelValues("bbox", "error").Inc()
		r.logger.Warn("bbox cache read failed", zap.String("key", key), zap.Error(err))
	case ok:
		var roads []domain.RoadRecord
		if err := json.Unmarshal([]byte(raw), &roads); err == nil {
			r.metrics.CacheLookups.WithLabelValues("bbox", "hit").Inc()
			return roads, nil
		}
		r.metrics.CacheLookups.WithLabelValues("bbox", "error").Inc()
	default:
		r.metrics.CacheLookups.WithLabelValues("bbox", "miss").Inc()
	}

	roads, err := r.finder.RoadsInBBox(ctx, box, BBoxRoadLimit)
	if err != nil {
		return nil, fmt.Errorf("roads in bbox: %w", err)
	}
	if roads == nil {
		roads = []domain.RoadRecord{}
	}
	if data, err := json.Marshal(roads); err == nil {
		if err := r.cache.Set(ctx, key, string(data), domain.BBoxTTL); err != nil {
			r.logger.Warn("bbox cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return roads, nil
}

// cached reports a hit with its road, which is nil for a negative entry.
func (r *RoadLookup) cached(ctx context.Context, key string) (*domain.RoadRecord, bool) {
	raw, ok, err := r.cache.Get(ctx, domain.RoadKeyPrefix+key)
	if err != nil {
		r.metrics.CacheLookups.WithLabelValues("road", "error").Inc()
		r.logger.Warn("road cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		r.metrics.CacheLookups.WithLabelValues("road", "miss").Inc()
		return nil, false
	}

	var road *domain.RoadRecord
	if err := json.Unmarshal([]byte(raw), &road); err != nil {
		r.metrics.CacheLookups.WithLabelValues("road", "error").Inc()
		r.logger.Warn("road cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	r.metrics.CacheLookups.WithLabelValues("road", "hit").Inc()
	return road, true
}

func (r *RoadLookup) queryAndCache(ctx context.Context, key string, c domain.Coordinate, radiusKm float64) *domain.RoadRecord {
	start := time.Now()
	road, err := r.finder.NearestRoad(ctx, c.Lat, c.Lon, radiusKm)
	r.metrics.RoadQueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		r.metrics.RoadQueries.WithLabelValues("error").Inc()
		r.logger.Warn("nearest road query failed",
			zap.String("key", key),
			zap.Float64("lat", c.Lat),
			zap.Float64("lon", c.Lon),
			zap.Error(err))
		return nil
	}

	value, ttl := cachedNull, domain.RoadEmptyTTL
	if road != nil {
		r.metrics.RoadQueries.WithLabelValues("found").Inc()
		data, err := json.Marshal(road)
		if err != nil {
			r.logger.Warn("road encode failed", zap.String("key", key), zap.Error(err))
			return road
		}
		value, ttl = string(data), domain.RoadFoundTTL
	} else {
		r.metrics.RoadQueries.WithLabelValues("empty").Inc()
	}

	if err := r.cache.Set(ctx, domain.RoadKeyPrefix+key, value, ttl); err != nil {
		r.logger.Warn("road cache write failed", zap.String("key", key), zap.Error(err))
	}
	return road
}

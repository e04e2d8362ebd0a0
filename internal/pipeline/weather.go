package pipeline

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/couchcryptid/route-conditions-service/internal/domain"
	"github.com/couchcryptid/route-conditions-service/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WeatherLookup serves current weather through the cache, one provider call
// per 1 km grid cell.
type WeatherLookup struct {
	provider domain.WeatherProvider
	cache    domain.Cache
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewWeatherLookup creates a WeatherLookup.
func NewWeatherLookup(provider domain.WeatherProvider, cache domain.Cache, logger *zap.Logger, metrics *observability.Metrics) *WeatherLookup {
	return &WeatherLookup{provider: provider, cache: cache, logger: logger, metrics: metrics}
}

// GetWeather returns the weather at (lat, lon). With snapToGrid the provider
// is queried at the cell center so every point of a cell shares one reading.
// Provider failures come back as an error-carrying record and are not cached.
func (w *WeatherLookup) GetWeather(ctx context.Context, lat, lon float64, snapToGrid bool) domain.WeatherRecord {
	cell := domain.NewGridCell(lat, lon, domain.WeatherCellKm)
	q := domain.Coordinate{Lat: lat, Lon: lon}
	if snapToGrid {
		q = cell.Center()
	}
	return w.fetch(ctx, domain.WeatherKeyPrefix+cell.Key(), q)
}

// GetWeatherForCoords returns one record per input coordinate, in order.
// Each distinct 1 km cell is fetched once; cells are fetched concurrently.
func (w *WeatherLookup) GetWeatherForCoords(ctx context.Context, coords []domain.Coordinate) []domain.WeatherRecord {
	out := make([]domain.WeatherRecord, len(coords))
	if len(coords) == 0 {
		return out
	}

	cells := make(map[string]domain.GridCell)
	members := make(map[string][]int)
	var order []string
	for i, c := range coords {
		cell := domain.NewGridCell(c.Lat, c.Lon, domain.WeatherCellKm)
		key := cell.Key()
		if _, seen := cells[key]; !seen {
			cells[key] = cell
			order = append(order, key)
		}
		members[key] = append(members[key], i)
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, key := range order {
		g.Go(func() error {
			rec := w.fetch(ctx, domain.WeatherKeyPrefix+key, cells[key].Center())
			mu.Lock()
			for _, i := range members[key] {
				out[i] = rec
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // fetch never returns an error

	return out
}

func (w *WeatherLookup) fetch(ctx context.Context, key string, q domain.Coordinate) domain.WeatherRecord {
	if rec, ok := w.cached(ctx, key); ok {
		return rec
	}

	rec, err := w.provider.CurrentWeather(ctx, q.Lat, q.Lon)
	if err != nil {
		w.logger.Warn("weather fetch failed",
			zap.String("key", key),
			zap.Error(err))
		return domain.WeatherError(err.Error())
	}

	data, err := json.Marshal(rec)
	if err != nil {
		w.logger.Warn("weather encode failed", zap.String("key", key), zap.Error(err))
		return rec
	}
	if err := w.cache.Set(ctx, key, string(data), domain.WeatherTTL); err != nil {
		w.logger.Warn("weather cache write failed", zap.String("key", key), zap.Error(err))
	}
	return rec
}

func (w *WeatherLookup) cached(ctx context.Context, key string) (domain.WeatherRecord, bool) {
	raw, ok, err := w.cache.Get(ctx, key)
	if err != nil {
		w.metrics.CacheLookups.WithLabelValues("weather", "error").Inc()
		w.logger.Warn("weather cache read failed", zap.String("key", key), zap.Error(err))
		return domain.WeatherRecord{}, false
	}
	if !ok {
		w.metrics.CacheLookups.WithLabelValues("weather", "miss").Inc()
		return domain.WeatherRecord{}, false
	}

	var rec domain.WeatherRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		w.metrics.CacheLookups.WithLabelValues("weather", "error").Inc()
		w.logger.Warn("weather cache entry corrupt", zap.String("key", key), zap.Error(err))
		return domain.WeatherRecord{}, false
	}
	w.metrics.CacheLookups.WithLabelValues("weather", "hit").Inc()
	return rec, true
}

package pipeline_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/couchcryptid/route-conditions-service/internal/domain"
	"github.com/couchcryptid/route-conditions-service/internal/observability"
	"github.com/couchcryptid/route-conditions-service/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// spySources tags every record with its position in the sampled batch.
type spySources struct {
	weatherCalls atomic.Int32
	roadCalls    atomic.Int32
	batch        atomic.Int32
}

func (s *spySources) GetWeatherForCoords(_ context.Context, coords []domain.Coordinate) []domain.WeatherRecord {
	s.weatherCalls.Add(1)
	s.batch.Store(int32(len(coords)))
	out := make([]domain.WeatherRecord, len(coords))
	for k, c := range coords {
		out[k] = domain.WeatherRecord{
			Latitude:       c.Lat,
			Longitude:      c.Lon,
			CurrentWeather: &domain.CurrentWeather{Temperature: float64(k), WeatherCode: 0},
		}
	}
	return out
}

func (s *spySources) NearestRoadsForCoords(_ context.Context, coords []domain.Coordinate, _ float64) []*domain.RoadRecord {
	s.roadCalls.Add(1)
	out := make([]*domain.RoadRecord, len(coords))
	for k := range coords {
		if k%2 == 0 {
			out[k] = &domain.RoadRecord{ID: fmt.Sprint(k), Class: "residential", Name: fmt.Sprintf("Road %d", k)}
		}
	}
	return out
}

func newPipeline(src *spySources) *pipeline.Pipeline {
	return pipeline.New(src, src, 0, observability.NewMetricsForTesting())
}

func TestGetConditions_EmptyPath(t *testing.T) {
	src := &spySources{}
	p := newPipeline(src)

	conds, err := p.GetConditions(context.Background(), "", 8)

	require.NoError(t, err)
	assert.NotNil(t, conds)
	assert.Empty(t, conds)
	assert.Zero(t, src.weatherCalls.Load())
	assert.Zero(t, src.roadCalls.Load())
}

func TestGetConditions_DecodeError(t *testing.T) {
	p := newPipeline(&spySources{})

	_, err := p.GetConditions(context.Background(), "_p~iF~ps|U_", 8)

	assert.Error(t, err)
}

func TestGetConditions_OneConditionPerPoint(t *testing.T) {
	for _, n := range []int{1, 2, 7, 8, 9, 20, 57} {
		for _, interval := range []int{-1, 0, 1, 3, 8, 100} {
			t.Run(fmt.Sprintf("n=%d/interval=%d", n, interval), func(t *testing.T) {
				src := &spySources{}
				p := newPipeline(src)
				encoded := domain.EncodePath(straightPath(n))
				path, err := domain.DecodePath(encoded)
				require.NoError(t, err)

				conds, err := p.GetConditions(context.Background(), encoded, interval)
				require.NoError(t, err)

				require.Len(t, conds, n)
				for i, c := range conds {
					assert.Equal(t, path[i].Lat, c.Lat)
					assert.Equal(t, path[i].Lon, c.Lon)
				}
				// First and last points always carry their own sample.
				assert.InDelta(t, path[0].Lat, conds[0].Weather.Latitude, 0)
				assert.InDelta(t, path[n-1].Lat, conds[n-1].Weather.Latitude, 0)
				assert.Equal(t, int32(1), src.weatherCalls.Load())
				assert.Equal(t, int32(1), src.roadCalls.Load())
			})
		}
	}
}

func TestGetConditions_NearestSampleInterpolation(t *testing.T) {
	src := &spySources{}
	p := newPipeline(src)

	// 20 points at interval 8 sample indices 0, 8, 16 and 19.
	conds, err := p.GetConditions(context.Background(), domain.EncodePath(straightPath(20)), 8)
	require.NoError(t, err)
	require.Len(t, conds, 20)
	assert.Equal(t, int32(4), src.batch.Load())

	sampleOf := func(i int) float64 { return conds[i].Weather.CurrentWeather.Temperature }
	want := map[int]float64{
		0: 0, 3: 0,
		4: 0, // tie between 0 and 8 goes low
		5: 1, 8: 1, 12: 1,
		13: 2, 16: 2, 17: 2,
		18: 3, 19: 3,
	}
	for i, k := range want {
		assert.InDelta(t, k, sampleOf(i), 0, "point %d", i)
	}

	// Road summaries follow the same sample.
	assert.Equal(t, "Road 0", conds[4].Road.Name)
	assert.Equal(t, domain.UnknownRoad(), conds[5].Road)
}

func TestGetConditions_WithCachedLookups(t *testing.T) {
	clock := clockwork.NewFakeClock()
	provider := &fakeWeather{}
	finder := &fakeFinder{road: primaryRoad}
	store := newStore(clock)
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(
		pipeline.NewWeatherLookup(provider, store, zap.NewNop(), metrics),
		pipeline.NewRoadLookup(finder, store, zap.NewNop(), metrics, 0, 0),
		8, metrics)

	encoded := domain.EncodePath(straightPath(17))
	first, err := p.GetConditions(context.Background(), encoded, 0)
	require.NoError(t, err)
	weatherCalls, roadQueries := provider.count(), finder.count()

	second, err := p.GetConditions(context.Background(), encoded, 0)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("conditions changed on cached run (-first +second):\n%s", diff)
	}
	assert.Equal(t, weatherCalls, provider.count())
	assert.Equal(t, roadQueries, finder.count())
	assert.Equal(t, "paved", first[0].Road.Surface)
	assert.Equal(t, "Main Street", first[0].Road.Name)
}

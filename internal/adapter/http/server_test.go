package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	httpadapter "github.com/couchcryptid/route-conditions-service/internal/adapter/http"
	"github.com/couchcryptid/route-conditions-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type fakeService struct {
	routes    []domain.Route
	routesErr error
	mode      string

	weather domain.WeatherRecord
	info    domain.RoadInfoResponse

	roads   []domain.RoadRecord
	roadErr error
	box     domain.BBox

	segment    domain.SegmentResult
	segmentErr error
}

func (f *fakeService) GetRoutes(_ context.Context, _, _, mode string) ([]domain.Route, error) {
	f.mode = mode
	return f.routes, f.routesErr
}

func (f *fakeService) GetWeather(_ context.Context, _, _ float64) domain.WeatherRecord {
	return f.weather
}

func (f *fakeService) RoadInfo(_ context.Context, _, _ float64) domain.RoadInfoResponse {
	return f.info
}

func (f *fakeService) RoadsInBBox(_ context.Context, box domain.BBox) ([]domain.RoadRecord, error) {
	f.box = box
	if f.roadErr != nil {
		return nil, f.roadErr
	}
	if err := box.Validate(); err != nil {
		return nil, err
	}
	return f.roads, nil
}

func (f *fakeService) Segment(_ context.Context, _, _ float64, _ string) (domain.SegmentResult, error) {
	return f.segment, f.segmentErr
}

func newTestServer(svc *fakeService, readyErr error) *httpadapter.Server {
	return httpadapter.NewServer(":0", svc, &mockReadiness{err: readyErr}, []string{"http://localhost:3000"}, zap.NewNop())
}

func get(t *testing.T, srv http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(&fakeService{}, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	assert.Equal(t, http.StatusOK, get(t, newTestServer(&fakeService{}, nil), "/readyz").Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		get(t, newTestServer(&fakeService{}, fmt.Errorf("database unreachable")), "/readyz").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(&fakeService{}, nil), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRoutes(t *testing.T) {
	svc := &fakeService{routes: []domain.Route{{ID: "r1", Summary: "I-35E S", Mode: domain.ModeDriving, Conditions: []domain.RouteCondition{}}}}
	srv := newTestServer(svc, nil)

	rec := get(t, srv, "/routes?origin=Dallas&destination=Austin&mode=teleport")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[[]domain.Route](t, rec)
	require.Len(t, body, 1)
	assert.Equal(t, "I-35E S", body[0].Summary)
	assert.Equal(t, "teleport", svc.mode)
}

func TestRoutes_MissingParams(t *testing.T) {
	srv := newTestServer(&fakeService{}, nil)

	for _, target := range []string{"/routes", "/routes?origin=Dallas", "/routes?destination=Austin"} {
		rec := get(t, srv, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestRoutes_TotalFailure(t *testing.T) {
	srv := newTestServer(&fakeService{routesErr: domain.ErrNoRoutesProcessed}, nil)

	rec := get(t, srv, "/routes?origin=Dallas&destination=Austin")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, domain.ErrNoRoutesProcessed.Error(), body["error"])
}

func TestWeather(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		svc := &fakeService{weather: domain.WeatherRecord{
			Latitude:       32.78,
			Longitude:      -96.8,
			CurrentWeather: &domain.CurrentWeather{Temperature: 18.4, WeatherCode: 3},
		}}
		rec := get(t, newTestServer(svc, nil), "/weather?lat=32.7767&lon=-96.7970")

		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[domain.WeatherRecord](t, rec)
		require.NotNil(t, body.CurrentWeather)
		assert.InDelta(t, 18.4, body.CurrentWeather.Temperature, 1e-9)
	})

	t.Run("provider error", func(t *testing.T) {
		svc := &fakeService{weather: domain.WeatherError("unexpected status 503")}
		rec := get(t, newTestServer(svc, nil), "/weather?lat=32.7767&lon=-96.7970")

		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[map[string]string](t, rec)
		assert.Equal(t, "error", body["status"])
		assert.Equal(t, "unexpected status 503", body["message"])
	})

	t.Run("bad coordinates", func(t *testing.T) {
		for _, q := range []string{"", "?lat=abc&lon=1", "?lat=95&lon=1"} {
			rec := get(t, newTestServer(&fakeService{}, nil), "/weather"+q)
			assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		}
	})
}

func TestRoadInfo(t *testing.T) {
	svc := &fakeService{info: domain.NewRoadInfoResponse(nil, domain.WeatherError("timeout"))}

	rec := get(t, newTestServer(svc, nil), "/roads/info?lat=32.7767&lon=-96.7970")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Contains(t, body, "road")
	assert.Nil(t, body["road"])
	weather, ok := body["weather"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Unknown", weather["summary"])
}

func TestSegment(t *testing.T) {
	t.Run("on route", func(t *testing.T) {
		cond := domain.RouteCondition{Lat: 32.78, Lon: -96.8, Road: domain.UnknownRoad()}
		svc := &fakeService{segment: domain.SegmentResult{
			Source: domain.SegmentSourceRoute, Index: 5, DistanceMeters: 12.5, Condition: &cond,
		}}
		rec := get(t, newTestServer(svc, nil), "/routes/segment?lat=32.78&lon=-96.8&polyline=abc")

		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[map[string]any](t, rec)
		assert.Equal(t, "route", body["source"])
		assert.InDelta(t, 5, body["index"], 0)
		assert.Contains(t, body, "condition")
		assert.NotContains(t, body, "road")
	})

	t.Run("nearest road", func(t *testing.T) {
		info := domain.NewRoadInfoResponse(&domain.RoadRecord{ID: "7", Class: "primary", Name: "Main Street"}, domain.WeatherRecord{})
		svc := &fakeService{segment: domain.SegmentResult{
			Source: domain.SegmentSourceNearestRoad, Index: -1, RoadInfoResponse: &info,
		}}
		rec := get(t, newTestServer(svc, nil), "/routes/segment?lat=32.78&lon=-96.8")

		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[map[string]any](t, rec)
		assert.Equal(t, "nearest_road", body["source"])
		road, ok := body["road"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Main Street", road["name"])
		assert.Contains(t, body, "weather")
	})

	t.Run("bad polyline", func(t *testing.T) {
		svc := &fakeService{segmentErr: errors.New("decode polyline: unterminated sequence")}
		rec := get(t, newTestServer(svc, nil), "/routes/segment?lat=32.78&lon=-96.8&polyline=_")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRoadsBBox(t *testing.T) {
	svc := &fakeService{roads: []domain.RoadRecord{{
		ID:       "28471634",
		Class:    "primary",
		Name:     "Ross Avenue",
		MaxSpeed: 56,
		Geometry: []domain.Coordinate{{Lat: 32.78, Lon: -96.80}, {Lat: 32.79, Lon: -96.79}},
	}}}
	srv := newTestServer(svc, nil)

	rec := get(t, srv, "/roads/bbox?south=32.77&west=-96.81&north=32.80&east=-96.78")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.BBox{South: 32.77, West: -96.81, North: 32.80, East: -96.78}, svc.box)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Type     string `json:"type"`
			Geometry struct {
				Type        string      `json:"type"`
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "LineString", fc.Features[0].Geometry.Type)
	assert.Equal(t, []float64{-96.80, 32.78}, fc.Features[0].Geometry.Coordinates[0])
	assert.Equal(t, "Ross Avenue", fc.Features[0].Properties["name"])
	assert.Equal(t, "primary", fc.Features[0].Properties["fclass"])
}

func TestRoadsBBox_BadRequest(t *testing.T) {
	srv := newTestServer(&fakeService{}, nil)

	for _, q := range []string{
		"",
		"?south=a&west=-96.81&north=32.80&east=-96.78",
		"?south=32.80&west=-96.81&north=32.77&east=-96.78",
	} {
		rec := get(t, srv, "/roads/bbox"+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestRoadsBBox_QueryFailure(t *testing.T) {
	srv := newTestServer(&fakeService{roadErr: errors.New("connection reset")}, nil)

	rec := get(t, srv, "/roads/bbox?south=32.77&west=-96.81&north=32.80&east=-96.78")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORS(t *testing.T) {
	srv := newTestServer(&fakeService{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

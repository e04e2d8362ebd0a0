// Package googlemaps implements domain.DirectionsProvider with the Google
// Directions API.
package googlemaps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/route-conditions-service/internal/domain"
	"github.com/couchcryptid/route-conditions-service/internal/observability"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/directions/json"

// Client implements domain.DirectionsProvider.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewClient creates a Directions API client.
func NewClient(apiKey string, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "directions",
			MaxRequests: 5,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
		}),
		logger:  logger,
		metrics: metrics,
	}
}

// Directions requests alternative routes between origin and destination.
func (c *Client) Directions(ctx context.Context, origin, destination string, mode domain.TravelMode) ([]domain.RawRoute, error) {
	params := url.Values{
		"origin":       {origin},
		"destination":  {destination},
		"mode":         {string(mode)},
		"alternatives": {"true"},
		"key":          {c.apiKey},
	}

	c.logger.Debug("directions request",
		zap.String("origin", origin), zap.String("destination", destination), zap.String("mode", string(mode)))

	start := time.Now()
	result, err := c.breaker.Execute(func() (any, error) {
		return c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	})
	c.metrics.DirectionsAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.DirectionsRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	routes := result.([]domain.RawRoute)
	if len(routes) == 0 {
		c.metrics.DirectionsRequests.WithLabelValues("empty").Inc()
	} else {
		c.metrics.DirectionsRequests.WithLabelValues("success").Inc()
	}
	return routes, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]domain.RawRoute, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directions request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("directions API error: status %d: %s", resp.StatusCode, body)
	}

	var dr response
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	switch dr.Status {
	case "OK":
	case "ZERO_RESULTS", "NOT_FOUND":
		return []domain.RawRoute{}, nil
	default:
		return nil, fmt.Errorf("directions API error: %s: %s", dr.Status, dr.ErrorMessage)
	}

	routes := make([]domain.RawRoute, 0, len(dr.Routes))
	for _, r := range dr.Routes {
		// Distance and duration come from the first leg; a route without legs has neither.
		if len(r.Legs) == 0 {
			continue
		}
		routes = append(routes, r.toRawRoute())
	}
	return routes, nil
}

// Directions API response types.

type response struct {
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message"`
	Routes       []route `json:"routes"`
}

type route struct {
	Summary          string `json:"summary"`
	OverviewPolyline struct {
		Points string `json:"points"`
	} `json:"overview_polyline"`
	Legs []leg `json:"legs"`
}

type leg struct {
	Distance textValue `json:"distance"`
	Duration textValue `json:"duration"`
}

type textValue struct {
	Text  string `json:"text"`
	Value int    `json:"value"`
}

func (r route) toRawRoute() domain.RawRoute {
	l := r.Legs[0]
	raw := domain.RawRoute{
		Distance:        l.Distance.Text,
		Duration:        l.Duration.Text,
		DistanceMeters:  l.Distance.Value,
		DurationSeconds: l.Duration.Value,
		Polyline:        r.OverviewPolyline.Points,
		Summary:         r.Summary,
	}
	if raw.Summary == "" {
		raw.Summary = "Direct Route"
	}
	return raw
}

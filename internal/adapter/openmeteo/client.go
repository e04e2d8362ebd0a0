// Package openmeteo implements domain.WeatherProvider with the Open-Meteo forecast API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/route-conditions-service/internal/domain"
	"github.com/couchcryptid/route-conditions-service/internal/observability"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// DefaultBaseURL is the public Open-Meteo forecast endpoint.
const DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

// Client implements domain.WeatherProvider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewClient creates an Open-Meteo client. Each request is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "openmeteo",
			MaxRequests: 5,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change",
					zap.String("breaker", name), zap.Stringer("from", from), zap.Stringer("to", to))
			},
		}),
		logger:  logger,
		metrics: metrics,
	}
}

// CurrentWeather fetches current conditions at (lat, lon).
func (c *Client) CurrentWeather(ctx context.Context, lat, lon float64) (domain.WeatherRecord, error) {
	params := url.Values{
		"latitude":        {strconv.FormatFloat(lat, 'f', 4, 64)},
		"longitude":       {strconv.FormatFloat(lon, 'f', 4, 64)},
		"current_weather": {"true"},
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (any, error) {
		return c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	})
	c.metrics.WeatherAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		c.logger.Warn("weather request failed",
			zap.Float64("lat", lat), zap.Float64("lon", lon), zap.Error(err))
		return domain.WeatherRecord{}, err
	}
	c.metrics.WeatherRequests.WithLabelValues("success").Inc()
	return result.(domain.WeatherRecord), nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.WeatherRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.WeatherRecord{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WeatherRecord{}, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.WeatherRecord{}, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}

	var rec domain.WeatherRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return domain.WeatherRecord{}, fmt.Errorf("decode response: %w", err)
	}
	if rec.CurrentWeather == nil {
		return domain.WeatherRecord{}, fmt.Errorf("open-meteo response has no current_weather")
	}
	return rec, nil
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "route_conditions"

// Metrics holds the Prometheus counters and histograms for route condition lookups.
type Metrics struct {
	// Cache metrics.
	CacheLookups *prometheus.CounterVec // labels: kind={weather,road,bbox}, result={hit,miss,error}

	// Weather metrics.
	WeatherRequests    *prometheus.CounterVec // labels: outcome={success,error}
	WeatherAPIDuration prometheus.Histogram

	// Directions metrics.
	DirectionsRequests    *prometheus.CounterVec // labels: outcome={success,empty,error}
	DirectionsAPIDuration prometheus.Histogram

	// Road query metrics.
	RoadQueries       *prometheus.CounterVec // labels: outcome={found,empty,error}
	RoadQueryDuration prometheus.Histogram

	// Route metrics.
	RoutesBuilt     prometheus.Counter
	RouteFailures   prometheus.Counter
	RoutePoints     prometheus.Histogram
	RouteSamples    prometheus.Histogram
	EventsPublished *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CacheLookups,
		m.WeatherRequests,
		m.WeatherAPIDuration,
		m.DirectionsRequests,
		m.DirectionsAPIDuration,
		m.RoadQueries,
		m.RoadQueryDuration,
		m.RoutesBuilt,
		m.RouteFailures,
		m.RoutePoints,
		m.RouteSamples,
		m.EventsPublished,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	apiBuckets := []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	return &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by kind and result.",
		}, []string{"kind", "result"}),
		WeatherRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_requests_total",
			Help:      "Weather API requests by outcome.",
		}, []string{"outcome"}),
		WeatherAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_api_duration_seconds",
			Help:      "Open-Meteo request duration in seconds.",
			Buckets:   apiBuckets,
		}),
		DirectionsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directions_requests_total",
			Help:      "Directions API requests by outcome.",
		}, []string{"outcome"}),
		DirectionsAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "directions_api_duration_seconds",
			Help:      "Directions request duration in seconds.",
			Buckets:   apiBuckets,
		}),
		RoadQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "road_queries_total",
			Help:      "Nearest-road database queries by outcome.",
		}, []string{"outcome"}),
		RoadQueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "road_query_duration_seconds",
			Help:      "Nearest-road query duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		RoutesBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routes_built_total",
			Help:      "Routes enriched with conditions.",
		}),
		RouteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_failures_total",
			Help:      "Candidate routes skipped because their conditions could not be built.",
		}),
		RoutePoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_points",
			Help:      "Decoded points per route path.",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		RouteSamples: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_samples",
			Help:      "Sampled points per route path.",
			Buckets:   []float64{2, 5, 10, 25, 50, 100, 250, 500},
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Route condition events written to Kafka by outcome.",
		}, []string{"outcome"}),
	}
}

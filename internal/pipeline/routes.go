package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/route-conditions-service/internal/domain"
	"github.com/couchcryptid/route-conditions-service/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RoutePublisher receives every batch of built routes.
type RoutePublisher interface {
	PublishRoutes(ctx context.Context, routes []domain.Route) error
}

// RouteService fetches candidate routes and enriches each with conditions.
type RouteService struct {
	directions domain.DirectionsProvider
	pipeline   *Pipeline
	publisher  RoutePublisher
	logger     *zap.Logger
	metrics    *observability.Metrics
	interval   int
}

// NewRouteService creates a RouteService. publisher may be nil. An interval
// below 1 uses the pipeline's.
func NewRouteService(directions domain.DirectionsProvider, p *Pipeline, publisher RoutePublisher, logger *zap.Logger, metrics *observability.Metrics, interval int) *RouteService {
	if interval < 1 {
		interval = p.interval
	}
	return &RouteService{
		directions: directions,
		pipeline:   p,
		publisher:  publisher,
		logger:     logger,
		metrics:    metrics,
		interval:   interval,
	}
}

// FetchRoutes returns the provider's candidate routes for a normalized mode.
func (s *RouteService) FetchRoutes(ctx context.Context, origin, destination, mode string) ([]domain.RawRoute, domain.TravelMode, error) {
	m := domain.NormalizeMode(mode)
	raws, err := s.directions.Directions(ctx, origin, destination, m)
	if err != nil {
		return nil, m, fmt.Errorf("failed to fetch directions: %w", err)
	}
	return raws, m, nil
}

// GetRoutes fetches and enriches routes. Routes are enriched concurrently and
// returned in provider order; a route that fails is skipped. When the
// provider returned routes but none could be enriched the result is
// domain.ErrNoRoutesProcessed.
func (s *RouteService) GetRoutes(ctx context.Context, origin, destination, mode string) ([]domain.Route, error) {
	raws, m, err := s.FetchRoutes(ctx, origin, destination, mode)
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return []domain.Route{}, nil
	}

	built := make([]*domain.Route, len(raws))
	var g errgroup.Group
	for i, raw := range raws {
		g.Go(func() error {
			conditions, err := s.pipeline.GetConditions(ctx, raw.Polyline, s.interval)
			if err != nil {
				s.metrics.RouteFailures.Inc()
				s.logger.Warn("route skipped",
					zap.Int("index", i),
					zap.String("summary", raw.Summary),
					zap.Error(err))
				return nil
			}
			route := domain.NewRoute(raw, m, conditions)
			built[i] = &route
			return nil
		})
	}
	_ = g.Wait()

	routes := make([]domain.Route, 0, len(raws))
	for _, r := range built {
		if r != nil {
			routes = append(routes, *r)
		}
	}
	if len(routes) == 0 {
		return nil, domain.ErrNoRoutesProcessed
	}
	s.metrics.RoutesBuilt.Add(float64(len(routes)))

	s.publish(ctx, routes)
	return routes, nil
}

func (s *RouteService) publish(ctx context.Context, routes []domain.Route) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRoutes(ctx, routes); err != nil {
		s.metrics.EventsPublished.WithLabelValues("error").Inc()
		s.logger.Error("publish routes failed", zap.Int("count", len(routes)), zap.Error(err))
		return
	}
	s.metrics.EventsPublished.WithLabelValues("success").Inc()
}

// Package http exposes the route condition API over gin.
package http

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/couchcryptid/route-conditions-service/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ConditionService is the read API the handlers serve.
type ConditionService interface {
	GetRoutes(ctx context.Context, origin, destination, mode string) ([]domain.Route, error)
	GetWeather(ctx context.Context, lat, lon float64) domain.WeatherRecord
	RoadInfo(ctx context.Context, lat, lon float64) domain.RoadInfoResponse
	RoadsInBBox(ctx context.Context, box domain.BBox) ([]domain.RoadRecord, error)
	Segment(ctx context.Context, lat, lon float64, encoded string) (domain.SegmentResult, error)
}

// Server exposes the API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer creates an HTTP server. corsOrigins may contain "*" to allow any
// origin; an empty list disables CORS headers.
func NewServer(addr string, svc ConditionService, ready sharedobs.ReadinessChecker, corsOrigins []string, logger *zap.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	if len(corsOrigins) > 0 {
		router.Use(cors.New(corsConfig(corsOrigins)))
	}

	h := &handlers{svc: svc, logger: logger}
	router.GET("/routes", h.routes)
	router.GET("/routes/segment", h.segment)
	router.GET("/weather", h.weather)
	router.GET("/roads/info", h.roadInfo)
	router.GET("/roads/bbox", h.roadsBBox)

	router.GET("/healthz", gin.WrapF(sharedobs.LivenessHandler()))
	router.GET("/readyz", gin.WrapF(sharedobs.ReadinessHandler(ready)))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     router,
			ReadTimeout: 10 * time.Second,
			// Route enrichment waits on both providers and the database.
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

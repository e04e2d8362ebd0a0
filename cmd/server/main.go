package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/route-conditions-service/internal/adapter/googlemaps"
	httpadapter "github.com/couchcryptid/route-conditions-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/route-conditions-service/internal/adapter/kafka"
	"github.com/couchcryptid/route-conditions-service/internal/adapter/memory"
	"github.com/couchcryptid/route-conditions-service/internal/adapter/openmeteo"
	"github.com/couchcryptid/route-conditions-service/internal/adapter/postgis"
	redisadapter "github.com/couchcryptid/route-conditions-service/internal/adapter/redis"
	"github.com/couchcryptid/route-conditions-service/internal/adapter/sqlite"
	"github.com/couchcryptid/route-conditions-service/internal/config"
	"github.com/couchcryptid/route-conditions-service/internal/domain"
	"github.com/couchcryptid/route-conditions-service/internal/observability"
	"github.com/couchcryptid/route-conditions-service/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	metrics := observability.NewMetrics()
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache, cacheReady, closeCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	db, err := postgis.Open(cfg.DSN(), postgis.PoolConfig{
		MaxOpen:     cfg.DBMaxOpenConns,
		MaxIdle:     cfg.DBMaxIdleConns,
		MaxLifetime: cfg.DBConnLifetime,
	}, logger)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	roads := postgis.NewRoadRepository(db)

	if cfg.GoogleMapsAPIKey == "" {
		logger.Warn("GOOGLE_MAPS_API_KEY is not set; /routes will fail")
	}
	directions := googlemaps.NewClient(cfg.GoogleMapsAPIKey, cfg.DirectionsTimeout, logger, metrics)
	weatherClient := openmeteo.NewClient(cfg.WeatherBaseURL, cfg.WeatherTimeout, logger, metrics)

	// Kafka publishing is optional; a nil publisher disables it.
	var publisher pipeline.RoutePublisher
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaSinkTopic, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", zap.Error(err))
			}
		}()
		publisher = writer
		logger.Info("route publishing enabled",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaSinkTopic))
	}

	weather := pipeline.NewWeatherLookup(weatherClient, cache, logger, metrics)
	roadLookup := pipeline.NewRoadLookup(roads, cache, logger, metrics, cfg.RoadConcurrency, cfg.RoadRadiusKm)
	p := pipeline.New(weather, roadLookup, cfg.SampleInterval, metrics)
	routes := pipeline.NewRouteService(directions, p, publisher, logger, metrics, cfg.SampleInterval)
	svc := pipeline.NewService(routes, weather, roadLookup)

	ready := readinessChecks{roads}
	if cacheReady != nil {
		ready = append(ready, cacheReady)
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, ready, cfg.CORSOrigins, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

// openCache builds the configured cache backend. The returned checker is nil
// for the in-process store.
func openCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.Cache, sharedobs.ReadinessChecker, func(), error) {
	switch cfg.CacheBackend {
	case config.CacheRedis:
		store := redisadapter.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		logger.Info("cache backend", zap.String("backend", "redis"), zap.String("addr", cfg.RedisAddr))
		return store, store, func() { _ = store.Close() }, nil

	case config.CacheSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLiteCachePath, nil)
		if err != nil {
			return nil, nil, nil, err
		}
		sweeper, err := store.StartSweeper(cfg.CacheSweepInterval, logger)
		if err != nil {
			_ = store.Close()
			return nil, nil, nil, fmt.Errorf("start cache sweeper: %w", err)
		}
		logger.Info("cache backend", zap.String("backend", "sqlite"), zap.String("path", cfg.SQLiteCachePath))
		return store, store, func() {
			sweeper.Stop()
			_ = store.Close()
		}, nil

	default:
		store := memory.NewStore(cfg.CacheMaxEntries, nil)
		sweeper, err := store.StartSweeper(cfg.CacheSweepInterval, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("start cache sweeper: %w", err)
		}
		logger.Info("cache backend", zap.String("backend", "memory"), zap.Int("max_entries", cfg.CacheMaxEntries))
		return store, nil, sweeper.Stop, nil
	}
}

// readinessChecks is ready when every dependency is.
type readinessChecks []sharedobs.ReadinessChecker

func (r readinessChecks) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

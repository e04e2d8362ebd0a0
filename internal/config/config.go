package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheSQLite = "sqlite"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	// Directions provider.
	GoogleMapsAPIKey  string
	DirectionsTimeout time.Duration

	// Weather provider.
	WeatherBaseURL string
	WeatherTimeout time.Duration

	// PostGIS road database.
	DatabaseURL     string
	DBHost          string
	DBPort          string
	DBName          string
	DBUser          string
	DBPass          string
	DBSSLMode       string
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	DBConnLifetime  time.Duration
	RoadConcurrency int
	RoadRadiusKm    float64

	SampleInterval int

	// Cache store.
	CacheBackend       string
	CacheMaxEntries    int
	CacheSweepInterval time.Duration
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	SQLiteCachePath    string

	// Route condition events.
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	directionsTimeout, err := parseDuration("DIRECTIONS_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	weatherTimeout, err := parseDuration("WEATHER_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	connLifetime, err := parseDuration("DB_CONN_MAX_LIFETIME", "30m")
	if err != nil {
		return nil, err
	}
	sweepInterval, err := parseDuration("CACHE_SWEEP_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}

	maxOpen, err := parsePositiveInt("DB_MAX_OPEN_CONNS", 20)
	if err != nil {
		return nil, err
	}
	maxIdle, err := parsePositiveInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, err
	}
	roadConcurrency, err := parsePositiveInt("ROAD_QUERY_CONCURRENCY", 8)
	if err != nil {
		return nil, err
	}
	sampleInterval, err := parsePositiveInt("ROUTE_SAMPLE_INTERVAL", 8)
	if err != nil {
		return nil, err
	}
	cacheMaxEntries, err := parsePositiveInt("CACHE_MAX_ENTRIES", 10000)
	if err != nil {
		return nil, err
	}

	radius, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("ROAD_SEARCH_RADIUS_KM", "0.5"), 64)
	if err != nil || radius <= 0 {
		return nil, errors.New("invalid ROAD_SEARCH_RADIUS_KM")
	}

	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8000"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		CORSOrigins:     splitList(sharedcfg.EnvOrDefault("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")),

		GoogleMapsAPIKey:  os.Getenv("GOOGLE_MAPS_API_KEY"),
		DirectionsTimeout: directionsTimeout,

		WeatherBaseURL: sharedcfg.EnvOrDefault("WEATHER_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
		WeatherTimeout: weatherTimeout,

		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DBHost:          sharedcfg.EnvOrDefault("DB_HOST", "localhost"),
		DBPort:          sharedcfg.EnvOrDefault("DB_PORT", "5432"),
		DBName:          sharedcfg.EnvOrDefault("DB_NAME", "accinet"),
		DBUser:          sharedcfg.EnvOrDefault("DB_USER", "postgres"),
		DBPass:          os.Getenv("DB_PASS"),
		DBSSLMode:       sharedcfg.EnvOrDefault("DB_SSLMODE", "disable"),
		DBMaxOpenConns:  maxOpen,
		DBMaxIdleConns:  maxIdle,
		DBConnLifetime:  connLifetime,
		RoadConcurrency: roadConcurrency,
		RoadRadiusKm:    radius,

		SampleInterval: sampleInterval,

		CacheBackend:       strings.ToLower(sharedcfg.EnvOrDefault("CACHE_BACKEND", CacheMemory)),
		CacheMaxEntries:    cacheMaxEntries,
		CacheSweepInterval: sweepInterval,
		RedisAddr:          sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            redisDB,
		SQLiteCachePath:    sharedcfg.EnvOrDefault("SQLITE_CACHE_PATH", "route-cache.db"),

		KafkaEnabled:   os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "route-conditions"),
	}

	switch cfg.CacheBackend {
	case CacheMemory, CacheRedis, CacheSQLite:
	default:
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q: want memory, redis or sqlite", cfg.CacheBackend)
	}
	if cfg.DBMaxIdleConns > cfg.DBMaxOpenConns {
		return nil, errors.New("DB_MAX_IDLE_CONNS must not exceed DB_MAX_OPEN_CONNS")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}

	return cfg, nil
}

// DSN returns DATABASE_URL when set, otherwise a key/value DSN built from the DB_* settings.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s", c.DBHost, c.DBPort, c.DBUser, c.DBName, c.DBSSLMode)
	if c.DBPass != "" {
		dsn += " password=" + c.DBPass
	}
	return dsn
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

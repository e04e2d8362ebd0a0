package domain

import (
	"context"
	"time"
)

// Cache is a string key/value store with per-entry expiry. Implementations
// must be safe for concurrent use.
type Cache interface {
	// Get returns the value and true on a hit, or false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Cache key prefixes and expirations.
const (
	WeatherKeyPrefix = "weather:"
	RoadKeyPrefix    = "road_grid:"
	BBoxKeyPrefix    = "roads_bbox:"

	WeatherTTL   = time.Hour
	RoadFoundTTL = 24 * time.Hour
	RoadEmptyTTL = time.Hour
	BBoxTTL      = 24 * time.Hour
)

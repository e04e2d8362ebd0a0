// Package postgis reads road geometry from a PostGIS database through GORM.
package postgis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// PoolConfig sizes the connection pool. MaxOpen caps concurrent nearest-road
// queries across all requests.
type PoolConfig struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

// Open connects to the database and configures the pool.
func Open(dsn string, pool PoolConfig, logger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpen)
	sqlDB.SetMaxIdleConns(pool.MaxIdle)
	sqlDB.SetConnMaxLifetime(pool.MaxLifetime)

	logger.Info("database connected",
		zap.Int("max_open_conns", pool.MaxOpen),
		zap.Int("max_idle_conns", pool.MaxIdle))
	return db, nil
}

// schemaStatements create the roads table with a geometry index for bbox
// queries and a geography expression index for radius queries.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS postgis`,
	`CREATE TABLE IF NOT EXISTS roads (
		osm_id   TEXT PRIMARY KEY,
		code     INTEGER,
		fclass   TEXT,
		name     TEXT,
		ref      TEXT,
		oneway   TEXT,
		maxspeed INTEGER,
		layer    BIGINT,
		bridge   TEXT,
		tunnel   TEXT,
		geom     geometry(LINESTRING, 4326)
	)`,
	`CREATE INDEX IF NOT EXISTS roads_geom_idx ON roads USING GIST (geom)`,
	`CREATE INDEX IF NOT EXISTS roads_geog_idx ON roads USING GIST ((geom::geography))`,
}

// EnsureSchema creates the PostGIS extension, the roads table and its spatial indexes.
func EnsureSchema(ctx context.Context, db *gorm.DB) error {
	for _, s := range schemaStatements {
		if err := db.WithContext(ctx).Exec(s).Error; err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

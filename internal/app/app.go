// Package app opens the backends selected by config. Both binaries share it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mohammed-shakir/emission-explorer/internal/cache/redisstore"
	"github.com/mohammed-shakir/emission-explorer/internal/cache/results"
	"github.com/mohammed-shakir/emission-explorer/internal/core/config"
	"github.com/mohammed-shakir/emission-explorer/internal/regions"
	"github.com/mohammed-shakir/emission-explorer/internal/store"
	"github.com/mohammed-shakir/emission-explorer/internal/store/duckstore"
	"github.com/mohammed-shakir/emission-explorer/internal/store/memstore"
	"github.com/mohammed-shakir/emission-explorer/internal/store/postgis"
)

const (
	DriverPostGIS = "postgis"
	DriverDuckDB  = "duckdb"
	DriverMemory  = "memory"
)

func OpenStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case DriverPostGIS, "":
		return postgis.New(ctx, cfg.DatabaseURL)
	case DriverDuckDB:
		return duckstore.Open(ctx, cfg.DuckDBPath, cfg.DuckDBDataDir)
	case DriverMemory:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// OpenRegions returns nil when no catalogue file is configured; region
// queries then fail with a resolution error.
func OpenRegions(cfg config.Config, log *slog.Logger) (regions.Resolver, error) {
	if cfg.RegionsFile == "" {
		return nil, nil
	}
	cat, err := regions.LoadFile(cfg.RegionsFile)
	if err != nil {
		return nil, fmt.Errorf("load regions %s: %w", cfg.RegionsFile, err)
	}
	log.Info("regions loaded", "file", cfg.RegionsFile, "count", len(cat.Names()))
	return cat, nil
}

// NeedsCache reports whether any enabled component reads or bumps the result
// cache.
func NeedsCache(cfg config.Config) bool {
	return cfg.Scenario == "cache" || cfg.Invalidation.Enabled
}

func OpenResults(ctx context.Context, cfg config.Config, log *slog.Logger) (*results.Cache, *redisstore.Client, error) {
	cli, err := redisstore.New(ctx, cfg.RedisAddr,
		redisstore.WithPoolSize(cfg.RedisPoolSize),
		redisstore.WithOpTimeout(cfg.CacheOpTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	c := results.New(cli, log,
		results.WithTTL(cfg.CacheTTL),
		results.WithTTLOverrides(cfg.CacheTTLOvr),
		results.WithOpTimeout(cfg.CacheOpTimeout),
	)
	return c, cli, nil
}

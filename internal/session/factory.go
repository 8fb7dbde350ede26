// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// StoreConfig selects and configures a Store backend.
type StoreConfig struct {
	Backend         string
	Path            string // sqlite
	Redis           RedisConfig
	CleanupInterval time.Duration // memory janitor
}

// Open creates the Store named by cfg.Backend. An empty backend selects memory.
func Open(ctx context.Context, cfg StoreConfig, logger zerolog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(cfg.CleanupInterval), nil
	case BackendRedis:
		return NewRedisStore(ctx, cfg.Redis, logger)
	case BackendSQLite:
		return NewSQLiteStore(ctx, cfg.Path)
	default:
		return nil, fmt.Errorf("session: unknown store backend: %s", cfg.Backend)
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon wires the session store, API server and telemetry into a
// running process and manages its lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ManuGH/wsguard/internal/api"
	"github.com/ManuGH/wsguard/internal/auth"
	"github.com/ManuGH/wsguard/internal/config"
	xglog "github.com/ManuGH/wsguard/internal/log"
	"github.com/ManuGH/wsguard/internal/session"
	"github.com/ManuGH/wsguard/internal/telemetry"
)

// Runtime is the wired daemon: the app plus the components tests and the
// entry point may need to reach.
type Runtime struct {
	App       *App
	API       *api.Server
	Sessions  *session.Service
	Store     session.Store
	Telemetry *telemetry.Provider
}

// Build wires every component from the holder's current configuration.
// Resources opened before a failure are released before Build returns.
func Build(ctx context.Context, holder *config.Holder, version string) (_ *Runtime, err error) {
	if holder == nil {
		return nil, errors.New("daemon: config holder is required")
	}
	cfg := holder.Get()
	logger := xglog.Derive(func(c *zerolog.Context) {
		*c = c.Str(xglog.FieldComponent, "daemon").Str("version", version)
	})

	var cleanup []func()
	defer func() {
		if err != nil {
			for i := len(cleanup) - 1; i >= 0; i-- {
				cleanup[i]()
			}
		}
	}()

	tp, terr := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.ExporterType,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if terr != nil {
		logger.Warn().Err(terr).Msg("Telemetry initialization failed, continuing without tracing")
		tp = nil
	} else {
		cleanup = append(cleanup, func() { _ = tp.Shutdown(context.Background()) })
	}

	creds, err := seedCredentials(ctx, cfg.Auth, logger)
	if err != nil {
		return nil, err
	}

	store, err := session.Open(ctx, session.StoreConfig{
		Backend: cfg.Session.Backend,
		Path:    cfg.Session.SQLitePath,
		Redis: session.RedisConfig{
			Addr:     cfg.Session.Redis.Addr,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
		},
		CleanupInterval: cfg.Session.SweepInterval,
	}, xglog.WithComponent("session"))
	if err != nil {
		return nil, fmt.Errorf("daemon: open session store: %w", err)
	}
	cleanup = append(cleanup, func() { _ = store.Close() })

	svc := session.NewService(store, creds, cfg.Session.TTL, xglog.WithComponent("session"))

	srv, err := api.New(api.Deps{
		Logger:   xglog.WithComponent("api"),
		Version:  version,
		Config:   holder,
		Sessions: svc,
	})
	if err != nil {
		return nil, err
	}

	mgr, err := NewManager(cfg.Server, Deps{
		Logger:         logger,
		APIHandler:     srv.Handler(),
		MetricsHandler: api.MetricsHandler(cfg.Server.MetricsToken),
	})
	if err != nil {
		return nil, err
	}

	// LIFO: connections close first, then the store, then telemetry.
	if tp != nil {
		mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	}
	mgr.RegisterShutdownHook("session_store", func(context.Context) error { return store.Close() })
	mgr.RegisterShutdownHook("websocket_connections", func(ctx context.Context) error {
		return srv.Registry().CloseAll(ctx, "server shutting down")
	})

	var sweeper *session.Sweeper
	if p, ok := store.(session.Purger); ok && cfg.Session.Backend != session.BackendMemory && cfg.Session.Backend != "" {
		sweeper = &session.Sweeper{
			Purger:   p,
			Interval: cfg.Session.SweepInterval,
			Logger:   xglog.WithComponent("session_sweeper"),
		}
	}

	logger.Info().
		Str("version", version).
		Str("session_backend", cfg.Session.Backend).
		Dur(xglog.FieldInterval, cfg.Session.CheckInterval).
		Bool("check_fail_closed", cfg.Session.CheckFailClosed).
		Msg("daemon wired")

	return &Runtime{
		App:       NewApp(logger, mgr, holder, sweeper),
		API:       srv,
		Sessions:  svc,
		Store:     store,
		Telemetry: tp,
	}, nil
}

// seedCredentials builds the in-process user directory from configuration.
func seedCredentials(ctx context.Context, cfg config.AuthConfig, logger zerolog.Logger) (*auth.MemoryCredentials, error) {
	creds, err := auth.NewMemoryCredentials(cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("daemon: credentials: %w", err)
	}
	for _, u := range cfg.Users {
		if err := creds.SetPassword(ctx, u.Name, u.Password); err != nil {
			return nil, fmt.Errorf("daemon: seed user %q: %w", u.Name, err)
		}
	}
	logger.Info().Int("users", len(cfg.Users)).Msg("credential directory seeded")
	return creds, nil
}

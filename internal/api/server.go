// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api exposes the login endpoints and the session-guarded
// WebSocket endpoints.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ManuGH/wsguard/internal/api/middleware"
	"github.com/ManuGH/wsguard/internal/consumer"
	"github.com/ManuGH/wsguard/internal/health"
	xglog "github.com/ManuGH/wsguard/internal/log"
	"github.com/ManuGH/wsguard/internal/session"
	"github.com/ManuGH/wsguard/internal/watchdog"
)

// Server serves the HTTP API.
type Server struct {
	deps     Deps
	checker  watchdog.Checker
	registry *consumer.Registry
	health   *health.Manager
	logger   zerolog.Logger
}

// New validates deps and builds a server.
func New(deps Deps) (*Server, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		deps:     deps,
		checker:  deps.Checker,
		registry: deps.Registry,
		logger:   deps.Logger.With().Str(xglog.FieldComponent, "api").Logger(),
	}
	if s.checker == nil {
		s.checker = session.NewChecker(deps.Sessions)
	}
	if s.registry == nil {
		s.registry = consumer.NewRegistry()
	}
	s.health = health.NewManager(deps.Version)
	s.health.RegisterChecker(health.NewPingChecker("session_store", deps.Sessions.Store().Ping))
	s.health.SetDetails(func() map[string]any {
		return map[string]any{"connections": s.registry.Len()}
	})
	return s, nil
}

// Health returns the probe manager so callers can register more checks.
func (s *Server) Health() *health.Manager { return s.health }

// Registry returns the registry of live WebSocket connections.
func (s *Server) Registry() *consumer.Registry { return s.registry }

// Handler builds the router. Rate limits are read from the configuration
// active at build time.
func (s *Server) Handler() http.Handler {
	cfg := s.deps.Config.Get()

	tracing := ""
	if cfg.Telemetry.Enabled {
		tracing = cfg.Telemetry.ServiceName
	}
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		EnableLogging:         true,
		TracingService:        tracing,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)

	r.Group(func(r chi.Router) {
		if cfg.RateLimit.Enabled {
			r.Use(middleware.RateLimit(middleware.RateLimitConfig{
				RequestLimit: cfg.RateLimit.Requests,
				WindowSize:   cfg.RateLimit.Window,
			}))
		}
		r.Post("/api/login", s.handleLogin)
		r.Post("/api/password", s.handlePassword)
		r.Get("/ws", s.serveWebSocket(consumer.Echo()))
		r.Get("/ws/json", s.serveWebSocket(consumer.JSONEcho()))
	})
	r.Post("/api/logout", s.handleLogout)
	r.Get("/api/me", s.handleMe)

	return r
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"

	"github.com/ManuGH/wsguard/internal/auth"
	"github.com/ManuGH/wsguard/internal/consumer"
	xglog "github.com/ManuGH/wsguard/internal/log"
	"github.com/ManuGH/wsguard/internal/telemetry"
	"github.com/ManuGH/wsguard/internal/watchdog"
)

// serveWebSocket upgrades requests that carry a resolvable session and runs
// the connection with a session watchdog until it closes.
func (s *Server) serveWebSocket(h consumer.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg := s.deps.Config.Get()
		logger := xglog.WithContext(r.Context(), s.logger)

		key := auth.ExtractSessionToken(r, s.cookieName())
		principal, _, err := s.deps.Sessions.Resolve(r.Context(), key)
		if err != nil {
			if isAuthFailure(err) {
				writeUnauthorized(w)
				return
			}
			logger.Error().Err(err).Msg("session lookup failed")
			writeServiceUnavailable(w, "session store unavailable")
			return
		}

		policy := watchdog.FailOpen
		if cfg.Session.CheckFailClosed {
			policy = watchdog.FailClosed
		}
		conn := consumer.New(consumer.Options{
			Checker: s.checker,
			Watchdog: watchdog.Options{
				Interval:    cfg.Session.CheckInterval,
				FaultPolicy: policy,
			},
			TeardownTimeout: cfg.Session.TeardownTimeout,
			OnClosed:        s.registry.Remove,
			MessageRate:     rate.Limit(cfg.RateLimit.MessagesPerSecond),
			MessageBurst:    cfg.RateLimit.MessageBurst,
		})

		ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: cfg.Server.AllowedOrigins,
		})
		if err != nil {
			// Accept already wrote the HTTP error.
			logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		// The request context ends with this handler, which outlives the
		// connection because Serve blocks until shutdown completed.
		ctx := auth.WithPrincipal(auth.WithSessionKey(r.Context(), key), principal)
		span := trace.SpanFromContext(r.Context())
		span.SetAttributes(telemetry.ConnectionAttributes(conn.ID(), r.RemoteAddr)...)

		s.registry.Add(conn)
		if err := conn.Accept(ctx, ws); err != nil {
			s.registry.Remove(conn)
			logger.Error().Err(err).Msg("websocket handshake aborted")
			return
		}
		err = conn.Serve(h)
		span.SetAttributes(
			attribute.String(telemetry.CloseTriggerKey, conn.Trigger().String()),
			attribute.String(telemetry.WatchdogTeardownKey, conn.TeardownResult().String()),
		)
		if err != nil {
			span.SetAttributes(telemetry.ErrorAttributes("websocket_serve")...)
			conn.Logger().Debug().Err(err).
				Str(xglog.FieldReason, conn.Trigger().String()).
				Msg("websocket serve ended with error")
		}
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig marks every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks cfg and returns all problems joined together.
func Validate(cfg AppConfig) error {
	var errs []error

	if cfg.Server.ListenAddr == "" {
		errs = append(errs, invalid("server.listenAddr is required"))
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		errs = append(errs, invalid("server.shutdownTimeout must be positive"))
	}

	s := cfg.Session
	if s.CheckInterval <= 0 {
		errs = append(errs, invalid("session.checkInterval must be positive, got %s", s.CheckInterval))
	}
	if s.TeardownTimeout <= 0 {
		errs = append(errs, invalid("session.teardownTimeout must be positive, got %s", s.TeardownTimeout))
	}
	if s.TTL <= 0 {
		errs = append(errs, invalid("session.ttl must be positive"))
	}
	if s.SweepInterval < 0 {
		errs = append(errs, invalid("session.sweepInterval must not be negative"))
	}
	if s.CookieName == "" {
		errs = append(errs, invalid("session.cookieName is required"))
	}
	switch s.Backend {
	case "memory":
	case "redis":
		if s.Redis.Addr == "" {
			errs = append(errs, invalid("session.redis.addr is required for the redis backend"))
		}
		if s.Redis.DB < 0 {
			errs = append(errs, invalid("session.redis.db must not be negative"))
		}
	case "sqlite":
		if s.SQLitePath == "" {
			errs = append(errs, invalid("session.sqlitePath is required for the sqlite backend"))
		}
	default:
		errs = append(errs, invalid("session.backend %q is not one of memory, redis, sqlite", s.Backend))
	}

	if cfg.Auth.SecretKey == "" {
		errs = append(errs, invalid("auth.secretKey is required"))
	}
	seen := make(map[string]bool, len(cfg.Auth.Users))
	for _, u := range cfg.Auth.Users {
		if u.Name == "" || u.Password == "" {
			errs = append(errs, invalid("auth.users entries need name and password"))
			continue
		}
		if seen[u.Name] {
			errs = append(errs, invalid("auth.users has duplicate user %q", u.Name))
		}
		seen[u.Name] = true
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Requests <= 0 {
			errs = append(errs, invalid("rateLimit.requests must be positive"))
		}
		if cfg.RateLimit.Window <= 0 {
			errs = append(errs, invalid("rateLimit.window must be positive"))
		}
	}

	if cfg.RateLimit.MessagesPerSecond < 0 {
		errs = append(errs, invalid("rateLimit.messagesPerSecond must not be negative"))
	}
	if cfg.RateLimit.MessagesPerSecond > 0 && cfg.RateLimit.MessageBurst <= 0 {
		errs = append(errs, invalid("rateLimit.messageBurst must be positive when messagesPerSecond is set"))
	}

	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.ExporterType != "grpc" && cfg.Telemetry.ExporterType != "http" {
			errs = append(errs, invalid("telemetry.exporter must be grpc or http"))
		}
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			errs = append(errs, invalid("telemetry.samplingRate must be within [0,1]"))
		}
	}

	return errors.Join(errs...)
}

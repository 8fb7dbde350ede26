// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() AppConfig {
	cfg := Default()
	cfg.Auth.SecretKey = "k"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*AppConfig) {}},
		{name: "zero interval", mutate: func(c *AppConfig) { c.Session.CheckInterval = 0 }, wantErr: "checkInterval"},
		{name: "negative teardown", mutate: func(c *AppConfig) { c.Session.TeardownTimeout = -1 }, wantErr: "teardownTimeout"},
		{name: "missing secret", mutate: func(c *AppConfig) { c.Auth.SecretKey = "" }, wantErr: "secretKey"},
		{name: "unknown backend", mutate: func(c *AppConfig) { c.Session.Backend = "bolt" }, wantErr: "backend"},
		{name: "redis without addr", mutate: func(c *AppConfig) { c.Session.Backend = "redis" }, wantErr: "redis.addr"},
		{name: "sqlite without path", mutate: func(c *AppConfig) { c.Session.Backend = "sqlite" }, wantErr: "sqlitePath"},
		{name: "duplicate user", mutate: func(c *AppConfig) {
			c.Auth.Users = []UserSeed{{Name: "a", Password: "x"}, {Name: "a", Password: "y"}}
		}, wantErr: "duplicate"},
		{name: "rate limit window", mutate: func(c *AppConfig) { c.RateLimit.Window = 0 }, wantErr: "rateLimit.window"},
		{name: "rate limit disabled ignores window", mutate: func(c *AppConfig) {
			c.RateLimit.Enabled = false
			c.RateLimit.Window = 0
		}},
		{name: "message burst required", mutate: func(c *AppConfig) { c.RateLimit.MessageBurst = 0 }, wantErr: "messageBurst"},
		{name: "message budget disabled", mutate: func(c *AppConfig) {
			c.RateLimit.MessagesPerSecond = 0
			c.RateLimit.MessageBurst = 0
		}},
		{name: "telemetry exporter", mutate: func(c *AppConfig) {
			c.Telemetry.Enabled = true
			c.Telemetry.ExporterType = "zipkin"
		}, wantErr: "telemetry.exporter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidate_JoinsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Session.CheckInterval = 0
	cfg.Auth.SecretKey = ""
	cfg.Server.ListenAddr = ""

	err := Validate(cfg)
	var joined interface{ Unwrap() []error }
	if assert.True(t, errors.As(err, &joined)) {
		assert.Len(t, joined.Unwrap(), 3)
	}
	assert.Equal(t, 3, strings.Count(err.Error(), ErrInvalidConfig.Error()))
}

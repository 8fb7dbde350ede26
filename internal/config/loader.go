// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvListenAddr       = "WSGUARD_LISTEN_ADDR"
	EnvMetricsAddr      = "WSGUARD_METRICS_ADDR"
	EnvMetricsToken     = "WSGUARD_METRICS_TOKEN"
	EnvShutdownTimeout  = "WSGUARD_SHUTDOWN_TIMEOUT"
	EnvAllowedOrigins   = "WSGUARD_ALLOWED_ORIGINS"
	EnvCheckInterval    = "WSGUARD_SESSION_CHECK_INTERVAL"
	EnvTeardownTimeout  = "WSGUARD_SESSION_TEARDOWN_TIMEOUT"
	EnvCheckFailClosed  = "WSGUARD_SESSION_CHECK_FAIL_CLOSED"
	EnvSessionBackend   = "WSGUARD_SESSION_BACKEND"
	EnvSQLitePath       = "WSGUARD_SESSION_SQLITE_PATH"
	EnvCookieName       = "WSGUARD_SESSION_COOKIE"
	EnvSessionTTL       = "WSGUARD_SESSION_TTL"
	EnvSweepInterval    = "WSGUARD_SESSION_SWEEP_INTERVAL"
	EnvRedisAddr        = "WSGUARD_REDIS_ADDR"
	EnvRedisPassword    = "WSGUARD_REDIS_PASSWORD"
	EnvRedisDB          = "WSGUARD_REDIS_DB"
	EnvSecretKey        = "WSGUARD_SECRET_KEY"
	EnvUsers            = "WSGUARD_AUTH_USERS"
	EnvRateLimitEnabled = "WSGUARD_RATELIMIT_ENABLED"
	EnvRateLimitReqs    = "WSGUARD_RATELIMIT_REQUESTS"
	EnvRateLimitWindow  = "WSGUARD_RATELIMIT_WINDOW"
	EnvMessageRate      = "WSGUARD_RATELIMIT_MESSAGES_PER_SECOND"
	EnvMessageBurst     = "WSGUARD_RATELIMIT_MESSAGE_BURST"
	EnvLogLevel         = "WSGUARD_LOG_LEVEL"
	EnvTelemetryEnabled = "WSGUARD_TELEMETRY_ENABLED"
	EnvTelemetryExport  = "WSGUARD_TELEMETRY_EXPORTER"
	EnvTelemetryAddr    = "WSGUARD_TELEMETRY_ENDPOINT"
	EnvTelemetrySample  = "WSGUARD_TELEMETRY_SAMPLING_RATE"
)

// Loader handles configuration loading with precedence ENV > file > defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a loader. An empty configPath means ENV-only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Path returns the configuration file path.
func (l *Loader) Path() string { return l.configPath }

// Load builds and validates the configuration.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := mergeEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.Version = l.version
	cfg.ConfigPath = l.configPath

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with strict parsing.
func loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func mergeEnv(cfg *AppConfig) error {
	cfg.Server.ListenAddr = ParseString(EnvListenAddr, cfg.Server.ListenAddr)
	cfg.Server.MetricsAddr = ParseString(EnvMetricsAddr, cfg.Server.MetricsAddr)
	cfg.Server.MetricsToken = ParseString(EnvMetricsToken, cfg.Server.MetricsToken)
	cfg.Server.ShutdownTimeout = ParseDuration(EnvShutdownTimeout, cfg.Server.ShutdownTimeout)
	cfg.Server.AllowedOrigins = ParseList(EnvAllowedOrigins, cfg.Server.AllowedOrigins)

	s := &cfg.Session
	s.CheckInterval = ParseDuration(EnvCheckInterval, s.CheckInterval)
	s.TeardownTimeout = ParseDuration(EnvTeardownTimeout, s.TeardownTimeout)
	s.CheckFailClosed = ParseBool(EnvCheckFailClosed, s.CheckFailClosed)
	s.Backend = strings.ToLower(ParseString(EnvSessionBackend, s.Backend))
	s.SQLitePath = ParseString(EnvSQLitePath, s.SQLitePath)
	s.CookieName = ParseString(EnvCookieName, s.CookieName)
	s.TTL = ParseDuration(EnvSessionTTL, s.TTL)
	s.SweepInterval = ParseDuration(EnvSweepInterval, s.SweepInterval)
	s.Redis.Addr = ParseString(EnvRedisAddr, s.Redis.Addr)
	s.Redis.Password = ParseString(EnvRedisPassword, s.Redis.Password)
	s.Redis.DB = ParseInt(EnvRedisDB, s.Redis.DB)

	cfg.Auth.SecretKey = ParseString(EnvSecretKey, cfg.Auth.SecretKey)
	if raw := ParseList(EnvUsers, nil); raw != nil {
		users, err := parseUsers(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvUsers, err)
		}
		cfg.Auth.Users = users
	}

	cfg.RateLimit.Enabled = ParseBool(EnvRateLimitEnabled, cfg.RateLimit.Enabled)
	cfg.RateLimit.Requests = ParseInt(EnvRateLimitReqs, cfg.RateLimit.Requests)
	cfg.RateLimit.Window = ParseDuration(EnvRateLimitWindow, cfg.RateLimit.Window)
	cfg.RateLimit.MessagesPerSecond = ParseFloat(EnvMessageRate, cfg.RateLimit.MessagesPerSecond)
	cfg.RateLimit.MessageBurst = ParseInt(EnvMessageBurst, cfg.RateLimit.MessageBurst)

	cfg.Log.Level = ParseString(EnvLogLevel, cfg.Log.Level)

	cfg.Telemetry.Enabled = ParseBool(EnvTelemetryEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.ExporterType = ParseString(EnvTelemetryExport, cfg.Telemetry.ExporterType)
	cfg.Telemetry.Endpoint = ParseString(EnvTelemetryAddr, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat(EnvTelemetrySample, cfg.Telemetry.SamplingRate)
	return nil
}

// parseUsers parses "name:password" pairs.
func parseUsers(raw []string) ([]UserSeed, error) {
	users := make([]UserSeed, 0, len(raw))
	for _, entry := range raw {
		name, password, ok := strings.Cut(entry, ":")
		if !ok || name == "" || password == "" {
			return nil, fmt.Errorf("invalid user entry %q (want name:password)", strings.SplitN(entry, ":", 2)[0])
		}
		users = append(users, UserSeed{Name: name, Password: password})
	}
	return users, nil
}

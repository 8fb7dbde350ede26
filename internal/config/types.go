// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// AppConfig is the complete daemon configuration.
type AppConfig struct {
	Version    string `yaml:"-"`
	ConfigPath string `yaml:"-"`

	Server    ServerConfig    `yaml:"server"`
	Session   SessionConfig   `yaml:"session"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	ListenAddr        string        `yaml:"listenAddr"`
	MetricsAddr       string        `yaml:"metricsAddr"`
	MetricsToken      string        `yaml:"metricsToken"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
	AllowedOrigins    []string      `yaml:"allowedOrigins"`
}

// SessionConfig configures session storage and the per-connection watchdog.
type SessionConfig struct {
	CheckInterval   time.Duration `yaml:"checkInterval"`
	TeardownTimeout time.Duration `yaml:"teardownTimeout"`
	CheckFailClosed bool          `yaml:"checkFailClosed"`
	Backend         string        `yaml:"backend"`
	SQLitePath      string        `yaml:"sqlitePath"`
	CookieName      string        `yaml:"cookieName"`
	TTL             time.Duration `yaml:"ttl"`
	SweepInterval   time.Duration `yaml:"sweepInterval"`
	Redis           RedisConfig   `yaml:"redis"`
}

// RedisConfig configures the Redis session backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig configures the credential directory.
type AuthConfig struct {
	SecretKey string     `yaml:"secretKey"`
	Users     []UserSeed `yaml:"users"`
}

// UserSeed is a user created at startup.
type UserSeed struct {
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
}

// RateLimitConfig configures per-IP limits on login and upgrade endpoints
// and the per-connection inbound message budget.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`

	// MessagesPerSecond of zero disables the message budget.
	MessagesPerSecond float64 `yaml:"messagesPerSecond"`
	MessageBurst      int     `yaml:"messageBurst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName"`
	Environment  string  `yaml:"environment"`
	ExporterType string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

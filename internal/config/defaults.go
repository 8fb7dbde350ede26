// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// Defaults.
const (
	DefaultListenAddr        = ":8080"
	DefaultMetricsAddr       = ":9090"
	DefaultShutdownTimeout   = 15 * time.Second
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultCheckInterval     = 120 * time.Second
	DefaultTeardownTimeout   = 5 * time.Second
	DefaultSessionBackend    = "memory"
	DefaultSessionTTL        = 14 * 24 * time.Hour
	DefaultSweepInterval     = 10 * time.Minute
	DefaultCookieName        = "wsguard_session"
	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = time.Minute
	DefaultMessagesPerSecond = 20
	DefaultMessageBurst      = 40
)

// Default returns the configuration used when neither file nor ENV set a value.
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			ListenAddr:        DefaultListenAddr,
			MetricsAddr:       DefaultMetricsAddr,
			ShutdownTimeout:   DefaultShutdownTimeout,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
		},
		Session: SessionConfig{
			CheckInterval:   DefaultCheckInterval,
			TeardownTimeout: DefaultTeardownTimeout,
			Backend:         DefaultSessionBackend,
			CookieName:      DefaultCookieName,
			TTL:             DefaultSessionTTL,
			SweepInterval:   DefaultSweepInterval,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: DefaultRateLimitRequests,
			Window:   DefaultRateLimitWindow,

			MessagesPerSecond: DefaultMessagesPerSecond,
			MessageBurst:      DefaultMessageBurst,
		},
		Log: LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{
			ServiceName:  "wsguard",
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}

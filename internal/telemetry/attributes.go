// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// Connection attributes
	ConnIDKey       = "ws.conn_id"
	CloseTriggerKey = "ws.close_trigger"
	RemoteAddrKey   = "net.peer.addr"

	// Watchdog attributes
	WatchdogNameKey     = "watchdog.name"
	WatchdogCheckKey    = "watchdog.check_seq"
	WatchdogVerdictKey  = "watchdog.verdict"
	WatchdogTeardownKey = "watchdog.teardown"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// WatchdogAttributes creates attributes describing one watchdog check.
func WatchdogAttributes(name, connID string, seq uint64) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if name != "" {
		attrs = append(attrs, attribute.String(WatchdogNameKey, name))
	}
	if connID != "" {
		attrs = append(attrs, attribute.String(ConnIDKey, connID))
	}
	attrs = append(attrs, attribute.Int64(WatchdogCheckKey, int64(seq)))
	return attrs
}

// ConnectionAttributes creates connection-related span attributes.
func ConnectionAttributes(connID, remoteAddr string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if connID != "" {
		attrs = append(attrs, attribute.String(ConnIDKey, connID))
	}
	if remoteAddr != "" {
		attrs = append(attrs, attribute.String(RemoteAddrKey, remoteAddr))
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

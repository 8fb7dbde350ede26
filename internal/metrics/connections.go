// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wsguard_connections_active",
		Help: "Number of WebSocket connections between accept and close",
	})

	ConnectionsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wsguard_connections_closed_total",
		Help: "Total closed connections by trigger (disconnect, error, session_invalid, check_failed, shutdown, handshake)",
	}, []string{"trigger"})

	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wsguard_messages_total",
		Help: "Total inbound messages by outcome (handled, dropped, error)",
	}, []string{"outcome"})
)

// IncConnectionClosed records a completed connection shutdown.
func IncConnectionClosed(trigger string) {
	if trigger == "" {
		trigger = "unknown"
	}
	ConnectionsClosedTotal.WithLabelValues(trigger).Inc()
}

// IncMessage records the outcome of one inbound message.
func IncMessage(outcome string) {
	MessagesTotal.WithLabelValues(outcome).Inc()
}

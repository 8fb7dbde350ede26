// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wsguard_session_ops_total",
		Help: "Session operations by op (login, logout, password, resolve) and result",
	}, []string{"op", "result"})

	SessionsPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wsguard_sessions_purged_total",
		Help: "Expired sessions removed by the sweeper",
	})
)

// IncSessionOp records one session operation outcome.
func IncSessionOp(op, result string) {
	if result == "" {
		result = "unknown"
	}
	SessionOpsTotal.WithLabelValues(op, result).Inc()
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WatchdogActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wsguard_watchdog_active",
		Help: "Number of session watchdog cycles currently running",
	})

	WatchdogChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wsguard_watchdog_checks_total",
		Help: "Total session validity checks by verdict (valid, invalid, failed)",
	}, []string{"verdict"})

	WatchdogCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wsguard_watchdog_check_duration_seconds",
		Help:    "Duration of a single session validity check",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	WatchdogExitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wsguard_watchdog_exits_total",
		Help: "Total watchdog cycle terminations by final state",
	}, []string{"state"})

	WatchdogTeardownTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wsguard_watchdog_teardown_total",
		Help: "Total watchdog teardown attempts by result (noop, joined, abandoned, already_done)",
	}, []string{"result"})
)

// ObserveWatchdogCheck records one completed check.
func ObserveWatchdogCheck(verdict string, d time.Duration) {
	if verdict == "" {
		verdict = "unknown"
	}
	WatchdogChecksTotal.WithLabelValues(verdict).Inc()
	WatchdogCheckDuration.Observe(d.Seconds())
}

// IncWatchdogExit records a watchdog cycle reaching a terminal state.
func IncWatchdogExit(state string) {
	if state == "" {
		state = "unknown"
	}
	WatchdogExitsTotal.WithLabelValues(state).Inc()
}

// IncWatchdogTeardown records the result of one teardown call.
func IncWatchdogTeardown(result string) {
	if result == "" {
		result = "unknown"
	}
	WatchdogTeardownTotal.WithLabelValues(result).Inc()
}

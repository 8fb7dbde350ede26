// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/wsguard/internal/metrics"
)

func TestPromhttpExposure(t *testing.T) {
	metrics.IncSessionOp("login", "ok")
	metrics.IncConnectionClosed("disconnect")
	metrics.IncWatchdogExit("cancelled")
	metrics.IncMessage("handled")

	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		`wsguard_session_ops_total{op="login",result="ok"}`,
		`wsguard_connections_closed_total{trigger="disconnect"}`,
		`wsguard_watchdog_exits_total{state="cancelled"}`,
		`wsguard_messages_total{outcome="handled"}`,
		"wsguard_connections_active",
		"wsguard_watchdog_active",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %s", want)
		}
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/wsguard/internal/auth"
)

// MetricsHandler serves the Prometheus registry. A non-empty token requires
// "Authorization: Bearer <token>".
func MetricsHandler(token string) http.Handler {
	h := promhttp.Handler()
	if strings.TrimSpace(token) == "" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !auth.AuthorizeToken(got, token) {
			writeUnauthorized(w)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"time"

	xglog "github.com/ManuGH/wsguard/internal/log"
)

// Logging writes one access log line per request.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := newStatusWriter(w)
		next.ServeHTTP(sw, r)

		logger := xglog.WithComponentFromContext(r.Context(), "http")
		ev := logger.Info()
		if sw.statusCode >= http.StatusInternalServerError {
			ev = logger.Warn()
		}
		ev.Str(xglog.FieldEvent, "http.request").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.statusCode).
			Int("bytes", sw.bytesWritten).
			Bool("upgraded", sw.hijacked).
			Str(xglog.FieldRemote, r.RemoteAddr).
			Dur("duration", time.Since(start)).
			Msg("request served")
	})
}

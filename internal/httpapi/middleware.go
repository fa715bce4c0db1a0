// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KeyGate Contributors

package httpapi

import (
	"net/http"
	"strconv"
	"time"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument wraps a handler with request logging and per-route metrics.
func (h *Handler) instrument(route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r)

		if h.metrics != nil {
			h.metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		}
		h.logger.Info("request",
			"route", route,
			"method", r.Method,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/tenantcore/internal/metrics"
)

// PrometheusMetrics records request counts and durations. Requests are
// labeled with the chi route pattern so path parameters do not explode
// label cardinality.
func PrometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		start := time.Now()
		sw := newStatusWriter(w)
		next.ServeHTTP(sw, r)

		metrics.RecordAPIRequest(r.Method, routePattern(r), strconv.Itoa(sw.statusCode), time.Since(start))
	})
}

// routePattern returns the matched chi pattern, or "unmatched" for
// requests no route handled.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

/*
Package middleware provides the HTTP middleware of the API router.

Key Components:

  - RequestID: reuses or generates X-Request-ID and seeds the logging context
  - PrometheusMetrics: request counters and latency histograms per chi route
  - Compression: chi's gzip/deflate compressor for JSON bodies, websockets excluded
  - ResponseCache: per-user caching of GET responses in the Redis response
    cache, reported through the X-Cache header (HIT, MISS or BYPASS)

All middleware have the func(http.Handler) http.Handler shape used by chi:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.With(middleware.ResponseCache(rc, userID)).Get("/api/v1/items", h.ListItems)

Response writers wrapped by these middleware keep http.Hijacker and
http.Flusher working so websocket upgrades pass through.
*/
package middleware

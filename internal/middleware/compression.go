// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package middleware

import (
	"compress/flate"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// CompressedTypes are the response content types worth compressing. Cached
// JSON:API payloads dominate the traffic.
var CompressedTypes = []string{
	"application/json",
	"application/vnd.api+json",
	"text/plain",
}

// Compression negotiates gzip or deflate for CompressedTypes using chi's
// compressor. Websocket handshakes skip it entirely.
func Compression(next http.Handler) http.Handler {
	compressed := chimw.Compress(flate.DefaultCompression, CompressedTypes...)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})
}

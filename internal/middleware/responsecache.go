// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package middleware

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/tomtom215/tenantcore/internal/cache"
)

// CacheStatusHeader reports how the response cache handled a request.
const CacheStatusHeader = "X-Cache"

// Values of CacheStatusHeader.
const (
	CacheHit    = "HIT"
	CacheMiss   = "MISS"
	CacheBypass = "BYPASS"
)

// maxCachedBody bounds the responses kept in memory for caching.
const maxCachedBody = 4 << 20

// UserIDFunc returns the user a request is cached for, or "" when the
// request has no user.
type UserIDFunc func(r *http.Request) string

// ResponseCache serves GET requests from rc and stores successful JSON
// responses. Entries are per user: requests without a user bypass the
// cache. Handlers opt a response out with Cache-Control: no-store.
func ResponseCache(rc *cache.ResponseCache, userID UserIDFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := userID(r)
			if user == "" || !rc.ShouldCache(r.Method, r.URL.Path) || requestsFresh(r) {
				w.Header().Set(CacheStatusHeader, CacheBypass)
				next.ServeHTTP(w, r)
				return
			}

			key := rc.BuildKey(user, r.Method, r.URL.Path, r.URL.Query())
			if body, ok := rc.Get(r.Context(), key); ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(CacheStatusHeader, CacheHit)
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(body)
				return
			}

			w.Header().Set(CacheStatusHeader, CacheMiss)
			rec := &recordingWriter{statusWriter: newStatusWriter(w)}
			next.ServeHTTP(rec, r)

			if rec.cacheable() {
				rc.Set(r.Context(), key, rec.body.Bytes(), 0)
			}
		})
	}
}

// requestsFresh reports whether the client asked to skip cached copies.
func requestsFresh(r *http.Request) bool {
	cc := strings.ToLower(r.Header.Get("Cache-Control"))
	return strings.Contains(cc, "no-cache") || strings.Contains(cc, "no-store")
}

// recordingWriter passes the response through and keeps a copy of the body.
type recordingWriter struct {
	*statusWriter
	body     bytes.Buffer
	overflow bool
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	n, err := w.statusWriter.Write(b)
	if !w.overflow {
		if w.body.Len()+n > maxCachedBody {
			w.overflow = true
			w.body.Reset()
		} else {
			w.body.Write(b[:n])
		}
	}
	return n, err
}

func (w *recordingWriter) cacheable() bool {
	if w.overflow || w.statusCode != http.StatusOK || w.body.Len() == 0 {
		return false
	}
	h := w.Header()
	if strings.Contains(strings.ToLower(h.Get("Cache-Control")), "no-store") {
		return false
	}
	ct := h.Get("Content-Type")
	return ct == "" || strings.Contains(ct, "json")
}

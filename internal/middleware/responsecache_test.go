// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/tenantcore/internal/cache"
	"github.com/tomtom215/tenantcore/internal/config"
	"github.com/tomtom215/tenantcore/internal/store/storetest"
)

const taskDoc = `{"data":{"type":"task","id":"t1","attributes":{"title":"Write"}}}`

func headerUser(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

type countingHandler struct {
	calls  int
	status int
	body   string
	header map[string]string
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.calls++
	for k, v := range h.header {
		w.Header().Set(k, v)
	}
	if h.status != 0 {
		w.WriteHeader(h.status)
	}
	_, _ = io.WriteString(w, h.body)
}

func newTestCache(t *testing.T, skip ...string) *cache.ResponseCache {
	t.Helper()
	kv, _ := storetest.New(t)
	return cache.New(kv, config.CacheConfig{Enabled: true, DefaultTTL: time.Minute, SkipPatterns: skip})
}

func serve(h http.Handler, method, target, user string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestResponseCacheMissThenHit(t *testing.T) {
	rc := newTestCache(t)
	next := &countingHandler{body: taskDoc, header: map[string]string{"Content-Type": "application/json"}}
	h := ResponseCache(rc, headerUser)(next)

	first := serve(h, http.MethodGet, "/api/v1/tasks/t1?include=owner", "u1")
	if first.Header().Get(CacheStatusHeader) != CacheMiss || first.Body.String() != taskDoc {
		t.Fatalf("first response: X-Cache=%s body=%s", first.Header().Get(CacheStatusHeader), first.Body.String())
	}

	second := serve(h, http.MethodGet, "/api/v1/tasks/t1?include=owner", "u1")
	if second.Header().Get(CacheStatusHeader) != CacheHit {
		t.Errorf("second X-Cache = %s, want HIT", second.Header().Get(CacheStatusHeader))
	}
	if second.Body.String() != taskDoc || second.Header().Get("Content-Type") != "application/json" {
		t.Errorf("cached response = %s (%s)", second.Body.String(), second.Header().Get("Content-Type"))
	}
	if next.calls != 1 {
		t.Errorf("handler calls = %d, want 1", next.calls)
	}

	// other users and other queries have their own entries
	serve(h, http.MethodGet, "/api/v1/tasks/t1?include=owner", "u2")
	serve(h, http.MethodGet, "/api/v1/tasks/t1", "u1")
	if next.calls != 3 {
		t.Errorf("handler calls = %d, want 3", next.calls)
	}
}

func TestResponseCacheInvalidationByElement(t *testing.T) {
	rc := newTestCache(t)
	next := &countingHandler{body: taskDoc}
	h := ResponseCache(rc, headerUser)(next)

	serve(h, http.MethodGet, "/api/v1/tasks/t1", "u1")
	if n := rc.InvalidateByElement(t.Context(), "task", "t1"); n != 1 {
		t.Errorf("InvalidateByElement() = %d, want 1", n)
	}
	if rec := serve(h, http.MethodGet, "/api/v1/tasks/t1", "u1"); rec.Header().Get(CacheStatusHeader) != CacheMiss {
		t.Errorf("X-Cache after invalidation = %s, want MISS", rec.Header().Get(CacheStatusHeader))
	}
}

func TestResponseCacheBypass(t *testing.T) {
	rc := newTestCache(t, "/api/v1/live")
	tests := []struct {
		name    string
		method  string
		target  string
		user    string
		headers []string
	}{
		{"anonymous", http.MethodGet, "/api/v1/tasks", "", nil},
		{"post", http.MethodPost, "/api/v1/tasks", "u1", nil},
		{"skip pattern", http.MethodGet, "/api/v1/live/feed", "u1", nil},
		{"no-cache request", http.MethodGet, "/api/v1/tasks", "u1", []string{"Cache-Control", "no-cache"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &countingHandler{body: taskDoc}
			h := ResponseCache(rc, headerUser)(next)
			for i := 0; i < 2; i++ {
				rec := serve(h, tt.method, tt.target, tt.user, tt.headers...)
				if rec.Header().Get(CacheStatusHeader) != CacheBypass {
					t.Errorf("X-Cache = %s, want BYPASS", rec.Header().Get(CacheStatusHeader))
				}
			}
			if next.calls != 2 {
				t.Errorf("handler calls = %d, want 2", next.calls)
			}
		})
	}
}

func TestResponseCacheStoresOnlyCacheableResponses(t *testing.T) {
	tests := []struct {
		name string
		next *countingHandler
	}{
		{"error status", &countingHandler{status: http.StatusInternalServerError, body: `{"error":"x"}`}},
		{"not json", &countingHandler{body: "<html></html>", header: map[string]string{"Content-Type": "text/html"}}},
		{"no-store", &countingHandler{body: taskDoc, header: map[string]string{"Cache-Control": "no-store"}}},
		{"empty body", &countingHandler{status: http.StatusOK}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := ResponseCache(newTestCache(t), headerUser)(tt.next)
			serve(h, http.MethodGet, "/api/v1/tasks", "u1")
			rec := serve(h, http.MethodGet, "/api/v1/tasks", "u1")
			if rec.Header().Get(CacheStatusHeader) != CacheMiss {
				t.Errorf("X-Cache = %s, want MISS", rec.Header().Get(CacheStatusHeader))
			}
			if tt.next.calls != 2 {
				t.Errorf("handler calls = %d, want 2", tt.next.calls)
			}
		})
	}
}

func TestResponseCacheDisabled(t *testing.T) {
	rc := cache.New(nil, config.CacheConfig{Enabled: true})
	next := &countingHandler{body: taskDoc}
	h := ResponseCache(rc, headerUser)(next)
	rec := serve(h, http.MethodGet, "/api/v1/tasks", "u1")
	if rec.Header().Get(CacheStatusHeader) != CacheBypass || rec.Body.String() != taskDoc {
		t.Errorf("disabled cache response: X-Cache=%s body=%s", rec.Header().Get(CacheStatusHeader), rec.Body.String())
	}
}

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package api

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tenantcore/internal/middleware"
	"github.com/tomtom215/tenantcore/internal/models"
)

func TestGetPresence(t *testing.T) {
	f := newFixture(t, nil)
	h := f.router.SetupChi()
	f.connect(t, "u2", "Bob", "s2", "c1")

	tests := []struct {
		name       string
		caller     caller
		target     string
		wantStatus models.Presence
		wantName   string
	}{
		{"same company sees online", alice, "u2", models.PresenceOnline, "Bob"},
		{"other company sees offline", mallory, "u2", models.PresenceOffline, ""},
		{"self is always visible", alice, "u1", models.PresenceOffline, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(h, &tt.caller, http.MethodGet, "/api/v1/presence/"+tt.target, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
			}
			var got models.PresenceStatus
			decode(t, rr, &got)
			if got.UserID != tt.target || got.Status != tt.wantStatus || got.UserName != tt.wantName {
				t.Errorf("presence = %+v, want %s/%q", got, tt.wantStatus, tt.wantName)
			}
		})
	}
}

func TestGetPresenceRejectsBadUserID(t *testing.T) {
	f := newFixture(t, nil)
	rr := do(f.router.SetupChi(), &alice, http.MethodGet, "/api/v1/presence/a*b", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestBatchPresence(t *testing.T) {
	f := newFixture(t, nil)
	h := f.router.SetupChi()
	f.connect(t, "u2", "Bob", "s2", "c1")
	f.connect(t, "u9", "Mallory", "s9", "c2")

	rr := do(h, &alice, http.MethodPost, "/api/v1/presence/batch", `{"userIds":["u2","u9","u2","ghost"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var got map[string]models.PresenceStatus
	decode(t, rr, &got)

	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3: %v", len(got), got)
	}
	if got["u2"].Status != models.PresenceOnline {
		t.Errorf("u2 = %+v, want online", got["u2"])
	}
	if got["u9"].Status != models.PresenceOffline || got["u9"].UserName != "" {
		t.Errorf("u9 from another company = %+v, want hidden", got["u9"])
	}
	if got["ghost"].Status != models.PresenceOffline {
		t.Errorf("ghost = %+v, want offline", got["ghost"])
	}
}

func TestBatchPresenceValidation(t *testing.T) {
	f := newFixture(t, nil)
	h := f.router.SetupChi()

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"invalid json", `{"userIds":`, "INVALID_JSON"},
		{"empty list", `{"userIds":[]}`, "VALIDATION_ERROR"},
		{"missing list", `{}`, "VALIDATION_ERROR"},
		{"glob in id", `{"userIds":["u*"]}`, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(h, &alice, http.MethodPost, "/api/v1/presence/batch", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			if code := errorCode(t, rr); code != tt.wantCode {
				t.Errorf("error code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestPublishNotification(t *testing.T) {
	f := newFixture(t, nil)
	h := f.router.SetupChi()
	bobSocket := f.connect(t, "u2", "Bob", "s2", "c1")
	mallorySocket := f.connect(t, "u9", "Mallory", "s9", "c2")

	tests := []struct {
		name          string
		caller        caller
		body          string
		wantStatus    int
		wantDelivered int
	}{
		{"user in same company", alice, `{"type":"user","targetId":"u2","event":"task_assigned","data":{"id":7}}`, http.StatusAccepted, 1},
		{"own company", alice, `{"type":"company","targetId":"c1","event":"board_updated"}`, http.StatusAccepted, 1},
		{"other company", alice, `{"type":"company","targetId":"c2","event":"board_updated"}`, http.StatusForbidden, 0},
		{"user in other company", alice, `{"type":"user","targetId":"u9","event":"task_assigned"}`, http.StatusForbidden, 0},
		{"broadcast is refused", alice, `{"type":"broadcast","targetId":"all","event":"maintenance"}`, http.StatusBadRequest, 0},
		{"missing event", alice, `{"type":"user","targetId":"u2"}`, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(h, &tt.caller, http.MethodPost, "/api/v1/notifications", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantStatus != http.StatusAccepted {
				return
			}
			var got NotificationResult
			decode(t, rr, &got)
			if got.Delivered != tt.wantDelivered || got.Role != models.RoleAPI {
				t.Errorf("result = %+v, want delivered %d", got, tt.wantDelivered)
			}
		})
	}

	if n := bobSocket.count("task_assigned"); n != 1 {
		t.Errorf("bob received task_assigned %d times, want 1", n)
	}
	if n := bobSocket.count("board_updated"); n != 1 {
		t.Errorf("bob received board_updated %d times, want 1", n)
	}
	if n := mallorySocket.count("task_assigned") + mallorySocket.count("board_updated"); n != 0 {
		t.Errorf("other company received %d notifications, want 0", n)
	}

	bobSocket.mu.Lock()
	defer bobSocket.mu.Unlock()
	for i, e := range bobSocket.events {
		if e != "task_assigned" {
			continue
		}
		raw, err := json.Marshal(bobSocket.data[i])
		if err != nil || string(raw) != `{"id":7}` {
			t.Errorf("task_assigned data = %s (%v), want {\"id\":7}", raw, err)
		}
	}
}

func TestGetCompanyConnections(t *testing.T) {
	f := newFixture(t, nil)
	h := f.router.SetupChi()
	f.connect(t, "u2", "Bob", "s2a", "c1")
	f.connect(t, "u2", "Bob", "s2b", "c1")
	f.connect(t, "u3", "Carol", "s3", "c1")
	f.connect(t, "u9", "Mallory", "s9", "c2")

	// a socket of another process, known only to the registry
	if err := f.registry.AddClient(context.Background(), "u4", "c1", "remote-1"); err != nil {
		t.Fatalf("AddClient() error = %v", err)
	}

	rr := do(h, &alice, http.MethodGet, "/api/v1/connections/companies/c1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var got CompanyConnections
	decode(t, rr, &got)

	if got.CompanyID != "c1" || got.Total != 3 {
		t.Fatalf("listing = %+v, want 3 users of c1", got)
	}
	ids := make([]string, 0, len(got.Users))
	for _, u := range got.Users {
		ids = append(ids, u.UserID)
	}
	if strings.Join(ids, ",") != "u2,u3,u4" {
		t.Errorf("users = %v, want [u2 u3 u4]", ids)
	}
	bob := got.Users[0]
	if strings.Join(bob.SocketIDs, ",") != "s2a,s2b" || bob.LocalSockets != 2 || bob.Status != models.PresenceOnline || bob.UserName != "Bob" {
		t.Errorf("bob = %+v", bob)
	}
	remote := got.Users[2]
	if strings.Join(remote.SocketIDs, ",") != "remote-1" || remote.LocalSockets != 0 {
		t.Errorf("remote user = %+v", remote)
	}

	rr = do(h, &alice, http.MethodGet, "/api/v1/connections/companies/c2", "")
	if rr.Code != http.StatusForbidden {
		t.Errorf("other company listing = %d, want 403", rr.Code)
	}
}

const taskDoc = `{"data":{"type":"tasks","id":"42","attributes":{"title":"ship it"}},"included":[{"type":"users","id":"u1"}]}`

func TestInvalidateElements(t *testing.T) {
	f := newFixture(t, nil)
	h := f.router.SetupChi()
	ctx := context.Background()

	f.cache.Set(ctx, "api_cache:u1:GET:/api/v1/app/tasks/42:abc", json.RawMessage(taskDoc), time.Minute)
	f.cache.Set(ctx, "api_cache:u2:GET:/api/v1/app/tasks/42:abc", json.RawMessage(taskDoc), time.Minute)

	rr := do(h, &alice, http.MethodPost, "/api/v1/cache/invalidate", `{"elements":[{"type":"tasks","id":"42"},{"type":"tasks","id":"404"}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var got InvalidationResult
	decode(t, rr, &got)
	if got.Deleted != 2 || got.Failed != 0 || len(got.Elements) != 2 {
		t.Errorf("result = %+v, want 2 deleted over 2 elements", got)
	}
	if f.mr.Exists("api_cache:u1:GET:/api/v1/app/tasks/42:abc") {
		t.Error("Expected cached entry to be invalidated")
	}

	rr = do(h, &alice, http.MethodPost, "/api/v1/cache/invalidate", `{"elements":[{"type":"tasks","id":"a:b"}]}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("element id with ':' = %d, want 400", rr.Code)
	}
}

func TestInvalidateElementsPartialFailure(t *testing.T) {
	f := newFixture(t, nil)
	h := f.router.SetupChi()

	f.mr.SetError("ERR injected failure")
	defer f.mr.SetError("")

	rr := do(h, &alice, http.MethodPost, "/api/v1/cache/invalidate", `{"elements":[{"type":"tasks","id":"1"},{"type":"tasks","id":"2"}]}`)
	if rr.Code != http.StatusMultiStatus {
		t.Fatalf("status = %d, want 207", rr.Code)
	}
	var got InvalidationResult
	decode(t, rr, &got)
	if got.Failed != 2 || got.Elements[0].Error == "" {
		t.Errorf("result = %+v, want both elements failed", got)
	}
}

func TestInvalidateType(t *testing.T) {
	f := newFixture(t, nil)
	h := f.router.SetupChi()
	ctx := context.Background()

	f.cache.Set(ctx, "api_cache:u1:GET:/a:1", json.RawMessage(`{"data":{"type":"tasks","id":"1"}}`), time.Minute)
	f.cache.Set(ctx, "api_cache:u1:GET:/b:2", json.RawMessage(`{"data":{"type":"tasks","id":"2"}}`), time.Minute)
	f.cache.Set(ctx, "api_cache:u1:GET:/c:3", json.RawMessage(`{"data":{"type":"boards","id":"1"}}`), time.Minute)

	rr := do(h, &alice, http.MethodDelete, "/api/v1/cache/types/tasks", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var got InvalidationResult
	decode(t, rr, &got)
	if got.Deleted != 2 {
		t.Errorf("deleted = %d, want 2", got.Deleted)
	}
	if !f.mr.Exists("api_cache:u1:GET:/c:3") {
		t.Error("Expected entries of other types to survive")
	}
}

func TestDeleteUserCache(t *testing.T) {
	f := newFixture(t, nil)
	h := f.router.SetupChi()
	ctx := context.Background()

	f.cache.Set(ctx, "api_cache:u1:GET:/a:1", json.RawMessage(`{"ok":true}`), time.Minute)
	f.cache.Set(ctx, "api_cache:u2:GET:/a:1", json.RawMessage(`{"ok":true}`), time.Minute)

	rr := do(h, &alice, http.MethodDelete, "/api/v1/cache/users/u2", "")
	if rr.Code != http.StatusForbidden {
		t.Errorf("clearing another user's cache = %d, want 403", rr.Code)
	}

	rr = do(h, &alice, http.MethodDelete, "/api/v1/cache/users/u1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if f.mr.Exists("api_cache:u1:GET:/a:1") || !f.mr.Exists("api_cache:u2:GET:/a:1") {
		t.Error("Expected only the caller's entries to be removed")
	}
}

func TestMountCachedServesFromCache(t *testing.T) {
	f := newFixture(t, nil)

	var calls atomic.Int32
	app := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(taskDoc))
	})
	f.router.MountCached("/app", app)
	h := f.router.SetupChi()

	rr := do(h, &alice, http.MethodGet, "/api/v1/app/tasks/42", "")
	if rr.Code != http.StatusOK || rr.Header().Get(middleware.CacheStatusHeader) != middleware.CacheMiss {
		t.Fatalf("first request = %d %s", rr.Code, rr.Header().Get(middleware.CacheStatusHeader))
	}
	rr = do(h, &alice, http.MethodGet, "/api/v1/app/tasks/42", "")
	if rr.Header().Get(middleware.CacheStatusHeader) != middleware.CacheHit || rr.Body.String() != taskDoc {
		t.Fatalf("second request = %s %q, want cached copy", rr.Header().Get(middleware.CacheStatusHeader), rr.Body.String())
	}
	if calls.Load() != 1 {
		t.Errorf("app called %d times, want 1", calls.Load())
	}

	// another user does not share alice's entry
	do(h, &bob, http.MethodGet, "/api/v1/app/tasks/42", "")
	if calls.Load() != 2 {
		t.Errorf("app called %d times after second user, want 2", calls.Load())
	}

	do(h, &alice, http.MethodPost, "/api/v1/cache/invalidate", `{"elements":[{"type":"tasks","id":"42"}]}`)
	rr = do(h, &alice, http.MethodGet, "/api/v1/app/tasks/42", "")
	if rr.Header().Get(middleware.CacheStatusHeader) != middleware.CacheMiss {
		t.Errorf("after invalidation X-Cache = %s, want MISS", rr.Header().Get(middleware.CacheStatusHeader))
	}
	if calls.Load() != 3 {
		t.Errorf("app called %d times, want 3", calls.Load())
	}
}

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package registry

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/tomtom215/tenantcore/internal/logging"
	"github.com/tomtom215/tenantcore/internal/store/storetest"
)

func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T) (*Registry, *miniredis.Miniredis) {
	t.Helper()
	kv, mr := storetest.New(t)
	r := New(kv, "test", 0)
	r.now = func() time.Time { return fixedNow }
	return r, mr
}

func TestAddClient(t *testing.T) {
	r, mr := newTestRegistry(t)
	ctx := context.Background()

	if err := r.AddClient(ctx, "u1", "c1", "s1"); err != nil {
		t.Fatalf("AddClient() error = %v", err)
	}

	if got := mr.HGet("test:ws_client:s1", "userId"); got != "u1" {
		t.Errorf("hash userId = %q", got)
	}
	if got := mr.HGet("test:ws_client:s1", "connectedAt"); got != "2026-03-01T12:00:00Z" {
		t.Errorf("hash connectedAt = %q", got)
	}
	for _, k := range []string{"test:ws_client:s1", "test:user_clients:u1", "test:company_users:c1"} {
		if ttl := mr.TTL(k); ttl != DefaultTTL {
			t.Errorf("TTL(%s) = %v, want %v", k, ttl, DefaultTTL)
		}
	}

	info := r.GetClientInfo(ctx, "s1")
	if info == nil || info.UserID != "u1" || info.CompanyID != "c1" || !info.ConnectedAt.Equal(fixedNow) {
		t.Errorf("GetClientInfo() = %+v", info)
	}
	if got := r.GetUserCompany(ctx, "u1"); got != "c1" {
		t.Errorf("GetUserCompany() = %q, want c1", got)
	}
}

func TestRemoveClientKeepsCompanyMembershipConsistent(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_ = r.AddClient(ctx, "u1", "c1", "s1")
	_ = r.AddClient(ctx, "u1", "c1", "s2")
	_ = r.AddClient(ctx, "u2", "c1", "s3")

	if err := r.RemoveClient(ctx, "s1"); err != nil {
		t.Fatalf("RemoveClient(s1) error = %v", err)
	}
	if got := r.GetUserClients(ctx, "u1"); strings.Join(got, ",") != "s2" {
		t.Errorf("GetUserClients(u1) = %v, want [s2]", got)
	}
	if got := r.GetCompanyUsers(ctx, "c1"); strings.Join(got, ",") != "u1,u2" {
		t.Errorf("GetCompanyUsers(c1) = %v, want u1 still present", got)
	}

	if err := r.RemoveClient(ctx, "s2"); err != nil {
		t.Fatalf("RemoveClient(s2) error = %v", err)
	}
	if got := r.GetCompanyUsers(ctx, "c1"); strings.Join(got, ",") != "u2" {
		t.Errorf("GetCompanyUsers(c1) = %v, want [u2]", got)
	}
	if r.GetClientInfo(ctx, "s2") != nil {
		t.Error("Expected client hash to be deleted")
	}
	if got := r.GetUserCompany(ctx, "u1"); got != "" {
		t.Errorf("GetUserCompany(u1) = %q, want empty", got)
	}
}

func TestRemoveClientIsIdempotent(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_ = r.AddClient(ctx, "u1", "c1", "s1")
	for i := 0; i < 3; i++ {
		if err := r.RemoveClient(ctx, "s1"); err != nil {
			t.Fatalf("RemoveClient() #%d error = %v", i, err)
		}
	}
	if err := r.RemoveClient(ctx, "never-added"); err != nil {
		t.Errorf("RemoveClient(unknown) error = %v", err)
	}
	if users := r.GetAllConnectedUsers(ctx); len(users) != 0 {
		t.Errorf("GetAllConnectedUsers() = %v, want none", users)
	}
}

func TestGetAllConnectedUsers(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_ = r.AddClient(ctx, "u2", "c1", "s1")
	_ = r.AddClient(ctx, "u1", "c2", "s2")

	if got := r.GetAllConnectedUsers(ctx); strings.Join(got, ",") != "u1,u2" {
		t.Errorf("GetAllConnectedUsers() = %v", got)
	}
}

func TestCleanupExpiredClients(t *testing.T) {
	r, mr := newTestRegistry(t)
	ctx := context.Background()

	_ = r.AddClient(ctx, "u1", "c1", "s1")
	_ = r.AddClient(ctx, "u2", "c1", "s2")
	_ = r.AddClient(ctx, "u2", "c1", "s3")
	_ = r.AddClient(ctx, "u1", "c2", "s4")

	// u1 loses every socket, u2 keeps s3
	mr.Del("test:ws_client:s1")
	mr.Del("test:ws_client:s4")
	mr.Del("test:ws_client:s2")

	report := r.CleanupExpiredClients(ctx)
	if err := report.Err(); err != nil {
		t.Fatalf("CleanupExpiredClients() error = %v", err)
	}
	if report.UsersScanned != 2 || report.OrphansRemoved != 3 {
		t.Errorf("report = %+v, want 2 users scanned and 3 orphans", report)
	}
	if strings.Join(report.UsersRemoved, ",") != "u1" {
		t.Errorf("UsersRemoved = %v, want [u1]", report.UsersRemoved)
	}

	if got := r.GetCompanyUsers(ctx, "c1"); strings.Join(got, ",") != "u2" {
		t.Errorf("GetCompanyUsers(c1) = %v, want [u2]", got)
	}
	if got := r.GetCompanyUsers(ctx, "c2"); len(got) != 0 {
		t.Errorf("GetCompanyUsers(c2) = %v, want empty", got)
	}
	if got := r.GetUserClients(ctx, "u2"); strings.Join(got, ",") != "s3" {
		t.Errorf("GetUserClients(u2) = %v, want [s3]", got)
	}

	second := r.CleanupExpiredClients(ctx)
	if second.OrphansRemoved != 0 {
		t.Errorf("second pass removed %d orphans, want 0", second.OrphansRemoved)
	}
}

func TestRegistryStoreErrors(t *testing.T) {
	r, mr := newTestRegistry(t)
	ctx := context.Background()
	_ = r.AddClient(ctx, "u1", "c1", "s1")

	mr.SetError("ERR injected failure")
	defer mr.SetError("")

	if err := r.AddClient(ctx, "u1", "c1", "s2"); err == nil {
		t.Error("Expected AddClient to return the store error")
	}
	if err := r.RemoveClient(ctx, "s1"); err == nil {
		t.Error("Expected RemoveClient to return the store error")
	}
	if got := r.GetUserClients(ctx, "u1"); got != nil {
		t.Errorf("GetUserClients() = %v, want nil on error", got)
	}
	if info := r.GetClientInfo(ctx, "s1"); info != nil {
		t.Errorf("GetClientInfo() = %+v, want nil on error", info)
	}
	if report := r.CleanupExpiredClients(ctx); report.Err() == nil {
		t.Error("Expected cleanup to report the store error")
	}
}

func TestNilStoreRegistry(t *testing.T) {
	r := New(nil, "test", time.Hour)
	ctx := context.Background()

	if err := r.AddClient(ctx, "u1", "c1", "s1"); err != nil {
		t.Errorf("AddClient() error = %v", err)
	}
	if err := r.RemoveClient(ctx, "s1"); err != nil {
		t.Errorf("RemoveClient() error = %v", err)
	}
	if r.GetUserClients(ctx, "u1") != nil || r.GetAllConnectedUsers(ctx) != nil {
		t.Error("Expected empty reads without a store")
	}
	if report := r.CleanupExpiredClients(ctx); report.UsersScanned != 0 {
		t.Errorf("CleanupExpiredClients() = %+v", report)
	}

	var unset *Registry
	if unset.GetCompanyUsers(ctx, "c1") != nil || unset.GetUserCompany(ctx, "u1") != "" {
		t.Error("Expected empty reads from a nil registry")
	}
}

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/tenantcore/internal/config"
	"github.com/tomtom215/tenantcore/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestJWT(t *testing.T) *JWTAuthenticator {
	t.Helper()
	a, err := NewJWTAuthenticator(testSecret)
	if err != nil {
		t.Fatalf("NewJWTAuthenticator() error = %v", err)
	}
	return a
}

func TestNewJWTAuthenticatorRejectsShortSecret(t *testing.T) {
	if _, err := NewJWTAuthenticator("short"); err == nil {
		t.Error("Expected short secret to be rejected")
	}
}

func TestNewAuthenticator(t *testing.T) {
	tests := []struct {
		mode    string
		want    string
		wantErr bool
	}{
		{ModeJWT, ModeJWT, false},
		{"", ModeJWT, false},
		{ModeNone, ModeNone, false},
		{"oidc", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			a, err := NewAuthenticator(config.SecurityConfig{AuthMode: tt.mode, JWTSecret: testSecret})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewAuthenticator(%q) error = %v, wantErr %v", tt.mode, err, tt.wantErr)
			}
			if !tt.wantErr && a.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", a.Name(), tt.want)
			}
		})
	}
}

func TestJWTAuthenticate(t *testing.T) {
	a := newTestJWT(t)
	token, err := a.GenerateToken(Identity{UserID: "u1", CompanyID: "c1", UserName: "Ada"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	noCompany, _ := a.GenerateToken(Identity{UserID: "u1"}, time.Hour)

	tests := []struct {
		name    string
		setup   func(r *http.Request)
		wantErr error
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, nil},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+token) }, nil},
		{"query param", func(r *http.Request) { r.URL.RawQuery = "token=" + token }, nil},
		{"no credentials", func(*http.Request) {}, ErrNoCredentials},
		{"basic scheme ignored", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, ErrNoCredentials},
		{"garbage token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, ErrInvalidToken},
		{"missing company", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+noCompany) }, ErrMissingTenant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
			tt.setup(r)
			id, err := a.Authenticate(context.Background(), r)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Authenticate() error = %v, want %v", err, tt.wantErr)
				}
				if !errors.Is(err, ErrUnauthenticated) {
					t.Errorf("error %v does not wrap ErrUnauthenticated", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if id.UserID != "u1" || id.CompanyID != "c1" || id.UserName != "Ada" {
				t.Errorf("identity = %+v", id)
			}
		})
	}
}

func TestJWTExpiredToken(t *testing.T) {
	a := newTestJWT(t)
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return issued }
	token, _ := a.GenerateToken(Identity{UserID: "u1", CompanyID: "c1"}, time.Minute)

	a.now = func() time.Time { return issued.Add(time.Hour) }
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	if _, err := a.Authenticate(context.Background(), r); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Authenticate() error = %v, want ErrExpiredToken", err)
	}
}

func TestJWTRejectsOtherSecretAndAlgorithm(t *testing.T) {
	a := newTestJWT(t)
	other, _ := NewJWTAuthenticator(strings.Repeat("x", 40))
	forged, _ := other.GenerateToken(Identity{UserID: "u1", CompanyID: "c1"}, time.Hour)
	if _, err := a.ValidateToken(forged); err == nil {
		t.Error("Expected token signed with another secret to be rejected")
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{CompanyID: "c1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, err := a.ValidateToken(unsigned); err == nil {
		t.Error("Expected alg=none token to be rejected")
	}
}

func TestHeaderAuthenticate(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		query   string
		want    Identity
		wantErr error
	}{
		{"headers", map[string]string{HeaderUserID: "u1", HeaderCompanyID: "c1", HeaderUserName: "Ada"}, "", Identity{UserID: "u1", CompanyID: "c1", UserName: "Ada"}, nil},
		{"query fallback", nil, "userId=u2&companyId=c2", Identity{UserID: "u2", CompanyID: "c2"}, nil},
		{"nothing", nil, "", Identity{}, ErrNoCredentials},
		{"user only", map[string]string{HeaderUserID: "u1"}, "", Identity{}, ErrMissingTenant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			id, err := NewHeaderAuthenticator().Authenticate(context.Background(), r)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Authenticate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if *id != tt.want {
				t.Errorf("identity = %+v, want %+v", *id, tt.want)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	var seen *Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := NewMiddleware(NewHeaderAuthenticator()).RequireAuth(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status without identity = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "UNAUTHORIZED") {
		t.Errorf("body = %s", rec.Body.String())
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderUserID, "u1")
	r.Header.Set(HeaderCompanyID, "c1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status with identity = %d, want 204", rec.Code)
	}
	if seen == nil || seen.UserID != "u1" || seen.CompanyID != "c1" {
		t.Errorf("identity in context = %+v", seen)
	}
}

func TestOptionalAuth(t *testing.T) {
	called := false
	h := NewMiddleware(NewHeaderAuthenticator()).OptionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if FromContext(r.Context()) != nil {
			t.Error("Expected no identity for anonymous request")
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("Expected anonymous request to pass through")
	}
}

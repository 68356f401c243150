// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tenantcore/internal/logging"
)

// Middleware authenticates requests and stores the Identity in the context.
type Middleware struct {
	authenticator Authenticator
}

// NewMiddleware wraps authenticator.
func NewMiddleware(authenticator Authenticator) *Middleware {
	return &Middleware{authenticator: authenticator}
}

// RequireAuth rejects requests without a valid identity with 401.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.authenticator.Authenticate(r.Context(), r)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).
				Str("mode", m.authenticator.Name()).
				Str("path", r.URL.Path).
				Msg("Authentication failed")
			writeUnauthorized(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

// OptionalAuth attaches the identity when one is present and lets every
// request through.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := m.authenticator.Authenticate(r.Context(), r); err == nil {
			r = r.WithContext(withIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// withIdentity stores id for handlers and tags request logs with the tenant.
func withIdentity(ctx context.Context, id *Identity) context.Context {
	ctx = logging.ContextWithTenant(ctx, id.CompanyID, id.UserID)
	return WithIdentity(ctx, id)
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	code := "UNAUTHORIZED"
	if errors.Is(err, ErrExpiredToken) {
		code = "TOKEN_EXPIRED"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="tenantcore"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "error",
		"error":  map[string]string{"code": code, "message": "authentication required"},
	})
}

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

// Package auth resolves the user and company behind an HTTP request or
// websocket upgrade.
//
// Two authenticators exist:
//
//   - JWTAuthenticator validates an HS256 token from the Authorization header
//     or, for websocket upgrades that cannot set headers, the token query
//     parameter.
//   - HeaderAuthenticator trusts X-User-ID, X-Company-ID and X-User-Name and
//     is meant for auth_mode=none development setups behind a trusted proxy.
//
// Middleware stores the resolved Identity in the request context where
// handlers read it with FromContext.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tomtom215/tenantcore/internal/config"
)

// Authentication errors.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNoCredentials   = fmt.Errorf("%w: no credentials", ErrUnauthenticated)
	ErrExpiredToken    = fmt.Errorf("%w: token expired", ErrUnauthenticated)
	ErrInvalidToken    = fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	ErrMissingTenant   = fmt.Errorf("%w: identity has no company", ErrUnauthenticated)
)

// Auth modes accepted by security.auth_mode.
const (
	ModeJWT  = "jwt"
	ModeNone = "none"
)

// Identity is the authenticated user of a request.
type Identity struct {
	UserID    string `json:"userId"`
	CompanyID string `json:"companyId"`
	UserName  string `json:"userName,omitempty"`
}

// Validate checks that both tenant keys are present.
func (i Identity) Validate() error {
	if strings.TrimSpace(i.UserID) == "" {
		return fmt.Errorf("%w: identity has no user", ErrUnauthenticated)
	}
	if strings.TrimSpace(i.CompanyID) == "" {
		return ErrMissingTenant
	}
	return nil
}

// Authenticator resolves the Identity of a request.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)
	Name() string
}

// NewAuthenticator builds the authenticator for the configured auth mode.
func NewAuthenticator(cfg config.SecurityConfig) (Authenticator, error) {
	switch cfg.AuthMode {
	case ModeJWT, "":
		return NewJWTAuthenticator(cfg.JWTSecret)
	case ModeNone:
		return NewHeaderAuthenticator(), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.AuthMode)
	}
}

type contextKey string

const identityContextKey contextKey = "identity"

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// FromContext returns the identity stored by the middleware, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey).(*Identity)
	return id
}

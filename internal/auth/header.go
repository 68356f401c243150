// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package auth

import (
	"context"
	"net/http"
	"strings"
)

// Identity headers read by HeaderAuthenticator.
const (
	HeaderUserID    = "X-User-ID"
	HeaderCompanyID = "X-Company-ID"
	HeaderUserName  = "X-User-Name"
)

// HeaderAuthenticator trusts identity headers set by an upstream proxy.
// Websocket clients may pass the same values as userId and companyId query
// parameters.
type HeaderAuthenticator struct{}

// NewHeaderAuthenticator returns a HeaderAuthenticator.
func NewHeaderAuthenticator() *HeaderAuthenticator {
	return &HeaderAuthenticator{}
}

// Name returns the auth mode.
func (HeaderAuthenticator) Name() string {
	return ModeNone
}

// Authenticate reads the identity headers of r.
func (HeaderAuthenticator) Authenticate(_ context.Context, r *http.Request) (*Identity, error) {
	q := r.URL.Query()
	id := &Identity{
		UserID:    firstNonEmpty(r.Header.Get(HeaderUserID), q.Get("userId")),
		CompanyID: firstNonEmpty(r.Header.Get(HeaderCompanyID), q.Get("companyId")),
		UserName:  r.Header.Get(HeaderUserName),
	}
	if id.UserID == "" && id.CompanyID == "" {
		return nil, ErrNoCredentials
	}
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return id, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

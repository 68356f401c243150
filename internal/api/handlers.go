// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/tenantcore/internal/auth"
	"github.com/tomtom215/tenantcore/internal/cache"
	"github.com/tomtom215/tenantcore/internal/models"
	"github.com/tomtom215/tenantcore/internal/presence"
	"github.com/tomtom215/tenantcore/internal/registry"
	"github.com/tomtom215/tenantcore/internal/store"
	ws "github.com/tomtom215/tenantcore/internal/websocket"
)

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_health.go: liveness and readiness
//   - handlers_presence.go: presence queries
//   - handlers_notifications.go: notification publishing
//   - handlers_connections.go: connection introspection
//   - handlers_cache.go: response cache administration
//   - handlers_ws.go: websocket upgrade
type Handler struct {
	store     store.Store
	cache     *cache.ResponseCache
	presence  *presence.Tracker
	registry  *registry.Registry
	hub       *ws.Hub
	wsServer  *ws.Server
	startTime time.Time
}

// Deps lists the collaborators of a Handler. Store, Cache, Presence and
// Registry may be nil when Redis is not configured; Hub is required.
type Deps struct {
	Store    store.Store
	Cache    *cache.ResponseCache
	Presence *presence.Tracker
	Registry *registry.Registry
	Hub      *ws.Hub
	WSServer *ws.Server
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		store:     d.Store,
		cache:     d.Cache,
		presence:  d.Presence,
		registry:  d.Registry,
		hub:       d.Hub,
		wsServer:  d.WSServer,
		startTime: time.Now(),
	}
}

// identity returns the authenticated caller or writes a 401.
func identity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	id := auth.FromContext(r.Context())
	if id == nil {
		respondError(w, http.StatusUnauthorized, models.ErrUnauthorized, "Authentication required", nil)
		return nil, false
	}
	return id, true
}

// userCompany resolves the company of a connected user, from the shared
// registry first and from this process's sockets second. It returns "" for
// users that are not connected anywhere this process can see.
func (h *Handler) userCompany(ctx context.Context, userID string) string {
	if company := h.registry.GetUserCompany(ctx, userID); company != "" {
		return company
	}
	if h.hub != nil {
		return h.hub.LocalUserCompany(userID)
	}
	return ""
}

// sameCompany reports whether userID may be seen by the caller: the caller
// themselves, or a user currently connected under the caller's company.
func (h *Handler) sameCompany(ctx context.Context, caller *auth.Identity, userID string) bool {
	if userID == caller.UserID {
		return true
	}
	return h.userCompany(ctx, userID) == caller.CompanyID
}

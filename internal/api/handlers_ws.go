// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package api

import (
	"net/http"

	"github.com/tomtom215/tenantcore/internal/models"
)

// WebSocket upgrades an authenticated request into a hub client. The
// identity comes from the auth middleware, which accepts the JWT as a
// ?token= query parameter because browsers cannot set headers on upgrades.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	if h.wsServer == nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrWebSocketDisabled, "Websocket connections are not served by this process", nil)
		return
	}
	h.wsServer.ServeWS(w, r, caller.UserID, caller.CompanyID, caller.UserName)
}

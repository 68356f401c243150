// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/tenantcore/internal/models"
	"github.com/tomtom215/tenantcore/internal/validation"
)

// PresenceBatchRequest is the body of POST /api/v1/presence/batch.
type PresenceBatchRequest struct {
	UserIDs []string `json:"userIds" validate:"required,min=1,max=500,dive,key_segment"`
}

// hiddenPresence is what callers see for users outside their company.
func hiddenPresence(userID string) models.PresenceStatus {
	return models.PresenceStatus{UserID: userID, Status: models.PresenceOffline, SocketIDs: []string{}}
}

// GetPresence returns the presence of one user.
func (h *Handler) GetPresence(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	caller, ok := identity(w, r)
	if !ok {
		return
	}

	userID := chi.URLParam(r, "userID")
	if !validation.ValidKeySegment(userID) {
		respondError(w, http.StatusBadRequest, models.ErrInvalidUserID, "Invalid user id", nil)
		return
	}

	status := hiddenPresence(userID)
	if h.sameCompany(r.Context(), caller, userID) {
		status = h.presence.GetUserStatus(r.Context(), userID)
	}
	respondSuccess(w, http.StatusOK, status, start)
}

// BatchPresence returns the presence of several users, keyed by user id.
// Users outside the caller's company read as offline.
func (h *Handler) BatchPresence(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	caller, ok := identity(w, r)
	if !ok {
		return
	}

	var req PresenceBatchRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	visible := make([]string, 0, len(req.UserIDs))
	out := make(map[string]models.PresenceStatus, len(req.UserIDs))
	for _, id := range req.UserIDs {
		if h.sameCompany(r.Context(), caller, id) {
			visible = append(visible, id)
		} else {
			out[id] = hiddenPresence(id)
		}
	}
	for id, status := range h.presence.GetUsersStatuses(r.Context(), visible) {
		out[id] = status
	}

	respondSuccess(w, http.StatusOK, out, start)
}

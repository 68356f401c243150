// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tenantcore/internal/logging"
	"github.com/tomtom215/tenantcore/internal/models"
)

// NotificationRequest is the body of POST /api/v1/notifications. Broadcasts
// reach every tenant and are not accepted over HTTP.
type NotificationRequest struct {
	Type     models.NotificationType `json:"type" validate:"required,oneof=user company"`
	TargetID string                  `json:"targetId" validate:"required,key_segment"`
	Event    string                  `json:"event" validate:"required,max=128"`
	Data     json.RawMessage         `json:"data"`
}

// NotificationResult reports what a publish request did on this process.
// Delivered counts local sockets only; remote processes deliver through the
// notification channel.
type NotificationResult struct {
	Type      models.NotificationType `json:"type"`
	TargetID  string                  `json:"targetId"`
	Event     string                  `json:"event"`
	Delivered int                     `json:"delivered"`
	Role      models.ProcessRole      `json:"role"`
}

// PublishNotification delivers an event to one user or to the caller's
// company through the connection hub.
func (h *Handler) PublishNotification(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	caller, ok := identity(w, r)
	if !ok {
		return
	}

	var req NotificationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var data interface{}
	if len(req.Data) > 0 {
		data = req.Data
	}

	var delivered int
	switch req.Type {
	case models.NotificationCompany:
		if req.TargetID != caller.CompanyID {
			respondError(w, http.StatusForbidden, models.ErrForbidden, "Notifications can only target your own company", nil)
			return
		}
		delivered = h.hub.SendMessageToCompany(r.Context(), req.TargetID, req.Event, data)
	case models.NotificationUser:
		if !h.sameCompany(r.Context(), caller, req.TargetID) {
			respondError(w, http.StatusForbidden, models.ErrForbidden, "Target user is not connected under your company", nil)
			return
		}
		delivered = h.hub.SendMessageToUser(r.Context(), req.TargetID, req.Event, data)
	}

	logging.Ctx(r.Context()).Debug().
		Str("type", string(req.Type)).
		Str("target_id", req.TargetID).
		Str("event", sanitizeLogValue(req.Event)).
		Int("delivered", delivered).
		Msg("Notification published")

	respondSuccess(w, http.StatusAccepted, NotificationResult{
		Type:      req.Type,
		TargetID:  req.TargetID,
		Event:     req.Event,
		Delivered: delivered,
		Role:      h.hub.Role(),
	}, start)
}

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/tenantcore/internal/cache"
	"github.com/tomtom215/tenantcore/internal/models"
	"github.com/tomtom215/tenantcore/internal/validation"
)

// InvalidateRequest is the body of POST /api/v1/cache/invalidate.
type InvalidateRequest struct {
	Elements []models.Element `json:"elements" validate:"required,min=1,max=500,dive"`
}

// ElementOutcome is the per-element part of an invalidation response.
type ElementOutcome struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Deleted int64  `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

// InvalidationResult is the body of the invalidation responses.
type InvalidationResult struct {
	Deleted  int64            `json:"deleted"`
	Failed   int              `json:"failed"`
	Elements []ElementOutcome `json:"elements"`
}

func invalidationResult(report cache.InvalidationReport) InvalidationResult {
	out := InvalidationResult{
		Deleted:  report.Deleted(),
		Failed:   len(report.Failed()),
		Elements: make([]ElementOutcome, 0, len(report.Results)),
	}
	for _, res := range report.Results {
		o := ElementOutcome{Type: res.Element.Type, ID: res.Element.ID, Deleted: res.Deleted}
		if res.Err != nil {
			o.Error = res.Err.Error()
		}
		out.Elements = append(out.Elements, o)
	}
	return out
}

// invalidationStatus is 200 when every element succeeded and 207 when some
// failed; the batch is never rolled back.
func invalidationStatus(report cache.InvalidationReport) int {
	if len(report.Failed()) > 0 {
		return http.StatusMultiStatus
	}
	return http.StatusOK
}

// InvalidateElements drops every cached response that referenced one of the
// given elements.
func (h *Handler) InvalidateElements(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if _, ok := identity(w, r); !ok {
		return
	}

	var req InvalidateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	report := h.cache.InvalidateByElements(r.Context(), req.Elements)
	respondSuccess(w, invalidationStatus(report), invalidationResult(report), start)
}

// InvalidateType drops every cached response that referenced an element of
// the given type.
func (h *Handler) InvalidateType(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if _, ok := identity(w, r); !ok {
		return
	}

	elementType := chi.URLParam(r, "type")
	if !validation.ValidKeySegment(elementType) {
		respondError(w, http.StatusBadRequest, models.ErrInvalidType, "Invalid element type", nil)
		return
	}

	report := h.cache.InvalidateByType(r.Context(), elementType)
	respondSuccess(w, invalidationStatus(report), invalidationResult(report), start)
}

// DeleteUserCache drops the cached responses of the caller. Other users'
// caches cannot be cleared through the API.
func (h *Handler) DeleteUserCache(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	caller, ok := identity(w, r)
	if !ok {
		return
	}

	userID := chi.URLParam(r, "userID")
	if userID != caller.UserID {
		respondError(w, http.StatusForbidden, models.ErrForbidden, "You can only clear your own cache", nil)
		return
	}

	deleted := h.cache.DeleteUserCache(r.Context(), userID)
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"userId":  userID,
		"deleted": deleted,
	}, start)
}

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/tenantcore/internal/models"
)

// ConnectedUser is one entry of a company connection listing.
type ConnectedUser struct {
	UserID       string          `json:"userId"`
	UserName     string          `json:"userName,omitempty"`
	Status       models.Presence `json:"status"`
	LastActivity time.Time       `json:"lastActivity"`
	SocketIDs    []string        `json:"socketIds"`
	LocalSockets int             `json:"localSockets"`
}

// CompanyConnections is the body of GET /api/v1/connections/companies/{companyID}.
type CompanyConnections struct {
	CompanyID string          `json:"companyId"`
	Users     []ConnectedUser `json:"users"`
	Total     int             `json:"total"`
}

// GetCompanyConnections lists the connected users of the caller's company
// with their sockets and presence. Users come from the shared registry plus
// the sockets of this process, so a process without Redis still reports its
// own clients.
func (h *Handler) GetCompanyConnections(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	caller, ok := identity(w, r)
	if !ok {
		return
	}

	companyID := chi.URLParam(r, "companyID")
	if companyID != caller.CompanyID {
		respondError(w, http.StatusForbidden, models.ErrForbidden, "You can only list connections of your own company", nil)
		return
	}

	ctx := r.Context()
	seen := make(map[string]bool)
	var userIDs []string
	for _, id := range h.registry.GetCompanyUsers(ctx, companyID) {
		if !seen[id] {
			seen[id] = true
			userIDs = append(userIDs, id)
		}
	}
	for _, id := range h.hub.GetLocalUsers() {
		if !seen[id] && h.hub.LocalUserCompany(id) == companyID {
			seen[id] = true
			userIDs = append(userIDs, id)
		}
	}
	sort.Strings(userIDs)

	statuses := h.presence.GetUsersStatuses(ctx, userIDs)
	users := make([]ConnectedUser, 0, len(userIDs))
	for _, id := range userIDs {
		local := h.hub.GetUserSocketIDs(id)
		sockets := mergeSorted(h.registry.GetUserClients(ctx, id), local)
		st := statuses[id]
		users = append(users, ConnectedUser{
			UserID:       id,
			UserName:     st.UserName,
			Status:       st.Status,
			LastActivity: st.LastActivity,
			SocketIDs:    sockets,
			LocalSockets: len(local),
		})
	}

	respondSuccess(w, http.StatusOK, CompanyConnections{
		CompanyID: companyID,
		Users:     users,
		Total:     len(users),
	}, start)
}

func mergeSorted(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

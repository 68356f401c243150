// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/tenantcore/internal/models"
)

// readyTimeout bounds the store ping of the readiness probe.
const readyTimeout = 2 * time.Second

// HealthLive answers 200 while the process runs.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, models.Liveness{
		Alive:  true,
		Uptime: time.Since(h.startTime).Seconds(),
	}, time.Now())
}

// HealthReady reports whether this process can serve. Without Redis it is
// always ready since it runs process-local; with Redis it is ready only
// while the store answers a ping.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rd := models.Readiness{
		StoreConfigured: h.store != nil,
		CacheEnabled:    h.cache.Enabled(),
		Uptime:          time.Since(h.startTime).Seconds(),
	}
	if rd.StoreConfigured {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		rd.StoreConnected = h.store.Ping(ctx) == nil
		cancel()
	}
	rd.ReadyToServe = !rd.StoreConfigured || rd.StoreConnected
	if h.hub != nil {
		rd.Role = h.hub.Role()
		rd.InstanceID = h.hub.InstanceID()
		rd.LocalClients = h.hub.GetClientCount()
	}

	body := models.NewSuccess(rd, start)
	status := http.StatusOK
	body.Status = models.StatusReady
	if !rd.ReadyToServe {
		status = http.StatusServiceUnavailable
		body.Status = models.StatusNotReady
	}
	writeEnvelope(w, status, body)
}

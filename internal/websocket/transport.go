// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package websocket

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/tenantcore/internal/logging"
	"github.com/tomtom215/tenantcore/internal/metrics"
	"github.com/tomtom215/tenantcore/internal/models"
)

// Server upgrades HTTP requests into hub clients.
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
	opts     ClientOptions
	origins  []string
}

// NewServer returns a Server for hub accepting the given browser origins.
// "*" accepts every origin, including requests without an Origin header.
func NewServer(hub *Hub, allowedOrigins []string, opts ClientOptions) *Server {
	s := &Server{hub: hub, opts: opts, origins: allowedOrigins}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      s.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return s
}

// checkOrigin accepts configured origins. Browsers always send Origin, so
// a missing header is only accepted with the "*" wildcard.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	for _, allowed := range s.origins {
		if allowed == "*" || (origin != "" && strings.EqualFold(allowed, origin)) {
			return true
		}
	}
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
	} else {
		logging.Warn().Str("origin", origin).Msg("WebSocket connection rejected from unauthorized origin")
	}
	return false
}

// ServeWS upgrades the request of an authenticated user. Worker processes
// hold no sockets and answer 503.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request, userID, companyID, userName string) {
	if s.hub.Role() != models.RoleAPI {
		http.Error(w, "websocket connections are served by API processes", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.WSErrors.WithLabelValues("upgrade").Inc()
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := NewClient(s.hub, conn, userID, companyID, userName, s.opts)
	client.Start(r.Context())
}

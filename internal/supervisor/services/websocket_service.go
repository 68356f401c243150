// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tenantcore/internal/logging"
)

// ContextHub is satisfied by *websocket.Hub.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
	GetClientCount() int
}

// WebSocketHubService supervises the connection hub. While it runs the hub
// sweeps the shared registry for orphaned sockets; on shutdown the hub
// closes every local client with a shutdown frame.
type WebSocketHubService struct {
	hub ContextHub
	log zerolog.Logger
}

// NewWebSocketHubService wraps hub.
func NewWebSocketHubService(hub ContextHub) *WebSocketHubService {
	return &WebSocketHubService{hub: hub, log: logging.WithComponent("websocket-hub")}
}

// Serve runs the hub loop until ctx is done. An early return is logged and
// left to the supervisor's restart policy.
func (w *WebSocketHubService) Serve(ctx context.Context) error {
	err := w.hub.RunWithContext(ctx)
	if ctx.Err() == nil {
		w.log.Warn().Err(err).Int("local_clients", w.hub.GetClientCount()).Msg("Hub loop exited, restarting")
	}
	return err
}

// String names the service in supervisor logs.
func (w *WebSocketHubService) String() string {
	return "websocket-hub"
}

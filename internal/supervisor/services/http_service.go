// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tenantcore/internal/logging"
)

// DefaultDrainTimeout bounds the graceful drain of in-flight requests.
const DefaultDrainTimeout = 10 * time.Second

// HTTPServer is the part of *http.Server the service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
	Close() error
}

// HTTPServerService runs the API server under the supervisor.
//
// On shutdown it stops accepting connections and drains in-flight requests
// for at most the drain timeout, then force-closes what is left. Upgraded
// websocket connections are not tracked by net/http; the hub closes them.
//
//	server := &http.Server{Addr: cfg.Server.Addr(), Handler: router.SetupChi()}
//	tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(server, 10*time.Second))
type HTTPServerService struct {
	server       HTTPServer
	drainTimeout time.Duration
	log          zerolog.Logger
}

// NewHTTPServerService wraps server. A non-positive drainTimeout uses
// DefaultDrainTimeout.
func NewHTTPServerService(server HTTPServer, drainTimeout time.Duration) *HTTPServerService {
	if drainTimeout <= 0 {
		drainTimeout = DefaultDrainTimeout
	}
	return &HTTPServerService{
		server:       server,
		drainTimeout: drainTimeout,
		log:          logging.WithComponent("http-server"),
	}
}

// Serve listens until ctx is canceled or the listener fails. A bind failure
// is returned so the supervisor retries after its backoff.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	listenErr := make(chan error, 1)
	go func() {
		err := h.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		listenErr <- err
	}()

	select {
	case err := <-listenErr:
		if err == nil {
			// closed by someone else; let the supervisor decide
			return errors.New("http server stopped unexpectedly")
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	// ctx is already done; drain on a fresh deadline
	drainCtx, cancel := context.WithTimeout(context.Background(), h.drainTimeout)
	defer cancel()

	if err := h.server.Shutdown(drainCtx); err != nil {
		h.log.Warn().Err(err).Dur("drain_timeout", h.drainTimeout).Msg("HTTP drain incomplete, closing remaining connections")
		if cerr := h.server.Close(); cerr != nil {
			h.log.Warn().Err(cerr).Msg("HTTP server close failed")
		}
		<-listenErr
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	<-listenErr
	return ctx.Err()
}

// String names the service in supervisor logs.
func (h *HTTPServerService) String() string {
	return "http-server"
}

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/tenantcore/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

// fakeServer blocks in ListenAndServe until Shutdown is called.
type fakeServer struct {
	listenErr   error
	shutdownErr error

	mu       sync.Mutex
	stopped  chan struct{}
	shutdown bool
	closed   bool
}

func newFakeServer() *fakeServer {
	return &fakeServer{stopped: make(chan struct{})}
}

func (f *fakeServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stopped
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.shutdown {
		f.shutdown = true
		close(f.stopped)
	}
	return f.shutdownErr
}

func (f *fakeServer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeServer) wasClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeServer) wasShutdown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdown
}

func TestNewHTTPServerServiceDefaults(t *testing.T) {
	svc := NewHTTPServerService(newFakeServer(), 0)
	if svc.drainTimeout != DefaultDrainTimeout {
		t.Errorf("drainTimeout = %v, want %v", svc.drainTimeout, DefaultDrainTimeout)
	}
	if svc.String() != "http-server" {
		t.Errorf("String() = %q", svc.String())
	}

	svc = NewHTTPServerService(newFakeServer(), 3*time.Second)
	if svc.drainTimeout != 3*time.Second {
		t.Errorf("drainTimeout = %v, want 3s", svc.drainTimeout)
	}
}

func TestHTTPServerServiceShutsDownOnCancel(t *testing.T) {
	srv := newFakeServer()
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if !srv.wasShutdown() {
		t.Error("Shutdown was not called")
	}
	if srv.wasClosed() {
		t.Error("Close called after a clean drain")
	}
}

func TestHTTPServerServiceErrors(t *testing.T) {
	tests := []struct {
		name        string
		listenErr   error
		shutdownErr error
		cancel      bool
		want        error
	}{
		{name: "bind failure", listenErr: errors.New("address already in use"), want: nil},
		{name: "shutdown failure", shutdownErr: context.DeadlineExceeded, cancel: true, want: context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeServer()
			srv.listenErr = tt.listenErr
			srv.shutdownErr = tt.shutdownErr
			svc := NewHTTPServerService(srv, time.Second)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancel {
				go func() {
					time.Sleep(20 * time.Millisecond)
					cancel()
				}()
			}

			err := svc.Serve(ctx)
			if err == nil {
				t.Fatal("Serve() = nil, want error")
			}
			if tt.listenErr != nil && !errors.Is(err, tt.listenErr) {
				t.Errorf("Serve() = %v, want wrapped %v", err, tt.listenErr)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Serve() = %v, want wrapped %v", err, tt.want)
			}
			if tt.shutdownErr != nil && !srv.wasClosed() {
				t.Error("remaining connections were not closed after a failed drain")
			}
		})
	}
}

func TestHTTPServerServiceWithRealServer(t *testing.T) {
	srv := &http.Server{
		Addr:              "127.0.0.1:0",
		Handler:           http.NotFoundHandler(),
		ReadHeaderTimeout: time.Second,
	}
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() = %v, want context.DeadlineExceeded", err)
	}
}

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Layer selects the child supervisor a service runs under.
type Layer int

const (
	// LayerData holds background maintenance of shared Redis state.
	LayerData Layer = iota
	// LayerMessaging holds the hub, the notification subscriber and the
	// application event consumers.
	LayerMessaging
	// LayerAPI holds the HTTP server.
	LayerAPI
)

var layerNames = [...]string{
	LayerData:      "data-layer",
	LayerMessaging: "messaging-layer",
	LayerAPI:       "api-layer",
}

func (l Layer) String() string {
	if l < 0 || int(l) >= len(layerNames) {
		return fmt.Sprintf("layer(%d)", int(l))
	}
	return layerNames[l]
}

// TreeConfig tunes restart behavior. Zero fields take the value from
// DefaultTreeConfig.
type TreeConfig struct {
	FailureThreshold float64       // failures tolerated before backoff
	FailureDecay     float64       // seconds for the failure count to decay
	FailureBackoff   time.Duration // pause once the threshold is crossed
	ShutdownTimeout  time.Duration // per-service stop deadline
}

// DefaultTreeConfig mirrors suture's own defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c TreeConfig) withDefaults() TreeConfig {
	d := DefaultTreeConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.FailureDecay <= 0 {
		c.FailureDecay = d.FailureDecay
	}
	if c.FailureBackoff <= 0 {
		c.FailureBackoff = d.FailureBackoff
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}

func (c TreeConfig) options(hook suture.EventHook) suture.Spec {
	return suture.Spec{
		EventHook:        hook,
		FailureThreshold: c.FailureThreshold,
		FailureDecay:     c.FailureDecay,
		FailureBackoff:   c.FailureBackoff,
		Timeout:          c.ShutdownTimeout,
	}
}

// Tree is the supervisor hierarchy of one process. Each Layer is its own
// child supervisor, so a service stuck in backoff does not stall the
// others.
type Tree struct {
	root   *suture.Supervisor
	layers [len(layerNames)]*suture.Supervisor
	config TreeConfig
}

// NewTree builds the root supervisor and one child per Layer. Supervisor
// events are written to logger through sutureslog.
func NewTree(logger *slog.Logger, config TreeConfig) (*Tree, error) {
	if logger == nil {
		return nil, fmt.Errorf("supervisor: nil logger")
	}
	config = config.withDefaults()

	hook := (&sutureslog.Handler{Logger: logger}).MustHook()
	t := &Tree{
		root:   suture.New("tenantcore", config.options(hook)),
		config: config,
	}
	for i, name := range layerNames {
		// children inherit the root's hook when added
		t.layers[i] = suture.New(name, config.options(nil))
		t.root.Add(t.layers[i])
	}
	return t, nil
}

// Root exposes the root supervisor.
func (t *Tree) Root() *suture.Supervisor {
	return t.root
}

// Add starts svc under layer once the tree is serving. It panics on an
// unknown layer.
func (t *Tree) Add(layer Layer, svc suture.Service) suture.ServiceToken {
	if layer < 0 || int(layer) >= len(t.layers) {
		panic(fmt.Sprintf("supervisor: unknown %s", layer))
	}
	return t.layers[layer].Add(svc)
}

// Serve blocks until ctx is canceled and every layer has stopped.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the tree. The channel receives exactly one value,
// the result of Serve, and is never closed.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed ShutdownTimeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

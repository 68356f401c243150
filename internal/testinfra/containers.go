// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

//go:build integration

package testinfra

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
)

var (
	dockerOnce sync.Once
	dockerErr  error
)

// dockerHealth asks the testcontainers provider for the daemon once per
// test binary.
func dockerHealth() error {
	dockerOnce.Do(func() {
		provider, err := testcontainers.NewDockerProvider()
		if err != nil {
			dockerErr = err
			return
		}
		defer provider.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		dockerErr = provider.Health(ctx)
	})
	return dockerErr
}

// SkipIfNoDocker skips t when no Docker daemon answers.
func SkipIfNoDocker(t *testing.T) {
	t.Helper()
	if err := dockerHealth(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
}

// CleanupContainer terminates ctr at the end of t. A nil container is
// ignored; termination errors are logged only.
func CleanupContainer(t *testing.T, ctr testcontainers.Container) {
	t.Helper()
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr, testcontainers.StopTimeout(30*time.Second)); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})
}

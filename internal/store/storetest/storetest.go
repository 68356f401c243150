// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

// Package storetest starts an in-process Redis (miniredis) and returns a
// store.Redis connected to it, for unit tests of the Redis-backed packages.
package storetest

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/tomtom215/tenantcore/internal/config"
	"github.com/tomtom215/tenantcore/internal/store"
)

// Config returns a RedisConfig pointing at mr.
func Config(t testing.TB, mr *miniredis.Miniredis) config.RedisConfig {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("miniredis port %q: %v", mr.Port(), err)
	}
	return config.RedisConfig{
		Host:         mr.Host(),
		Port:         port,
		PoolSize:     4,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		QueuePrefix:  "test",
	}
}

// New starts miniredis and returns a pinged store connected to it. Both are
// closed when the test ends.
func New(t testing.TB) (*store.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := store.NewRedis(Config(t, mr), "test-"+t.Name())
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping miniredis: %v", err)
	}
	return s, mr
}

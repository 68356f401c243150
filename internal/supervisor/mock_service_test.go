// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
)

// countingService runs until canceled and fails its first failures starts.
type countingService struct {
	name     string
	starts   atomic.Int32
	failures int32
}

func newCountingService(name string, failures int32) *countingService {
	return &countingService{name: name, failures: failures}
}

func (s *countingService) Serve(ctx context.Context) error {
	if n := s.starts.Add(1); n <= s.failures {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *countingService) Starts() int32 {
	return s.starts.Load()
}

func (s *countingService) String() string {
	return s.name
}

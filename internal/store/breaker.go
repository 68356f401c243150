// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/tenantcore/internal/logging"
	"github.com/tomtom215/tenantcore/internal/metrics"
)

// BreakerConfig tunes the store circuit breaker.
type BreakerConfig struct {
	MaxRequests uint32        // requests allowed while half-open
	Interval    time.Duration // closed-state counting window
	Timeout     time.Duration // open duration before half-open
	MinRequests uint32        // requests observed before the breaker may trip
	FailureRate float64       // ratio of failures that trips the breaker
}

// DefaultBreakerConfig mirrors the breaker settings used for upstream APIs,
// with a shorter open period since Redis recovers quickly.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		MinRequests: 10,
		FailureRate: 0.6,
	}
}

func newBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker[interface{}] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= cfg.FailureRate
			if shouldTrip {
				logging.Warn().Str("breaker", name).Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening store circuit")
			}
			return shouldTrip
		},

		// A miss or a caller cancellation says nothing about store health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, redis.Nil) ||
				errors.Is(err, context.Canceled)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] Store state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

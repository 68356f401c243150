// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

// Package store defines the key-value contract used by the response cache,
// connection registry, presence tracker and notification bus, and its Redis
// implementation.
//
// The contract is intentionally small: string values with TTL, sets, hashes,
// glob key enumeration (implemented with SCAN, never KEYS), atomic pipelines
// and pub/sub. Callers treat the store as advisory: every error is returned
// so the caller can decide whether to log and continue.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotConfigured is returned when no store address was configured.
	ErrNotConfigured = errors.New("store: not configured")

	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("store: unavailable")
)

// Store is the key-value contract shared by all Redis-backed components.
type Store interface {
	// Get returns the value of key. A missing key returns ("", false, nil).
	Get(ctx context.Context, key string) (string, bool, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Keys returns every key matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	SetAdd(ctx context.Context, key string, members ...string) error
	SetRemove(ctx context.Context, key string, members ...string) error
	SetMembers(ctx context.Context, key string) ([]string, error)

	HashSet(ctx context.Context, key string, fields map[string]string) error
	// HashGetAll returns an empty map when the key does not exist.
	HashGetAll(ctx context.Context, key string) (map[string]string, error)

	// Pipeline returns a batch that is executed atomically by Exec.
	Pipeline() Pipeline

	Publish(ctx context.Context, channel, payload string) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	Ping(ctx context.Context) error
	Connected() bool
	Close() error
}

// Pipeline queues commands and runs them in submission order as a single
// MULTI/EXEC transaction.
type Pipeline interface {
	SetWithTTL(key, value string, ttl time.Duration)
	SetAdd(key string, members ...string)
	SetRemove(key string, members ...string)
	HashSet(key string, fields map[string]string)
	Expire(key string, ttl time.Duration)
	Delete(keys ...string)
	// Len returns the number of queued commands.
	Len() int
	Exec(ctx context.Context) error
}

// Message is one pub/sub delivery.
type Message struct {
	Channel string
	Payload string
}

// Subscription delivers messages until Close is called. The channel is
// closed once the subscription ends.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

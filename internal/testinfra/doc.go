// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

// Package testinfra runs the Redis-backed packages against a real Redis
// server in a Docker container, using testcontainers-go.
//
// Unit tests use miniredis through store/storetest. The tests here cover
// what miniredis only approximates: SCAN cursors over many keys, pub/sub
// between separate connections, and key expiry on the server clock.
//
// Everything is behind the integration build tag:
//
//	go test -tags integration ./internal/testinfra/...
//
// Tests skip when Docker is unavailable.
package testinfra

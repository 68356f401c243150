// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

// Package models defines the data types shared between the cache, registry,
// presence, notification and websocket packages.
//
// Types in this package are plain data with JSON tags. They carry no
// behavior beyond small parsing helpers, so every package can depend on
// models without creating import cycles.
//
// Wire formats defined here are shared by every process attached to the same
// Redis deployment (API and worker processes alike):
//
//   - NotificationMessage: JSON payload on {queuePrefix}:websocket_notifications
//   - PresenceStatus: JSON value stored under presence:{userId}
//   - ClientInfo: hash fields stored under {queuePrefix}:ws_client:{socketId}
package models

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

/*
Package main is the entry point for the Tenantcore server.

Tenantcore is the Redis-backed realtime core of a multi-tenant backend: a
response cache with element-level invalidation, a shared registry of live
WebSocket connections, user presence, and a notification channel that lets
worker processes reach sockets held by API processes.

# Application Architecture

	Tree ("tenantcore")
	├── data-layer
	│   └── presence-sweep (PRESENCE_SWEEP_ENABLED)
	├── messaging-layer
	│   ├── websocket-hub (registry cleanup, client shutdown)
	│   ├── notification-subscriber (Redis pub/sub)
	│   └── event-consumer:<topic> (inbound client events)
	└── api-layer
	    └── http-server (chi router)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config file
 2. Logging: zerolog with JSON/console output modes
 3. Store: two Redis connections, commands and pub/sub
 4. Cache, registry and presence on the shared store
 5. Notification bus and in-process event bus
 6. Connection hub and WebSocket transport (API role only)
 7. Authentication: JWT or trusted headers
 8. Supervisor tree and HTTP server

# Process Roles

PROCESS_ROLE=api holds sockets and receives notifications. PROCESS_ROLE=worker
holds none and reaches users only by publishing on the notification
channel. All processes of one deployment must share REDIS_HOST and
QUEUE_PREFIX.

# Configuration

	Priority: Environment variables > Config file (CONFIG_PATH) > Defaults

Core environment variables:

	HTTP_PORT=3000
	PROCESS_ROLE=api              # api or worker
	REDIS_HOST=redis              # empty disables Redis
	QUEUE_PREFIX=tenantcore
	AUTH_MODE=jwt                 # jwt or none
	JWT_SECRET=<32+ chars>
	WS_ALLOWED_ORIGINS=https://app.example.com
	PRESENCE_SWEEP_ENABLED=true
	LOG_LEVEL=info
	LOG_FORMAT=json

Without Redis the server still runs: the cache, presence and registry
become no-ops and notifications stay inside the process.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The tree then stops the HTTP
server (10s drain), closes every local socket with a shutdown frame, drops
the notification subscription, and reports services that missed the
shutdown timeout.

# Usage Examples

Development:

	export AUTH_MODE=none REDIS_HOST=localhost WS_ALLOWED_ORIGINS='*'
	go run ./cmd/server

Worker process next to an API process:

	export PROCESS_ROLE=worker REDIS_HOST=redis JWT_SECRET=$(openssl rand -base64 32)
	./tenantcore

# See Also

  - internal/config: configuration and validation
  - internal/supervisor: process supervision
  - internal/api: HTTP routes
  - internal/websocket: connection hub
*/
package main

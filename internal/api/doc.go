// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

/*
Package api provides the HTTP surface of a Tenantcore process.

Routes are served by a Chi router. Every route goes through request id,
RealIP, Recoverer and CORS; the groups below add rate limiting, security
headers, Prometheus request metrics and authentication.

Health (no authentication):
  - GET /api/v1/health/live: process liveness
  - GET /api/v1/health/ready: 503 while the shared store is configured but unreachable
  - GET /metrics: Prometheus exposition

Realtime (authenticated):
  - GET /api/v1/ws: websocket upgrade; browsers pass the JWT as ?token=
  - GET /api/v1/presence/{userID}: presence of one user
  - POST /api/v1/presence/batch: presence of up to 500 users
  - POST /api/v1/notifications: deliver an event to a user or company
  - GET /api/v1/connections/companies/{companyID}: connected users of the caller's company

Response cache administration (authenticated):
  - POST /api/v1/cache/invalidate: invalidate every entry referencing the given elements
  - DELETE /api/v1/cache/users/{userID}: drop the caller's own cached responses
  - DELETE /api/v1/cache/types/{type}: invalidate every element of a type

Application handlers mounted with Router.MountCached run behind the same
authentication plus the response cache middleware.

Every route is scoped to the caller's company: presence of users in other
companies reads as offline, and notifications can only target the caller's
own company or users connected under it.

Responses use the models.APIResponse envelope:

	{"status":"success","data":{...},"metadata":{"timestamp":"..."}}
	{"status":"error","data":null,"metadata":{...},"error":{"code":"...","message":"..."}}
*/
package api

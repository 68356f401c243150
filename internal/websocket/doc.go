// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

/*
Package websocket is the connection hub: the process-local map from user id
to the live sockets this process holds, plus the routing that decides
whether an outbound event is emitted to a local socket or published on the
notification bus for another process to deliver.

# Process Roles

A hub runs in one of two roles fixed at construction:

  - API: owns client sockets. Sends are emitted to matching local sockets
    and then published on the notification bus so other API processes can
    deliver to their own sockets. LocalOnly disables the publish step for
    single-process deployments.
  - Worker: holds no sockets. Every send is published.

Messages received from the bus are emitted locally and never published
again. A process also drops bus messages carrying its own instance id,
since it has already delivered those locally.

# Registry Mirror

AddClient and RemoveClient change the local map synchronously and mirror
the change into the shared connection registry in the background. Mirror
writes run one at a time in submission order, so a quick connect and
disconnect of the same socket cannot reach Redis reversed. A failing
mirror write is logged and never undoes the local change. WaitPending
blocks until queued mirror writes have finished.

# Wire Format

Frames in both directions are JSON objects:

	{"event": "presence_update", "data": {...}}

Clients may send ping, activity, message and google_meet_part events.
Inbound frames are rate limited per client with golang.org/x/time/rate.

# Lifecycle

RunWithContext follows the suture.Service contract. It runs the registry
cleanup sweep on a fixed interval until its context is canceled, then closes
every local socket.
*/
package websocket

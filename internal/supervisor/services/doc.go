// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

/*
Package services adapts Tenantcore components to suture.Service.

Each wrapper translates a component's lifecycle into Serve(ctx) error and
names itself through fmt.Stringer for the supervisor logs:

  - HTTPServerService: ListenAndServe with graceful Shutdown
  - WebSocketHubService: the hub's RunWithContext loop
  - NotificationSubscriberService: the notification channel subscription;
    a bus without Redis is not restarted
  - PresenceSweepService: the idle sweep ticker plus presence_update
    announcements
  - EventConsumerService: one application handler on one event topic

The wrappers depend on small interfaces rather than the concrete packages so
they can be tested with fakes.
*/
package services

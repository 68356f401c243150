// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

/*
Package supervisor owns the lifetime of every long-running goroutine in a
Tenantcore process. It is a thin layer over suture v4.

The tree has three child supervisors, one per Layer:

	tenantcore
	├── data-layer       PresenceSweepService (presence.sweep_enabled)
	├── messaging-layer  WebSocketHubService
	│                    NotificationSubscriberService
	│                    EventConsumerService, one per client event topic
	└── api-layer        HTTPServerService

Wiring from cmd/server:

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	tree.Add(supervisor.LayerMessaging, services.NewWebSocketHubService(hub))
	tree.Add(supervisor.LayerMessaging, services.NewNotificationSubscriberService(bus))
	tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(server, 0))

	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	err = <-errCh

Restart rules follow suture: a returning Serve is restarted whether or not
it returned an error, and only suture.ErrDoNotRestart retires a service.
The notification subscriber uses that to stand down when Redis is not
configured instead of spinning in backoff.

Supervisor events (restarts, backoff, stop timeouts) are logged through
sutureslog into the zerolog stream; see logging.NewSlogLogger.
*/
package supervisor

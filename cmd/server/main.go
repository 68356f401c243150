// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/tenantcore/internal/api"
	"github.com/tomtom215/tenantcore/internal/auth"
	"github.com/tomtom215/tenantcore/internal/cache"
	"github.com/tomtom215/tenantcore/internal/config"
	"github.com/tomtom215/tenantcore/internal/events"
	"github.com/tomtom215/tenantcore/internal/logging"
	"github.com/tomtom215/tenantcore/internal/models"
	"github.com/tomtom215/tenantcore/internal/notify"
	"github.com/tomtom215/tenantcore/internal/presence"
	"github.com/tomtom215/tenantcore/internal/registry"
	"github.com/tomtom215/tenantcore/internal/store"
	"github.com/tomtom215/tenantcore/internal/supervisor"
	"github.com/tomtom215/tenantcore/internal/supervisor/services"
	ws "github.com/tomtom215/tenantcore/internal/websocket"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	role := cfg.WebSocket.ProcessRole()
	instanceID := uuid.NewString()

	logging.Init(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Caller:     cfg.Logging.Caller,
		Timestamp:  true,
		Role:       string(role),
		InstanceID: instanceID,
	})
	logging.Info().Str("config", cfg.String()).Msg("Starting Tenantcore")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// All three stay nil interfaces without Redis so every component degrades.
	var kv, pub, sub store.Store
	if cfg.Redis.Enabled() {
		primary := store.NewRedis(cfg.Redis, "main")
		kv = primary
		defer func() {
			if err := primary.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing Redis client")
			}
		}()
		// the bus owns and closes these two; a subscription holds its
		// connection for its whole lifetime
		pub = store.NewRedis(cfg.Redis, "publisher")
		sub = store.NewRedis(cfg.Redis, "subscriber")

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := primary.Ping(pingCtx); err != nil {
			logging.Warn().Err(err).Str("addr", cfg.Redis.Addr()).Msg("Redis not reachable at startup, components degrade until it returns")
		} else {
			logging.Info().Str("addr", cfg.Redis.Addr()).Msg("Connected to Redis")
		}
		pingCancel()
	} else {
		logging.Warn().Msg("Redis disabled (REDIS_HOST empty): cache, presence and registry are no-ops and the hub is process-local")
	}

	responseCache := cache.New(kv, cfg.Cache)
	clientRegistry := registry.New(kv, cfg.Redis.QueuePrefix, cfg.WebSocket.RegistryTTL)
	tracker := presence.New(kv, cfg.Presence)

	bus := notify.New(pub, sub, notify.Config{
		QueuePrefix: cfg.Redis.QueuePrefix,
		Role:        role,
		InstanceID:  instanceID,
	})
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing notification bus")
		}
	}()

	appEvents := events.NewBus(events.NewZerologAdapter(logging.WithComponent("events")))
	defer func() {
		if err := appEvents.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	hub := ws.NewHub(ws.HubConfig{
		Role:            role,
		LocalOnly:       cfg.WebSocket.LocalOnly,
		InstanceID:      instanceID,
		CleanupInterval: cfg.WebSocket.CleanupInterval,
	}, clientRegistry, bus, tracker, appEvents)
	bus.OnMessage(hub.HandleRedisNotification)

	var wsServer *ws.Server
	if role == models.RoleAPI {
		wsServer = ws.NewServer(hub, cfg.WebSocket.AllowedOrigins, ws.ClientOptions{
			MessageRate:  cfg.WebSocket.MessageRate,
			MessageBurst: cfg.WebSocket.MessageBurst,
		})
	}

	authenticator, err := auth.NewAuthenticator(cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authentication")
	}
	if cfg.Security.AuthMode == "none" {
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: identity is read from request headers")
		logging.Warn().Msg("  (AUTH_MODE=none). Only run this behind a gateway that")
		logging.Warn().Msg("  strips and sets X-User-ID and X-Company-ID itself.")
		logging.Warn().Msg("============================================================")
	}
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	handler := api.NewHandler(api.Deps{
		Store:    kv,
		Cache:    responseCache,
		Presence: tracker,
		Registry: clientRegistry,
		Hub:      hub,
		WSServer: wsServer,
	})
	router := api.NewRouter(handler, auth.NewMiddleware(authenticator),
		api.NewEdge(api.EdgeConfigFromSecurity(cfg.Security)))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if cfg.Presence.SweepEnabled {
		tree.Add(supervisor.LayerData, services.NewPresenceSweepService(tracker, clientRegistry, hub, cfg.Presence.SweepInterval))
		logging.Info().Dur("interval", cfg.Presence.SweepInterval).Msg("Presence sweep added to supervisor tree")
	}

	tree.Add(supervisor.LayerMessaging, services.NewWebSocketHubService(hub))
	tree.Add(supervisor.LayerMessaging, services.NewNotificationSubscriberService(bus))
	for _, topic := range []string{events.TopicMessageReceived, events.TopicGoogleMeetPart} {
		tree.Add(supervisor.LayerMessaging, services.NewEventConsumerService(appEvents, topic, logClientEvent(topic)))
	}

	tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for supervisor to finish...")
		// the channel carries exactly one value and is never closed
		serveErr = <-errCh
	case serveErr = <-errCh:
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}

// logClientEvent is the default consumer of inbound client events. Services
// embedding the core replace it with their own handlers.
func logClientEvent(topic string) events.Handler {
	log := logging.WithComponent("client-events")
	return func(_ context.Context, e events.ClientEvent) error {
		log.Debug().
			Str("topic", topic).
			Str("company_id", e.CompanyID).
			Str("user_id", e.UserID).
			Int("payload_bytes", len(e.Payload)).
			Msg("Client event received")
		return nil
	}
}

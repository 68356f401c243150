// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/tenantcore/internal/auth"
	"github.com/tomtom215/tenantcore/internal/middleware"
)

// Router wires handlers and middleware into a Chi router.
type Router struct {
	handler *Handler
	auth    *auth.Middleware
	edge    *Edge
	mounts  []mount
}

type mount struct {
	pattern string
	handler http.Handler
}

// NewRouter creates a Router. A nil edge uses DefaultEdgeConfig.
func NewRouter(handler *Handler, authMw *auth.Middleware, edge *Edge) *Router {
	if edge == nil {
		edge = NewEdge(nil)
	}
	return &Router{
		handler: handler,
		auth:    authMw,
		edge:    edge,
	}
}

// MountCached registers an application handler under pattern. It runs
// behind authentication and the response cache: GET responses are cached
// per user and invalidated through the cache administration routes. Call
// before SetupChi.
func (router *Router) MountCached(pattern string, h http.Handler) {
	router.mounts = append(router.mounts, mount{pattern: pattern, handler: h})
}

// cacheUser keys cached responses by the authenticated user.
func cacheUser(r *http.Request) string {
	if id := auth.FromContext(r.Context()); id != nil {
		return id.UserID
	}
	return ""
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)        // X-Request-ID plus logging context
	r.Use(chimiddleware.RealIP)        // Extract real IP from X-Forwarded-For
	r.Use(chimiddleware.Recoverer)     // Recover from panics
	r.Use(router.edge.CORS()) // CORS must be global to handle OPTIONS preflight
	r.Use(middleware.PrometheusMetrics)

	// ========================
	// Health Endpoints
	// ========================
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.edge.Limit(TierHealth))
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.With(router.edge.Limit(TierHealth)).Handle("/metrics", promhttp.Handler())

	// ========================
	// WebSocket
	// ========================
	// No compression or security headers: the response is hijacked.
	r.With(
		router.edge.Limit(TierWebSocket),
		router.auth.RequireAuth,
	).Get("/api/v1/ws", router.handler.WebSocket)

	// ========================
	// Realtime and Cache API
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.edge.Limit(TierAPI))
		r.Use(APISecurityHeaders())
		r.Use(middleware.Compression)
		r.Use(router.auth.RequireAuth)

		r.Route("/presence", func(r chi.Router) {
			r.Get("/{userID}", router.handler.GetPresence)
			r.Post("/batch", router.handler.BatchPresence)
		})

		r.With(router.edge.Limit(TierWrite)).Post("/notifications", router.handler.PublishNotification)

		r.Get("/connections/companies/{companyID}", router.handler.GetCompanyConnections)

		r.Route("/cache", func(r chi.Router) {
			r.Use(router.edge.Limit(TierWrite))
			r.Post("/invalidate", router.handler.InvalidateElements)
			r.Delete("/users/{userID}", router.handler.DeleteUserCache)
			r.Delete("/types/{type}", router.handler.InvalidateType)
		})

		// ========================
		// Cached Application Routes
		// ========================
		for _, m := range router.mounts {
			r.With(middleware.ResponseCache(router.handler.cache, cacheUser)).Mount(m.pattern, m.handler)
		}
	})

	return r
}

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/tenantcore/internal/auth"
	"github.com/tomtom215/tenantcore/internal/config"
	"github.com/tomtom215/tenantcore/internal/models"
)

// Tier selects a rate limit budget.
type Tier int

const (
	TierAPI       Tier = iota // general authenticated API
	TierWrite                 // notification publishing, cache invalidation
	TierWebSocket             // websocket upgrades
	TierHealth                // probes and /metrics
)

// Budget is a request allowance per window and client IP.
type Budget struct {
	Requests int
	Window   time.Duration
}

// EdgeConfig configures the outermost middleware: CORS and rate limits.
type EdgeConfig struct {
	CORS              cors.Options
	Budgets           map[Tier]Budget
	RateLimitDisabled bool
}

// DefaultEdgeConfig allows no cross-origin callers until origins are
// configured.
func DefaultEdgeConfig() *EdgeConfig {
	return &EdgeConfig{
		CORS: cors.Options{
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{
				"Authorization", "Content-Type", "X-Request-ID",
				auth.HeaderUserID, auth.HeaderCompanyID, auth.HeaderUserName,
			},
			ExposedHeaders: []string{"X-Request-ID", "X-Cache"},
			MaxAge:         int((24 * time.Hour).Seconds()),
		},
		Budgets: map[Tier]Budget{
			TierAPI:       {Requests: 300, Window: time.Minute},
			TierWrite:     {Requests: 120, Window: time.Minute},
			TierWebSocket: {Requests: 30, Window: time.Minute},
			TierHealth:    {Requests: 1000, Window: time.Minute},
		},
	}
}

// EdgeConfigFromSecurity applies the security settings to the defaults.
// The configured request budget replaces the TierAPI budget only.
func EdgeConfigFromSecurity(sec config.SecurityConfig) *EdgeConfig {
	cfg := DefaultEdgeConfig()
	cfg.CORS.AllowedOrigins = sec.CORSOrigins
	general := cfg.Budgets[TierAPI]
	if sec.RateLimitReqs > 0 {
		general.Requests = sec.RateLimitReqs
	}
	if sec.RateLimitWindow > 0 {
		general.Window = sec.RateLimitWindow
	}
	cfg.Budgets[TierAPI] = general
	cfg.RateLimitDisabled = sec.RateLimitDisabled
	return cfg
}

// Edge builds the CORS handler once and hands out one limiter per tier.
type Edge struct {
	cfg  *EdgeConfig
	cors func(http.Handler) http.Handler
}

// NewEdge returns the edge middleware for cfg, or the defaults when cfg is
// nil.
func NewEdge(cfg *EdgeConfig) *Edge {
	if cfg == nil {
		cfg = DefaultEdgeConfig()
	}
	return &Edge{cfg: cfg, cors: cors.Handler(cfg.CORS)}
}

// CORS handles preflight and cross-origin headers. It has to run globally
// so OPTIONS requests never reach a method-restricted route.
func (e *Edge) CORS() func(http.Handler) http.Handler {
	return e.cors
}

// Limit returns the IP-keyed limiter of tier. Rejections use the standard
// error envelope with RATE_LIMITED.
func (e *Edge) Limit(tier Tier) func(http.Handler) http.Handler {
	b, ok := e.cfg.Budgets[tier]
	if e.cfg.RateLimitDisabled || !ok || b.Requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(b.Requests, b.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			respondError(w, http.StatusTooManyRequests, models.ErrRateLimited, "Too many requests", nil)
		}),
	)
}

// APISecurityHeaders sets nosniff, frame denial and the referrer policy,
// plus HSTS when the request came in over TLS directly or via a proxy.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

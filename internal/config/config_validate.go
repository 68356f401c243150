// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/tenantcore/internal/logging"
	"github.com/tomtom215/tenantcore/internal/models"
)

const minJWTSecretLength = 32

// Validate checks every section and reports all problems at once, one per
// line, naming the environment variable to fix.
func (c *Config) Validate() error {
	return errors.Join(
		c.validateServer(),
		c.validateRedis(),
		c.validateCache(),
		c.validatePresence(),
		c.validateWebSocket(),
		c.validateSecurity(),
		c.validateLogging(),
	)
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateRedis() error {
	if !c.Redis.Enabled() {
		return nil
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		return fmt.Errorf("REDIS_PORT must be between 1 and 65535")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("REDIS_DB must not be negative")
	}
	if c.Redis.QueuePrefix == "" {
		return fmt.Errorf("QUEUE_PREFIX is required when REDIS_HOST is set")
	}
	if strings.ContainsAny(c.Redis.QueuePrefix, "*?[] ") {
		return fmt.Errorf("QUEUE_PREFIX must not contain glob characters or spaces")
	}
	return nil
}

func (c *Config) validateCache() error {
	if !c.Cache.Enabled {
		return nil
	}
	if c.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("CACHE_DEFAULT_TTL must be positive")
	}
	if c.Cache.KeyPrefix == "" {
		return fmt.Errorf("CACHE_KEY_PREFIX must not be empty")
	}
	return nil
}

func (c *Config) validatePresence() error {
	p := c.Presence
	if p.OnlineWindow <= 0 || p.AwayWindow <= 0 || p.RecordTTL <= 0 || p.SweepInterval <= 0 {
		return fmt.Errorf("presence windows, record TTL and sweep interval must be positive")
	}
	if p.AwayWindow <= p.OnlineWindow {
		return fmt.Errorf("PRESENCE_AWAY_WINDOW (%s) must exceed PRESENCE_ONLINE_WINDOW (%s)", p.AwayWindow, p.OnlineWindow)
	}
	if p.RecordTTL <= p.AwayWindow {
		return fmt.Errorf("PRESENCE_RECORD_TTL (%s) must exceed PRESENCE_AWAY_WINDOW (%s)", p.RecordTTL, p.AwayWindow)
	}
	return nil
}

func (c *Config) validateWebSocket() error {
	if _, err := models.ParseProcessRole(c.WebSocket.Role); err != nil {
		return fmt.Errorf("PROCESS_ROLE is invalid: %w", err)
	}
	if c.WebSocket.RegistryTTL <= 0 || c.WebSocket.CleanupInterval <= 0 {
		return fmt.Errorf("WS_REGISTRY_TTL and WS_CLEANUP_INTERVAL must be positive")
	}
	if c.WebSocket.MessageRate <= 0 || c.WebSocket.MessageBurst < 1 {
		return fmt.Errorf("WS_MESSAGE_RATE must be positive and WS_MESSAGE_BURST at least 1")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	switch c.Security.AuthMode {
	case "jwt":
		if c.Security.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=jwt")
		}
		if len(c.Security.JWTSecret) < minJWTSecretLength {
			return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
		}
	case "none":
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=none is not allowed when ENVIRONMENT=production")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be one of: jwt, none")
	}

	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 || c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
		}
	}
	if c.IsProduction() {
		for _, origin := range c.Security.CORSOrigins {
			if origin == "*" {
				return fmt.Errorf("CORS_ORIGINS must not contain * when ENVIRONMENT=production")
			}
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "", "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
}

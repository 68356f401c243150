// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

// Package config loads Tenantcore configuration with Koanf v2.
//
// Configuration Loading Order:
//  1. Defaults: built-in values from defaultConfig()
//  2. Config File: optional YAML (config.yaml, /etc/tenantcore/config.yaml or CONFIG_PATH)
//  3. Environment Variables: mapped explicitly by the envVars table
//
// Configuration Categories:
//
//   - Server: HTTP listener
//   - Redis: connection settings and the deployment queue prefix shared by
//     every process attached to the same Redis
//   - Cache: response cache toggle, default TTL and skip patterns
//   - Presence: online/away windows, record TTL and sweep interval
//   - WebSocket: process role, registry TTL, cleanup interval, origins and
//     inbound message limits
//   - Security: auth mode, JWT secret, CORS and HTTP rate limiting
//   - Logging: level, format and caller info
//
// Example:
//
//	cfg, err := config.LoadWithKoanf()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load configuration")
//	}
//	role := cfg.WebSocket.ProcessRole()
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/tomtom215/tenantcore/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Redis     RedisConfig     `koanf:"redis"`
	Cache     CacheConfig     `koanf:"cache"`
	Presence  PresenceConfig  `koanf:"presence"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development, staging, production
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// RedisConfig holds the connection settings of the shared key-value store.
// An empty Host disables Redis: the cache, presence and registry degrade to
// no-ops and the hub stays process-local.
type RedisConfig struct {
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	Username     string        `koanf:"username"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// QueuePrefix namespaces the registry keys and the notification channel.
	// All processes of one deployment must share it.
	QueuePrefix string `koanf:"queue_prefix"`
}

// Enabled reports whether a Redis host is configured.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

// Addr returns host:port for the Redis client.
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Enabled      bool          `koanf:"enabled"`
	DefaultTTL   time.Duration `koanf:"default_ttl"`
	SkipPatterns []string      `koanf:"skip_patterns"` // substrings, or globs when they contain * ? [
	KeyPrefix    string        `koanf:"key_prefix"`
}

// PresenceConfig holds presence thresholds.
type PresenceConfig struct {
	OnlineWindow  time.Duration `koanf:"online_window"`
	AwayWindow    time.Duration `koanf:"away_window"`
	RecordTTL     time.Duration `koanf:"record_ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// SweepEnabled runs the idle sweep in this process. One sweeping process
	// per deployment is enough; more only repeat presence_update events.
	SweepEnabled bool `koanf:"sweep_enabled"`
}

// WebSocketConfig holds connection hub and transport settings.
type WebSocketConfig struct {
	Role            string        `koanf:"role"`
	LocalOnly       bool          `koanf:"local_only"`
	RegistryTTL     time.Duration `koanf:"registry_ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
	MessageRate     float64       `koanf:"message_rate"`  // inbound frames per second per client
	MessageBurst    int           `koanf:"message_burst"` // inbound burst per client
}

// ProcessRole returns the parsed role. Validate has already rejected
// unknown values, so an unparsable role falls back to API.
func (w WebSocketConfig) ProcessRole() models.ProcessRole {
	role, err := models.ParseProcessRole(w.Role)
	if err != nil {
		return models.RoleAPI
	}
	return role
}

// SecurityConfig holds authentication and HTTP protection settings.
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"` // jwt or none
	JWTSecret         string        `koanf:"jwt_secret"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// String summarizes the effective configuration without secrets.
func (c *Config) String() string {
	return fmt.Sprintf("role=%s redis=%t prefix=%s cache=%t auth=%s",
		c.WebSocket.ProcessRole(), c.Redis.Enabled(), c.Redis.QueuePrefix, c.Cache.Enabled, c.Security.AuthMode)
}

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations searched in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tenantcore/config.yaml",
	"/etc/tenantcore/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        3000,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Redis: RedisConfig{
			Host:         "",
			Port:         6379,
			DB:           0,
			PoolSize:     20,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			QueuePrefix:  "tenantcore",
		},
		Cache: CacheConfig{
			Enabled:      true,
			DefaultTTL:   5 * time.Minute,
			SkipPatterns: []string{"/api/v1/health", "/api/v1/ws", "/auth/"},
			KeyPrefix:    "api_cache",
		},
		Presence: PresenceConfig{
			OnlineWindow:  2 * time.Minute,
			AwayWindow:    30 * time.Minute,
			RecordTTL:     35 * time.Minute,
			SweepInterval: time.Minute,
			SweepEnabled:  true,
		},
		WebSocket: WebSocketConfig{
			Role:            "api",
			LocalOnly:       false,
			RegistryTTL:     24 * time.Hour,
			CleanupInterval: 5 * time.Minute,
			AllowedOrigins:  []string{},
			MessageRate:     20,
			MessageBurst:    40,
		},
		Security: SecurityConfig{
			AuthMode:          "jwt",
			JWTSecret:         "",
			RateLimitReqs:     300,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf layers the configuration sources, later ones winning:
//
//  1. defaultConfig
//  2. the first YAML file found (CONFIG_PATH, then DefaultConfigPaths)
//  3. mapped environment variables
//
// The merged result is validated before it is returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns CONFIG_PATH when it exists, else the first
// existing default path, else "".
func findConfigFile() string {
	candidates := DefaultConfigPaths
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		candidates = append([]string{p}, candidates...)
	}
	for _, p := range candidates {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}

type envVar struct {
	path string
	list bool // comma separated
}

// envVars maps the supported environment variables to config paths. Other
// variables are ignored, so unrelated environment never leaks in.
var envVars = map[string]envVar{
	"HTTP_PORT":    {path: "server.port"},
	"HTTP_HOST":    {path: "server.host"},
	"HTTP_TIMEOUT": {path: "server.timeout"},
	"ENVIRONMENT":  {path: "server.environment"},

	"REDIS_HOST":          {path: "redis.host"},
	"REDIS_PORT":          {path: "redis.port"},
	"REDIS_USERNAME":      {path: "redis.username"},
	"REDIS_PASSWORD":      {path: "redis.password"},
	"REDIS_DB":            {path: "redis.db"},
	"REDIS_POOL_SIZE":     {path: "redis.pool_size"},
	"REDIS_DIAL_TIMEOUT":  {path: "redis.dial_timeout"},
	"REDIS_READ_TIMEOUT":  {path: "redis.read_timeout"},
	"REDIS_WRITE_TIMEOUT": {path: "redis.write_timeout"},
	"QUEUE_PREFIX":        {path: "redis.queue_prefix"},

	"CACHE_ENABLED":       {path: "cache.enabled"},
	"CACHE_DEFAULT_TTL":   {path: "cache.default_ttl"},
	"CACHE_SKIP_PATTERNS": {path: "cache.skip_patterns", list: true},
	"CACHE_KEY_PREFIX":    {path: "cache.key_prefix"},

	"PRESENCE_ONLINE_WINDOW":  {path: "presence.online_window"},
	"PRESENCE_AWAY_WINDOW":    {path: "presence.away_window"},
	"PRESENCE_RECORD_TTL":     {path: "presence.record_ttl"},
	"PRESENCE_SWEEP_INTERVAL": {path: "presence.sweep_interval"},
	"PRESENCE_SWEEP_ENABLED":  {path: "presence.sweep_enabled"},

	"PROCESS_ROLE":        {path: "websocket.role"},
	"WS_LOCAL_ONLY":       {path: "websocket.local_only"},
	"WS_REGISTRY_TTL":     {path: "websocket.registry_ttl"},
	"WS_CLEANUP_INTERVAL": {path: "websocket.cleanup_interval"},
	"WS_ALLOWED_ORIGINS":  {path: "websocket.allowed_origins", list: true},
	"WS_MESSAGE_RATE":     {path: "websocket.message_rate"},
	"WS_MESSAGE_BURST":    {path: "websocket.message_burst"},

	"AUTH_MODE":           {path: "security.auth_mode"},
	"JWT_SECRET":          {path: "security.jwt_secret"},
	"RATE_LIMIT_REQUESTS": {path: "security.rate_limit_reqs"},
	"RATE_LIMIT_WINDOW":   {path: "security.rate_limit_window"},
	"DISABLE_RATE_LIMIT":  {path: "security.rate_limit_disabled"},
	"CORS_ORIGINS":        {path: "security.cors_origins", list: true},

	"LOG_LEVEL":  {path: "logging.level"},
	"LOG_FORMAT": {path: "logging.format"},
	"LOG_CALLER": {path: "logging.caller"},
}

// envValue maps one environment variable for koanf. An empty path drops
// the variable; list variables are split on commas with blanks removed.
func envValue(key, value string) (string, interface{}) {
	v, ok := envVars[strings.ToUpper(key)]
	if !ok {
		return "", nil
	}
	if !v.list {
		return v.path, value
	}
	items := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return v.path, items
}

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

// Package logging provides the process-wide zerolog logger for Tenantcore.
//
// Every component (response cache, connection registry, notification bus,
// presence tracker and the websocket hub) logs through this package so that
// advisory failures, which are swallowed at the call site, still leave a
// structured trace:
//
//	logging.Init(logging.Config{Level: "info", Format: "json", Role: "api", InstanceID: id})
//
//	logging.Warn().Err(err).Str("key", key).Msg("Cache read failed")
//	logging.Ctx(ctx).Info().Msg("Client connected")
//
// A notification crosses processes, so every line carries the process role
// and instance id when they are configured. Lines logged through Ctx also
// carry the request, correlation and tenant ids found in the context.
//
// Environment variables (mapped by the config package):
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
//
// Always terminate event chains with .Msg() or .Send(); an unterminated
// chain is never written.
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config selects level, encoding and the per-process fields.
type Config struct {
	Level      string    // trace, debug, info, warn, error, fatal, panic, disabled
	Format     string    // json or console
	Caller     bool      // add file:line
	Timestamp  bool      // add an RFC3339 time field
	Role       string    // process role, "api" or "worker"
	InstanceID string    // unique per process start
	Output     io.Writer // os.Stderr when nil
}

// DefaultConfig is what the package uses before Init runs.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Timestamp: true, Output: os.Stderr}
}

var current atomic.Pointer[zerolog.Logger]

//nolint:gochecknoinits // logging must work before Init is called from main
func init() {
	Init(DefaultConfig())
}

// Init replaces the global logger. Loggers already derived through
// WithComponent keep the previous configuration.
func Init(cfg Config) {
	l := build(cfg)
	current.Store(&l)
}

func build(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.MessageFieldName = "message"

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	c := zerolog.New(out).With()
	if cfg.Timestamp {
		c = c.Timestamp()
	}
	if cfg.Caller {
		c = c.Caller()
	}
	for _, f := range [...]struct{ key, val string }{
		{"role", cfg.Role},
		{"instance_id", cfg.InstanceID},
	} {
		if f.val != "" {
			c = c.Str(f.key, f.val)
		}
	}
	return c.Logger()
}

var levels = map[string]zerolog.Level{
	"trace":    zerolog.TraceLevel,
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"warning":  zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"fatal":    zerolog.FatalLevel,
	"panic":    zerolog.PanicLevel,
	"disabled": zerolog.Disabled,
}

// parseLevel falls back to info for unknown names.
func parseLevel(level string) zerolog.Level {
	if l, ok := levels[strings.ToLower(level)]; ok {
		return l
	}
	return zerolog.InfoLevel
}

// ValidLevel reports whether level names a known log level.
func ValidLevel(level string) bool {
	_, ok := levels[strings.ToLower(level)]
	return ok
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	return *current.Load()
}

// SetLogger installs l as the global logger, typically a buffer-backed
// logger in tests.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func SetLogger(l zerolog.Logger) {
	current.Store(&l)
}

// With starts a child logger context.
func With() zerolog.Context { return current.Load().With() }

func Debug() *zerolog.Event { return current.Load().Debug() }
func Info() *zerolog.Event  { return current.Load().Info() }

// Warn is the level for advisory failures: a cache write, a registry
// mirror or a publish that the caller swallows.
func Warn() *zerolog.Event { return current.Load().Warn() }

func Error() *zerolog.Event { return current.Load().Error() }

// Fatal exits the process with status 1 once the message is written.
func Fatal() *zerolog.Event { return current.Load().Fatal() }

// NewTestLogger writes timestamped JSON lines to w.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

// Package metrics holds the Prometheus instruments of Tenantcore.
//
// Every series is named tenantcore_<subsystem>_<name> and registered on the
// default registry through promauto, which /metrics exposes. Callers prefer
// the Record helpers over label values spelled at the call site.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tenantcore"

func counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

func counter(subsystem, name, help string) prometheus.Counter {
	return promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	})
}

func gauge(subsystem, name, help string) prometheus.Gauge {
	return promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	})
}

func histogramVec(subsystem, name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		Buckets: prometheus.DefBuckets,
	}, labels)
}

// HTTP API.
var (
	APIRequestsTotal   = counterVec("api", "requests_total", "API requests by method, route pattern and status.", "method", "endpoint", "status")
	APIRequestDuration = histogramVec("api", "request_duration_seconds", "API request latency.", "method", "endpoint")
	APIActiveRequests  = gauge("api", "active_requests", "API requests in flight.")
)

// Response cache.
var (
	CacheLookups         = counterVec("response_cache", "lookups_total", "Cache lookups by result (hit, miss).", "result")
	CacheSets            = counter("response_cache", "sets_total", "Responses written to the cache.")
	CacheErrors          = counterVec("response_cache", "errors_total", "Swallowed cache errors by operation.", "operation")
	CacheInvalidatedKeys = counterVec("response_cache", "invalidated_keys_total", "Keys removed by invalidation, by reason (element, user, pattern, key).", "reason")
)

// Store and its circuit breaker.
var (
	StoreCommandErrors        = counterVec("store", "command_errors_total", "Failed Redis commands.", "command")
	CircuitBreakerState       = promauto.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Subsystem: "store", Name: "circuit_breaker_state", Help: "Breaker state: 0 closed, 1 half-open, 2 open."}, []string{"name"})
	CircuitBreakerRequests    = counterVec("store", "circuit_breaker_requests_total", "Calls through the breaker by result (success, failure, rejected).", "name", "result")
	CircuitBreakerTransitions = counterVec("store", "circuit_breaker_transitions_total", "Breaker state changes.", "name", "from_state", "to_state")
)

// Websocket hub.
var (
	WSConnections      = gauge("websocket", "connections", "Sockets attached to this process.")
	WSMessagesSent     = counter("websocket", "messages_sent_total", "Frames queued for delivery.")
	WSMessagesReceived = counterVec("websocket", "messages_received_total", "Inbound frames by event.", "event")
	WSErrors           = counterVec("websocket", "errors_total", "Websocket errors by type.", "error_type")
)

// Notification bus.
var (
	NotificationsPublished = counterVec("notifications", "published_total", "Notifications published on the shared channel.", "type")
	NotificationsReceived  = counterVec("notifications", "received_total", "Notifications received from the shared channel.", "type")
	NotificationsDropped   = counterVec("notifications", "dropped_total", "Notifications not delivered, by reason (malformed, no_publisher, publish_failed, own_origin).", "reason")
)

// Sweeps.
var (
	PresenceSweepChanges   = counterVec("sweep", "presence_changes_total", "Presence records demoted by the idle sweep.", "status")
	RegistryOrphansRemoved = counter("sweep", "registry_orphans_removed_total", "Orphaned socket ids removed from the registry.")
	SweepDuration          = histogramVec("sweep", "duration_seconds", "Duration of one sweep pass.", "sweep")
)

// RecordAPIRequest counts one finished request and observes its latency.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest moves the in-flight gauge up on start and down on end.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}

func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(result).Inc()
}

func RecordCacheError(operation string) {
	CacheErrors.WithLabelValues(operation).Inc()
}

// RecordCacheInvalidation ignores non-positive counts.
func RecordCacheInvalidation(reason string, n int64) {
	if n > 0 {
		CacheInvalidatedKeys.WithLabelValues(reason).Add(float64(n))
	}
}

func RecordNotificationPublished(notificationType string) {
	NotificationsPublished.WithLabelValues(notificationType).Inc()
}

func RecordNotificationReceived(notificationType string) {
	NotificationsReceived.WithLabelValues(notificationType).Inc()
}

func RecordNotificationDropped(reason string) {
	NotificationsDropped.WithLabelValues(reason).Inc()
}

// RecordSweep observes one pass of the named sweep ("presence", "registry").
func RecordSweep(sweep string, duration time.Duration) {
	SweepDuration.WithLabelValues(sweep).Observe(duration.Seconds())
}

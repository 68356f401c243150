// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/presence/{userID}", "200"))
	RecordAPIRequest("GET", "/api/v1/presence/{userID}", "200", 15*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/presence/{userID}", "200"))

	if after-before != 1 {
		t.Errorf("Expected tenantcore_api_requests_total to increase by 1, got %v", after-before)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("Expected active requests %v, got %v", before+1, got)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("Expected active requests %v, got %v", before, got)
	}
}

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(CacheLookups.WithLabelValues("hit"))
	misses := testutil.ToFloat64(CacheLookups.WithLabelValues("miss"))

	RecordCacheLookup(true)
	RecordCacheLookup(false)
	RecordCacheLookup(false)

	if got := testutil.ToFloat64(CacheLookups.WithLabelValues("hit")) - hits; got != 1 {
		t.Errorf("Expected 1 hit, got %v", got)
	}
	if got := testutil.ToFloat64(CacheLookups.WithLabelValues("miss")) - misses; got != 2 {
		t.Errorf("Expected 2 misses, got %v", got)
	}
}

func TestRecordCacheInvalidation(t *testing.T) {
	tests := []struct {
		name  string
		n     int64
		delta float64
	}{
		{"zero keys is not recorded", 0, 0},
		{"negative is not recorded", -1, 0},
		{"positive count", 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(CacheInvalidatedKeys.WithLabelValues("element"))
			RecordCacheInvalidation("element", tt.n)
			after := testutil.ToFloat64(CacheInvalidatedKeys.WithLabelValues("element"))
			if after-before != tt.delta {
				t.Errorf("Expected delta %v, got %v", tt.delta, after-before)
			}
		})
	}
}

func TestRecordNotificationCounters(t *testing.T) {
	pub := testutil.ToFloat64(NotificationsPublished.WithLabelValues("company"))
	recv := testutil.ToFloat64(NotificationsReceived.WithLabelValues("company"))
	drop := testutil.ToFloat64(NotificationsDropped.WithLabelValues("malformed"))

	RecordNotificationPublished("company")
	RecordNotificationReceived("company")
	RecordNotificationDropped("malformed")

	if testutil.ToFloat64(NotificationsPublished.WithLabelValues("company")) != pub+1 {
		t.Error("Expected notifications_published_total to increase")
	}
	if testutil.ToFloat64(NotificationsReceived.WithLabelValues("company")) != recv+1 {
		t.Error("Expected notifications_received_total to increase")
	}
	if testutil.ToFloat64(NotificationsDropped.WithLabelValues("malformed")) != drop+1 {
		t.Error("Expected notifications_dropped_total to increase")
	}
}

func TestRecordSweep(t *testing.T) {
	RecordSweep("presence", 20*time.Millisecond)
	if n := testutil.CollectAndCount(SweepDuration); n < 1 {
		t.Errorf("Expected at least one sweep_duration_seconds series, got %d", n)
	}
}

func TestSeriesNames(t *testing.T) {
	RecordNotificationDropped("own_origin")
	n, err := testutil.GatherAndCount(prometheus.DefaultGatherer, "tenantcore_notifications_dropped_total")
	if err != nil || n < 1 {
		t.Errorf("GatherAndCount() = %d, %v; want at least one series", n, err)
	}
}

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package models

import (
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestNewSuccess(t *testing.T) {
	start := time.Now().Add(-25 * time.Millisecond)
	resp := NewSuccess(map[string]int{"n": 1}, start)

	if resp.Status != StatusSuccess || resp.Error != nil {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Metadata.QueryTimeMS < 25 {
		t.Errorf("QueryTimeMS = %d, want >= 25", resp.Metadata.QueryTimeMS)
	}
	if resp.Metadata.Timestamp.Location() != time.UTC {
		t.Error("timestamp should be UTC")
	}
}

func TestNewFailureEncoding(t *testing.T) {
	resp := NewFailure(&APIError{Code: ErrForbidden, Message: "nope"})
	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	body := string(raw)
	for _, want := range []string{`"status":"error"`, `"data":null`, `"code":"FORBIDDEN"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body %s missing %s", body, want)
		}
	}
	if strings.Contains(body, "query_time_ms") {
		t.Errorf("failure body should omit query_time_ms: %s", body)
	}
}

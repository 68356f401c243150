// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/tenantcore/internal/models"
)

func startServer(t *testing.T, hub *Hub, origins []string, opts ClientOptions) *httptest.Server {
	t.Helper()
	s := NewServer(hub, origins, opts)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.ServeWS(w, r, r.URL.Query().Get("user"), "c1", "Ada")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, user string, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn) wireFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var f wireFrame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame %s: %v", data, err)
	}
	return f
}

// readUntil skips frames until one with event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) wireFrame {
	t.Helper()
	for i := 0; i < 10; i++ {
		if f := readFrame(t, conn); f.Event == event {
			return f
		}
	}
	t.Fatalf("no %s frame received", event)
	return wireFrame{}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClientLifecycle(t *testing.T) {
	f := newFixture(t, HubConfig{Role: models.RoleAPI, LocalOnly: true})
	srv := startServer(t, f.hub, []string{"*"}, ClientOptions{})
	conn := dial(t, srv, "u1", nil)

	connected := readUntil(t, conn, EventConnected)
	var info ConnectedData
	if err := json.Unmarshal(connected.Data, &info); err != nil || info.UserID != "u1" || info.CompanyID != "c1" || info.SocketID == "" {
		t.Errorf("connected data = %s (%v)", connected.Data, err)
	}
	waitFor(t, "hub registration", func() bool { return f.hub.GetClientCount() == 1 })

	if err := conn.WriteJSON(map[string]string{"event": EventPing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	readUntil(t, conn, EventPong)

	f.hub.SendMessageToUser(context.Background(), "u1", "task_updated", map[string]int{"x": 1})
	got := readUntil(t, conn, "task_updated")
	if string(got.Data) != `{"x":1}` {
		t.Errorf("task_updated data = %s", got.Data)
	}

	if err := conn.WriteJSON(map[string]interface{}{"event": EventMessage, "data": map[string]string{"text": "hi"}}); err != nil {
		t.Fatalf("write message: %v", err)
	}
	waitFor(t, "message event", func() bool {
		f.events.mu.Lock()
		defer f.events.mu.Unlock()
		return len(f.events.topics) == 1
	})

	_ = conn.Close()
	waitFor(t, "hub deregistration", func() bool { return f.hub.GetClientCount() == 0 })
	f.hub.WaitPending()
	waitFor(t, "offline presence", func() bool {
		return f.presence.GetUserStatus(context.Background(), "u1").Status == models.PresenceOffline
	})
}

func TestClientRejectsBadFrames(t *testing.T) {
	f := newFixture(t, HubConfig{Role: models.RoleAPI, LocalOnly: true})
	srv := startServer(t, f.hub, []string{"*"}, ClientOptions{})
	conn := dial(t, srv, "u1", nil)
	readUntil(t, conn, EventConnected)

	tests := []struct {
		frame string
		code  string
	}{
		{"not json", "INVALID_FRAME"},
		{`{"data":1}`, "INVALID_FRAME"},
		{`{"event":"launch_rockets"}`, "UNKNOWN_EVENT"},
	}
	for _, tt := range tests {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.frame)); err != nil {
			t.Fatalf("write %q: %v", tt.frame, err)
		}
		got := readUntil(t, conn, EventError)
		var data ErrorData
		_ = json.Unmarshal(got.Data, &data)
		if data.Code != tt.code {
			t.Errorf("frame %q: error code = %s, want %s", tt.frame, data.Code, tt.code)
		}
	}
}

func TestClientRateLimit(t *testing.T) {
	f := newFixture(t, HubConfig{Role: models.RoleAPI, LocalOnly: true})
	srv := startServer(t, f.hub, []string{"*"}, ClientOptions{MessageRate: 0.001, MessageBurst: 1})
	conn := dial(t, srv, "u1", nil)
	readUntil(t, conn, EventConnected)

	for i := 0; i < 2; i++ {
		_ = conn.WriteJSON(map[string]string{"event": EventActivity})
	}
	got := readUntil(t, conn, EventError)
	var data ErrorData
	_ = json.Unmarshal(got.Data, &data)
	if data.Code != "RATE_LIMITED" {
		t.Errorf("error code = %s, want RATE_LIMITED", data.Code)
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"listed origin", []string{"https://app.example.com"}, "https://app.example.com", true},
		{"case insensitive", []string{"https://app.example.com"}, "https://APP.example.com", true},
		{"unlisted origin", []string{"https://app.example.com"}, "https://evil.example.com", false},
		{"missing origin", []string{"https://app.example.com"}, "", false},
		{"wildcard", []string{"*"}, "https://anything.example.com", true},
		{"wildcard without origin", []string{"*"}, "", true},
		{"nothing allowed", nil, "https://app.example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(NewHub(HubConfig{}, nil, nil, nil, nil), tt.allowed, ClientOptions{})
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := s.checkOrigin(r); got != tt.want {
				t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestWorkerRejectsUpgrade(t *testing.T) {
	hub := NewHub(HubConfig{Role: models.RoleWorker}, nil, nil, nil, nil)
	s := NewServer(hub, []string{"*"}, ClientOptions{})
	rec := httptest.NewRecorder()
	s.ServeWS(rec, httptest.NewRequest(http.MethodGet, "/ws", nil), "u1", "c1", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestEmitAfterClose(t *testing.T) {
	c := NewClient(NewHub(HubConfig{}, nil, nil, nil, nil), nil, "u1", "c1", "", ClientOptions{})
	c.Close()
	c.Close()
	if err := c.Emit("e", nil); err != ErrClientClosed {
		t.Errorf("Emit() after Close = %v, want ErrClientClosed", err)
	}
}

func TestEmitFullBuffer(t *testing.T) {
	c := NewClient(NewHub(HubConfig{}, nil, nil, nil, nil), nil, "u1", "c1", "", ClientOptions{})
	for i := 0; i < sendBufferSize; i++ {
		if err := c.Emit("e", i); err != nil {
			t.Fatalf("Emit(%d) error = %v", i, err)
		}
	}
	if err := c.Emit("e", "overflow"); err != ErrSendBufferFull {
		t.Errorf("Emit() on full buffer = %v, want ErrSendBufferFull", err)
	}
}

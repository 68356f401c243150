// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package websocket

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tenantcore/internal/models"
)

// Events sent by clients.
const (
	EventPing           = "ping"
	EventActivity       = "activity"
	EventMessage        = "message"
	EventGoogleMeetPart = "google_meet_part"
)

// Events sent to clients.
const (
	EventPong           = "pong"
	EventError          = "error"
	EventConnected      = "connected"
	EventPresenceUpdate = "presence_update"
)

// Frame is one outbound websocket message.
type Frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// inboundFrame is one client message. Data is decoded by the event handler.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ErrorData is the payload of an error frame.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConnectedData is sent once after the upgrade.
type ConnectedData struct {
	SocketID  string `json:"socketId"`
	UserID    string `json:"userId"`
	CompanyID string `json:"companyId"`
}

// PresenceUpdate announces a status change of one user to its company.
type PresenceUpdate struct {
	UserID       string          `json:"userId"`
	UserName     string          `json:"userName,omitempty"`
	Status       models.Presence `json:"status"`
	LastActivity time.Time       `json:"lastActivity"`
}

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful path (SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline means the context deadline passed.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

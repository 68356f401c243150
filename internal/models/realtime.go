// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package models

import (
	"fmt"
	"strings"
	"time"
)

// ProcessRole tells the websocket hub whether this process holds client
// sockets (API) or only produces notifications for them (Worker).
type ProcessRole string

const (
	RoleAPI    ProcessRole = "api"
	RoleWorker ProcessRole = "worker"
)

// ParseProcessRole parses a configured role name, case-insensitively.
func ParseProcessRole(s string) (ProcessRole, error) {
	switch ProcessRole(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAPI:
		return RoleAPI, nil
	case RoleWorker:
		return RoleWorker, nil
	default:
		return "", fmt.Errorf("unknown process role %q (expected api or worker)", s)
	}
}

// NotificationType addresses a NotificationMessage.
type NotificationType string

const (
	NotificationUser      NotificationType = "user"
	NotificationCompany   NotificationType = "company"
	NotificationBroadcast NotificationType = "broadcast"
)

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationUser, NotificationCompany, NotificationBroadcast:
		return true
	}
	return false
}

// NotificationMessage is the payload published on the shared notification
// channel. TargetID is the user id or company id and is empty for broadcasts.
// Origin is the instance id of the publishing process.
type NotificationMessage struct {
	Type      NotificationType `json:"type"`
	TargetID  string           `json:"targetId,omitempty"`
	Event     string           `json:"event"`
	Data      interface{}      `json:"data"`
	Timestamp time.Time        `json:"timestamp"`
	Source    ProcessRole      `json:"source"`
	Origin    string           `json:"origin,omitempty"`
}

// ClientInfo is the registry record of one socket.
type ClientInfo struct {
	SocketID    string    `json:"socketId"`
	UserID      string    `json:"userId"`
	CompanyID   string    `json:"companyId"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Presence values.
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceAway    Presence = "away"
	PresenceOffline Presence = "offline"
)

// PresenceStatus is the stored presence record of one user. Status is the
// value last persisted; readers derive the effective status from
// LastActivity and SocketIDs.
type PresenceStatus struct {
	UserID       string    `json:"userId"`
	Status       Presence  `json:"status"`
	LastActivity time.Time `json:"lastActivity"`
	SocketIDs    []string  `json:"socketIds"`
	UserName     string    `json:"userName,omitempty"`
}

// Element identifies one JSON:API resource (type, id).
type Element struct {
	Type string `json:"type" validate:"required,key_segment"`
	ID   string `json:"id" validate:"required,key_segment"`
}

// String returns "type:id".
func (e Element) String() string {
	return e.Type + ":" + e.ID
}

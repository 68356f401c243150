// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package models

import "time"

// Envelope statuses besides the readiness values.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
)

// ErrorCode is the machine-readable reason carried in APIError.Code.
type ErrorCode string

const (
	ErrValidation        ErrorCode = "VALIDATION_ERROR"
	ErrInvalidJSON       ErrorCode = "INVALID_JSON"
	ErrInvalidBody       ErrorCode = "INVALID_BODY"
	ErrBodyTooLarge      ErrorCode = "BODY_TOO_LARGE"
	ErrInvalidUserID     ErrorCode = "INVALID_USER_ID"
	ErrInvalidType       ErrorCode = "INVALID_TYPE"
	ErrUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrForbidden         ErrorCode = "FORBIDDEN"
	ErrRateLimited       ErrorCode = "RATE_LIMITED"
	ErrWebSocketDisabled ErrorCode = "WEBSOCKET_DISABLED"
	ErrStoreUnavailable  ErrorCode = "STORE_UNAVAILABLE"
	ErrInternal          ErrorCode = "INTERNAL_ERROR"
)

// APIResponse wraps every JSON body the API produces itself. Cached
// application responses are replayed verbatim and never wrapped.
//
//	{"status":"success","data":{"user_id":"u1","status":"online"},
//	 "metadata":{"timestamp":"2026-03-01T12:00:00Z","query_time_ms":1}}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata is attached to every envelope.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewSuccess wraps data and stamps the time spent since start.
func NewSuccess(data interface{}, start time.Time) *APIResponse {
	now := time.Now()
	return &APIResponse{
		Status:   StatusSuccess,
		Data:     data,
		Metadata: Metadata{Timestamp: now.UTC(), QueryTimeMS: now.Sub(start).Milliseconds()},
	}
}

// NewFailure wraps apiErr with a null data field.
func NewFailure(apiErr *APIError) *APIResponse {
	return &APIResponse{
		Status:   StatusError,
		Metadata: Metadata{Timestamp: time.Now().UTC()},
		Error:    apiErr,
	}
}

// Liveness is the data of the liveness probe.
type Liveness struct {
	Alive  bool    `json:"alive"`
	Uptime float64 `json:"uptime"`
}

// Readiness is the data of the readiness probe. The hub fields are empty
// when the process runs without a hub.
type Readiness struct {
	StoreConfigured bool        `json:"store_configured"`
	StoreConnected  bool        `json:"store_connected"`
	CacheEnabled    bool        `json:"cache_enabled"`
	ReadyToServe    bool        `json:"ready_to_serve"`
	Uptime          float64     `json:"uptime"`
	Role            ProcessRole `json:"role,omitempty"`
	InstanceID      string      `json:"instance_id,omitempty"`
	LocalClients    int         `json:"local_clients"`
}

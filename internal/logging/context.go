// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type fieldsKey struct{}

// fields are the log identifiers travelling with a context. They are kept
// in one value so Ctx does a single lookup.
type fields struct {
	requestID     string
	correlationID string
	companyID     string
	userID        string
}

func fieldsFrom(ctx context.Context) fields {
	f, _ := ctx.Value(fieldsKey{}).(fields)
	return f
}

func withFields(ctx context.Context, mutate func(*fields)) context.Context {
	f := fieldsFrom(ctx)
	mutate(&f)
	return context.WithValue(ctx, fieldsKey{}, f)
}

// GenerateCorrelationID returns a short id tying together the lines of one
// sweep pass or notification fan-out.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// GenerateRequestID returns a full UUID for HTTP requests.
func GenerateRequestID() string {
	return uuid.New().String()
}

func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return withFields(ctx, func(f *fields) { f.correlationID = id })
}

// ContextWithNewCorrelationID is ContextWithCorrelationID with a fresh id.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

func CorrelationIDFromContext(ctx context.Context) string {
	return fieldsFrom(ctx).correlationID
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withFields(ctx, func(f *fields) { f.requestID = id })
}

func RequestIDFromContext(ctx context.Context) string {
	return fieldsFrom(ctx).requestID
}

// ContextWithTenant records the authenticated company and user.
func ContextWithTenant(ctx context.Context, companyID, userID string) context.Context {
	return withFields(ctx, func(f *fields) {
		f.companyID = companyID
		f.userID = userID
	})
}

// Ctx returns the global logger carrying the non-empty ids stored in ctx.
//
//	logging.Ctx(r.Context()).Info().Msg("Notification published")
func Ctx(ctx context.Context) *zerolog.Logger {
	logger := Logger()
	f := fieldsFrom(ctx)
	if f == (fields{}) {
		return &logger
	}

	c := logger.With()
	for _, kv := range [...][2]string{
		{"correlation_id", f.correlationID},
		{"request_id", f.requestID},
		{"company_id", f.companyID},
		{"user_id", f.userID},
	} {
		if kv[1] != "" {
			c = c.Str(kv[0], kv[1])
		}
	}
	l := c.Logger()
	return &l
}

// WithComponent returns a child of the current global logger tagged with
// component.
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/tenantcore/internal/logging"
	"github.com/tomtom215/tenantcore/internal/store"
)

// Subscriber is satisfied by *notify.Bus.
type Subscriber interface {
	Serve(ctx context.Context) error
}

// NotificationSubscriberService keeps the notification channel subscription
// alive. When the subscription drops, Serve returns the error and the
// supervisor resubscribes after its backoff.
type NotificationSubscriberService struct {
	sub  Subscriber
	name string
	log  zerolog.Logger
}

// NewNotificationSubscriberService wraps sub.
func NewNotificationSubscriberService(sub Subscriber) *NotificationSubscriberService {
	return &NotificationSubscriberService{
		sub:  sub,
		name: "notification-subscriber",
		log:  logging.WithComponent("notification-subscriber"),
	}
}

// Serve runs the subscription. A bus without a subscriber connection is not
// restarted.
func (s *NotificationSubscriberService) Serve(ctx context.Context) error {
	err := s.sub.Serve(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotConfigured):
		s.log.Warn().Msg("Notification subscriber has no Redis connection, cross-process delivery disabled")
		return suture.ErrDoNotRestart
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		s.log.Warn().Err(err).Msg("Notification subscription lost, resubscribing")
		return err
	}
}

// String names the service in supervisor logs.
func (s *NotificationSubscriberService) String() string {
	return s.name
}

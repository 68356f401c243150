// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package services

import (
	"context"

	"github.com/tomtom215/tenantcore/internal/events"
)

// EventConsumer is satisfied by *events.Bus.
type EventConsumer interface {
	Consume(ctx context.Context, topic string, h events.Handler) error
}

// EventConsumerService runs one application handler for one event topic.
// Handler errors are logged by the bus and never stop the consumer.
type EventConsumerService struct {
	bus     EventConsumer
	topic   string
	handler events.Handler
}

// NewEventConsumerService creates a consumer of topic.
func NewEventConsumerService(bus EventConsumer, topic string, h events.Handler) *EventConsumerService {
	return &EventConsumerService{bus: bus, topic: topic, handler: h}
}

// Serve consumes until ctx is canceled. A closed bus returns
// events.ErrClosed and the supervisor restarts the subscription.
func (s *EventConsumerService) Serve(ctx context.Context) error {
	return s.bus.Consume(ctx, s.topic, s.handler)
}

// String names the service in supervisor logs.
func (s *EventConsumerService) String() string {
	return "event-consumer:" + s.topic
}

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

// Package events is the in-process application event bus. The websocket hub
// publishes what clients send (chat messages, meeting transcript parts) as
// events, and application services subscribe to the topics they handle.
//
// The bus is a Watermill GoChannel: delivery is in memory, non-persistent
// and fire-and-forget. Events published while a topic has no subscriber are
// dropped.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
)

// Topics published by the websocket hub.
const (
	TopicMessageReceived = "websocket.message.received"
	TopicGoogleMeetPart  = "websocket.google_meet.part"
)

// Metadata keys set on every event message.
const (
	MetadataCompanyID = "company_id"
	MetadataUserID    = "user_id"
)

// ErrClosed is returned by Consume when the bus was closed under it.
var ErrClosed = errors.New("events: bus closed")

// outputBuffer is the per-subscriber buffer of the GoChannel.
const outputBuffer = 256

// ClientEvent is something a connected user sent over its socket.
type ClientEvent struct {
	CompanyID  string          `json:"companyId"`
	UserID     string          `json:"userId"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// Handler processes one event. Returned errors are logged; events are never
// redelivered.
type Handler func(ctx context.Context, event ClientEvent) error

// Bus publishes ClientEvents to in-process subscribers.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter
	now    func() time.Time
}

// NewBus creates a Bus. A nil logger discards Watermill's own logs.
func NewBus(logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: outputBuffer,
		}, logger),
		logger: logger,
		now:    time.Now,
	}
}

// Publish sends payload on topic as an event of one user. payload is stored
// as JSON: raw JSON bytes are kept as they are, anything else is marshaled.
func (b *Bus) Publish(ctx context.Context, topic, companyID, userID string, payload interface{}) error {
	raw, err := toRaw(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}

	data, err := json.Marshal(ClientEvent{
		CompanyID:  companyID,
		UserID:     userID,
		Payload:    raw,
		ReceivedAt: b.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(MetadataCompanyID, companyID)
	msg.Metadata.Set(MetadataUserID, userID)
	msg.SetContext(ctx)

	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func toRaw(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, errors.New("invalid raw JSON")
		}
		return v, nil
	case []byte:
		if !json.Valid(v) {
			return nil, errors.New("invalid raw JSON")
		}
		return v, nil
	default:
		return json.Marshal(payload)
	}
}

// Subscribe returns the raw message stream of topic until ctx is canceled.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

// Consume runs h for every event on topic until ctx is canceled. Messages
// that fail to decode are skipped. Every message is acked, since a nacked
// GoChannel message is redelivered at once and a failing handler would spin.
func (b *Bus) Consume(ctx context.Context, topic string, h Handler) error {
	messages, err := b.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrClosed
			}
			event, err := Decode(msg)
			if err != nil {
				b.logger.Error("Dropping undecodable event", err, watermill.LogFields{"topic": topic, "uuid": msg.UUID})
				msg.Ack()
				continue
			}
			if err := h(ctx, event); err != nil {
				b.logger.Error("Event handler failed", err, watermill.LogFields{"topic": topic, "uuid": msg.UUID})
			}
			msg.Ack()
		}
	}
}

// Decode reads a ClientEvent from a bus message.
func Decode(msg *message.Message) (ClientEvent, error) {
	var event ClientEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return ClientEvent{}, fmt.Errorf("decode event %s: %w", msg.UUID, err)
	}
	return event, nil
}

// Close stops the bus and closes every subscription.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

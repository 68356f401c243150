// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

// Package notify carries NotificationMessages between the processes of a
// deployment over one Redis pub/sub channel, {prefix}:websocket_notifications.
//
// Publishing and subscribing use two separate store connections because a
// Redis connection in subscribe mode cannot run other commands. Every
// published message is stamped with the time, the publishing process role
// and the instance id of the publisher, so a process can recognize and skip
// its own messages.
//
// Serve follows the suture.Service contract: it blocks until the context is
// canceled and returns an error when the subscription is lost so the
// supervisor can resubscribe.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/tenantcore/internal/logging"
	"github.com/tomtom215/tenantcore/internal/metrics"
	"github.com/tomtom215/tenantcore/internal/models"
	"github.com/tomtom215/tenantcore/internal/store"
)

// ErrSubscriptionClosed is returned by Serve when the subscription ended
// while the context was still live.
var ErrSubscriptionClosed = errors.New("notify: subscription closed")

// Handler receives every valid message delivered on the channel.
type Handler func(ctx context.Context, msg models.NotificationMessage)

// ChannelName returns the notification channel of a deployment.
func ChannelName(prefix string) string {
	return prefix + ":websocket_notifications"
}

// Config configures a Bus.
type Config struct {
	QueuePrefix string
	Role        models.ProcessRole
	InstanceID  string
}

// Bus publishes and receives NotificationMessages.
type Bus struct {
	channel    string
	role       models.ProcessRole
	instanceID string
	now        func() time.Time
	log        zerolog.Logger

	mu      sync.RWMutex
	pub     store.Store
	sub     store.Store
	handler Handler
	active  store.Subscription
}

// New creates a Bus on a publisher and a subscriber connection. Either may
// be nil: without a publisher Publish only logs, without a subscriber Serve
// returns store.ErrNotConfigured.
func New(pub, sub store.Store, cfg Config) *Bus {
	return &Bus{
		channel:    ChannelName(cfg.QueuePrefix),
		role:       cfg.Role,
		instanceID: cfg.InstanceID,
		now:        time.Now,
		log:        logging.WithComponent("notify"),
		pub:        pub,
		sub:        sub,
	}
}

// Channel returns the channel name the bus uses.
func (b *Bus) Channel() string {
	return b.channel
}

// InstanceID returns the origin stamped on published messages.
func (b *Bus) InstanceID() string {
	return b.instanceID
}

// OnMessage registers the handler for delivered messages, replacing any
// previous one.
func (b *Bus) OnMessage(h Handler) {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()
}

// Serve subscribes to the channel and dispatches messages until ctx is
// canceled.
func (b *Bus) Serve(ctx context.Context) error {
	b.mu.RLock()
	sub := b.sub
	b.mu.RUnlock()
	if sub == nil {
		return store.ErrNotConfigured
	}

	subscription, err := sub.Subscribe(ctx, b.channel)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.mu.Lock()
	if b.sub == nil {
		// closed while subscribing
		b.mu.Unlock()
		_ = subscription.Close()
		return ErrSubscriptionClosed
	}
	b.active = subscription
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		if b.active == subscription {
			b.active = nil
		}
		b.mu.Unlock()
		_ = subscription.Close()
	}()

	b.log.Info().Str("channel", b.channel).Msg("Subscribed to notification channel")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-subscription.Messages():
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrSubscriptionClosed
			}
			b.dispatch(ctx, msg)
		}
	}
}

// dispatch decodes one delivery and hands it to the handler. Deliveries on
// other channels and malformed payloads are dropped.
func (b *Bus) dispatch(ctx context.Context, raw store.Message) {
	if raw.Channel != b.channel {
		metrics.RecordNotificationDropped("channel")
		return
	}

	var msg models.NotificationMessage
	if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
		metrics.RecordNotificationDropped("malformed")
		b.log.Warn().Err(err).Int("bytes", len(raw.Payload)).Msg("Dropping malformed notification")
		return
	}
	if !msg.Type.Valid() || msg.Event == "" {
		metrics.RecordNotificationDropped("invalid")
		b.log.Warn().Str("type", string(msg.Type)).Str("event", msg.Event).Msg("Dropping invalid notification")
		return
	}

	b.mu.RLock()
	h := b.handler
	b.mu.RUnlock()
	if h == nil {
		metrics.RecordNotificationDropped("no_handler")
		return
	}

	metrics.RecordNotificationReceived(string(msg.Type))
	h(ctx, msg)
}

// Publish stamps msg and publishes it. Without a publisher connection it
// logs a warning and returns nil.
func (b *Bus) Publish(ctx context.Context, msg models.NotificationMessage) error {
	b.mu.RLock()
	pub := b.pub
	b.mu.RUnlock()
	if pub == nil {
		b.log.Warn().Str("event", msg.Event).Str("type", string(msg.Type)).
			Msg("Notification publisher not configured, dropping message")
		metrics.RecordNotificationDropped("no_publisher")
		return nil
	}

	msg.Timestamp = b.now().UTC()
	msg.Source = b.role
	msg.Origin = b.instanceID

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification %s: %w", msg.Event, err)
	}
	if err := pub.Publish(ctx, b.channel, string(payload)); err != nil {
		return fmt.Errorf("publish notification %s: %w", msg.Event, err)
	}

	metrics.RecordNotificationPublished(string(msg.Type))
	return nil
}

// PublishUserNotification publishes event to every socket of one user.
func (b *Bus) PublishUserNotification(ctx context.Context, userID, event string, data interface{}) error {
	return b.Publish(ctx, models.NotificationMessage{
		Type:     models.NotificationUser,
		TargetID: userID,
		Event:    event,
		Data:     data,
	})
}

// PublishCompanyNotification publishes event to every connected user of one
// company.
func (b *Bus) PublishCompanyNotification(ctx context.Context, companyID, event string, data interface{}) error {
	return b.Publish(ctx, models.NotificationMessage{
		Type:     models.NotificationCompany,
		TargetID: companyID,
		Event:    event,
		Data:     data,
	})
}

// PublishBroadcastNotification publishes event to every connected socket.
func (b *Bus) PublishBroadcastNotification(ctx context.Context, event string, data interface{}) error {
	return b.Publish(ctx, models.NotificationMessage{
		Type:  models.NotificationBroadcast,
		Event: event,
		Data:  data,
	})
}

// Close ends the subscription and closes both connections. Close errors are
// logged and returned; the connections are dropped either way, so a second
// Close is a no-op.
func (b *Bus) Close() error {
	b.mu.Lock()
	active, pub, sub := b.active, b.pub, b.sub
	b.active, b.pub, b.sub = nil, nil, nil
	b.mu.Unlock()

	var errs []error
	if active != nil {
		if err := active.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscription: %w", err))
		}
	}
	if pub != nil {
		if err := pub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if sub != nil && sub != pub {
		if err := sub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		b.log.Warn().Err(err).Msg("Notification bus closed with errors")
	}
	return err
}

// String names the bus for the supervisor.
func (b *Bus) String() string {
	return "notification-bus"
}

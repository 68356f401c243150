// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/tenantcore/internal/logging"
	"github.com/tomtom215/tenantcore/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
	sendBufferSize = 256
)

// Default inbound limits per client.
const (
	DefaultMessageRate  = 20.0
	DefaultMessageBurst = 40
)

// Emit errors.
var (
	ErrSendBufferFull = errors.New("websocket: send buffer full")
	ErrClientClosed   = errors.New("websocket: client closed")
)

// Client is one gorilla websocket connection and implements Handle.
type Client struct {
	id        string
	userID    string
	userName  string
	companyID string

	hub     *Hub
	conn    *websocket.Conn
	send    chan Frame
	limiter *rate.Limiter
	log     zerolog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// ClientOptions configure the inbound rate limit of a client.
type ClientOptions struct {
	MessageRate  float64
	MessageBurst int
}

// NewClient wraps conn for the given user with a fresh socket id.
func NewClient(hub *Hub, conn *websocket.Conn, userID, companyID, userName string, opts ClientOptions) *Client {
	if opts.MessageRate <= 0 {
		opts.MessageRate = DefaultMessageRate
	}
	if opts.MessageBurst <= 0 {
		opts.MessageBurst = DefaultMessageBurst
	}
	id := uuid.NewString()
	return &Client{
		id:        id,
		userID:    userID,
		userName:  userName,
		companyID: companyID,
		hub:       hub,
		conn:      conn,
		send:      make(chan Frame, sendBufferSize),
		limiter:   rate.NewLimiter(rate.Limit(opts.MessageRate), opts.MessageBurst),
		log: logging.WithComponent("websocket-client").With().
			Str("socket_id", id).
			Str("user_id", userID).
			Logger(),
		done: make(chan struct{}),
	}
}

// SocketID returns the id of the socket.
func (c *Client) SocketID() string { return c.id }

// CompanyID returns the company of the socket's user.
func (c *Client) CompanyID() string { return c.companyID }

// UserID returns the socket's user.
func (c *Client) UserID() string { return c.userID }

// Emit queues a frame without blocking.
func (c *Client) Emit(event string, data interface{}) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- Frame{Event: event, Data: data}:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close stops both pumps. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Start connects the client to the hub and runs its pumps. The client
// disconnects itself when the read pump ends.
func (c *Client) Start(ctx context.Context) {
	c.hub.Connect(ctx, c.userID, c.userName, c)
	_ = c.Emit(EventConnected, ConnectedData{SocketID: c.id, UserID: c.userID, CompanyID: c.companyID})
	go c.writePump()
	go c.readPump()
}

// readPump reads client frames until the connection fails or the client
// is closed.
func (c *Client) readPump() {
	defer func() {
		c.Close()
		_ = c.conn.Close()
		c.hub.Disconnect(context.Background(), c.userID, c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("unexpected websocket close error")
				metrics.WSErrors.WithLabelValues("read").Inc()
			}
			return
		}
		c.handleFrame(data)
	}
}

// handleFrame dispatches one inbound frame.
func (c *Client) handleFrame(data []byte) {
	if !c.limiter.Allow() {
		metrics.WSErrors.WithLabelValues("rate_limited").Inc()
		_ = c.Emit(EventError, ErrorData{Code: "RATE_LIMITED", Message: "too many messages"})
		return
	}

	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
		metrics.WSErrors.WithLabelValues("malformed").Inc()
		_ = c.Emit(EventError, ErrorData{Code: "INVALID_FRAME", Message: "expected {\"event\": ..., \"data\": ...}"})
		return
	}
	metrics.WSMessagesReceived.WithLabelValues(frame.Event).Inc()

	ctx := context.Background()
	switch frame.Event {
	case EventPing:
		c.hub.TouchActivity(ctx, c.userID)
		_ = c.Emit(EventPong, nil)
	case EventActivity:
		c.hub.TouchActivity(ctx, c.userID)
	case EventMessage:
		c.hub.HandleIncomingMessage(ctx, c.companyID, c.userID, frame.Data)
	case EventGoogleMeetPart:
		c.hub.HandleIncomingGoogleMeetPart(ctx, c.companyID, c.userID, frame.Data)
	default:
		_ = c.Emit(EventError, ErrorData{Code: "UNKNOWN_EVENT", Message: "unknown event " + frame.Event})
	}
}

// writePump writes queued frames and keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case frame := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				metrics.WSErrors.WithLabelValues("write").Inc()
				c.log.Debug().Err(err).Msg("failed to write frame")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

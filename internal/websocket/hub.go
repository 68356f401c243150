// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package websocket

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tenantcore/internal/events"
	"github.com/tomtom215/tenantcore/internal/logging"
	"github.com/tomtom215/tenantcore/internal/metrics"
	"github.com/tomtom215/tenantcore/internal/models"
	"github.com/tomtom215/tenantcore/internal/registry"
)

// DefaultCleanupInterval is how often RunWithContext sweeps the registry.
const DefaultCleanupInterval = 5 * time.Minute

// mirrorTimeout bounds one background registry write.
const mirrorTimeout = 5 * time.Second

// Handle is one live connection held by this process.
type Handle interface {
	SocketID() string
	CompanyID() string
	Emit(event string, data interface{}) error
}

// ClientRegistry is the shared connection registry the hub mirrors into.
type ClientRegistry interface {
	AddClient(ctx context.Context, userID, companyID, socketID string) error
	RemoveClient(ctx context.Context, socketID string) error
	GetCompanyUsers(ctx context.Context, companyID string) []string
	CleanupExpiredClients(ctx context.Context) registry.CleanupReport
}

// Publisher sends notifications to the other processes.
type Publisher interface {
	Publish(ctx context.Context, msg models.NotificationMessage) error
}

// PresenceTracker records user presence.
type PresenceTracker interface {
	SetUserOnline(ctx context.Context, userID, userName, socketID string) *models.PresenceStatus
	SetUserOffline(ctx context.Context, userID, socketID string) *models.PresenceStatus
	UpdateActivity(ctx context.Context, userID string)
}

// EventPublisher hands inbound client events to application services.
type EventPublisher interface {
	Publish(ctx context.Context, topic, companyID, userID string, payload interface{}) error
}

// HubConfig configures a Hub.
type HubConfig struct {
	Role            models.ProcessRole
	LocalOnly       bool
	InstanceID      string
	CleanupInterval time.Duration
}

type mirrorOp struct {
	name     string
	socketID string
	userID   string
	run      func(ctx context.Context) error
}

// Hub tracks the sockets of this process and routes outbound events.
type Hub struct {
	cfg      HubConfig
	registry ClientRegistry
	bus      Publisher
	presence PresenceTracker
	events   EventPublisher
	log      zerolog.Logger

	mu      sync.RWMutex
	clients map[string]map[string]Handle // userID -> socketID -> handle

	mirrorMu sync.Mutex
	queue    []mirrorOp
	draining bool
	pending  sync.WaitGroup
}

// NewHub creates a hub. Any collaborator may be nil: without a registry the
// hub neither mirrors nor sweeps, without a bus nothing crosses processes,
// without presence no presence updates are sent and without events inbound
// client messages are dropped.
func NewHub(cfg HubConfig, reg ClientRegistry, bus Publisher, presence PresenceTracker, appEvents EventPublisher) *Hub {
	if cfg.Role == "" {
		cfg.Role = models.RoleAPI
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	h := &Hub{
		cfg:      cfg,
		registry: reg,
		bus:      bus,
		presence: presence,
		events:   appEvents,
		log:      logging.WithComponent("websocket-hub"),
		clients:  make(map[string]map[string]Handle),
	}
	if cfg.Role == models.RoleWorker && cfg.LocalOnly {
		h.log.Warn().Msg("local_only has no effect in worker role, every send is published")
	}
	return h
}

// Role returns the process role of the hub.
func (h *Hub) Role() models.ProcessRole {
	return h.cfg.Role
}

// InstanceID returns the id this process stamps on published messages.
func (h *Hub) InstanceID() string {
	return h.cfg.InstanceID
}

// AddClient registers handle for userID and mirrors it into the registry.
func (h *Hub) AddClient(userID string, handle Handle) {
	socketID, companyID := handle.SocketID(), handle.CompanyID()

	h.mu.Lock()
	sockets, ok := h.clients[userID]
	if !ok {
		sockets = make(map[string]Handle)
		h.clients[userID] = sockets
	}
	_, existed := sockets[socketID]
	sockets[socketID] = handle
	total := h.countLocked()
	h.mu.Unlock()

	if !existed {
		metrics.WSConnections.Inc()
	}
	h.log.Debug().Str("user_id", userID).Str("socket_id", socketID).Int("total_clients", total).Msg("websocket client connected")

	if h.registry != nil {
		h.mirror(mirrorOp{name: "add", socketID: socketID, userID: userID, run: func(ctx context.Context) error {
			return h.registry.AddClient(ctx, userID, companyID, socketID)
		}})
	}
}

// RemoveClient drops handle from the local map and mirrors the removal. It
// reports whether the handle was registered.
func (h *Hub) RemoveClient(userID string, handle Handle) bool {
	socketID := handle.SocketID()

	h.mu.Lock()
	removed := false
	if sockets, ok := h.clients[userID]; ok {
		if current, ok := sockets[socketID]; ok && current == handle {
			delete(sockets, socketID)
			removed = true
		}
		if len(sockets) == 0 {
			delete(h.clients, userID)
		}
	}
	total := h.countLocked()
	h.mu.Unlock()

	if removed {
		metrics.WSConnections.Dec()
		h.log.Debug().Str("user_id", userID).Str("socket_id", socketID).Int("total_clients", total).Msg("websocket client disconnected")
	}

	// The registry removal is idempotent, so it is mirrored even when the
	// socket was not held locally.
	if h.registry != nil {
		h.mirror(mirrorOp{name: "remove", socketID: socketID, userID: userID, run: func(ctx context.Context) error {
			return h.registry.RemoveClient(ctx, socketID)
		}})
	}
	return removed
}

// mirror queues op behind earlier mirror writes and starts the drain
// goroutine when none is running.
func (h *Hub) mirror(op mirrorOp) {
	h.mirrorMu.Lock()
	h.pending.Add(1)
	h.queue = append(h.queue, op)
	start := !h.draining
	h.draining = true
	h.mirrorMu.Unlock()

	if start {
		go h.drain()
	}
}

func (h *Hub) drain() {
	for {
		h.mirrorMu.Lock()
		if len(h.queue) == 0 {
			h.draining = false
			h.mirrorMu.Unlock()
			return
		}
		op := h.queue[0]
		h.queue = h.queue[1:]
		h.mirrorMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		if err := op.run(ctx); err != nil {
			metrics.WSErrors.WithLabelValues("registry_" + op.name).Inc()
			h.log.Warn().Err(err).
				Str("op", op.name).
				Str("user_id", op.userID).
				Str("socket_id", op.socketID).
				Msg("Registry mirror failed, local connection state kept")
		}
		cancel()
		h.pending.Done()
	}
}

// WaitPending blocks until every queued registry mirror write has run.
func (h *Hub) WaitPending() {
	h.pending.Wait()
}

// Connect registers a new socket, marks its user online and announces the
// change to the user's company.
func (h *Hub) Connect(ctx context.Context, userID, userName string, handle Handle) {
	h.AddClient(userID, handle)
	if h.presence == nil {
		return
	}
	if rec := h.presence.SetUserOnline(ctx, userID, userName, handle.SocketID()); rec != nil {
		h.announcePresence(ctx, handle.CompanyID(), rec)
	}
}

// Disconnect removes a socket and updates presence. The company hears about
// it only when the user's last socket is gone.
func (h *Hub) Disconnect(ctx context.Context, userID string, handle Handle) {
	h.RemoveClient(userID, handle)
	if h.presence == nil {
		return
	}
	rec := h.presence.SetUserOffline(ctx, userID, handle.SocketID())
	if rec != nil && rec.Status == models.PresenceOffline {
		h.announcePresence(ctx, handle.CompanyID(), rec)
	}
}

func (h *Hub) announcePresence(ctx context.Context, companyID string, rec *models.PresenceStatus) {
	if companyID == "" {
		return
	}
	h.SendMessageToCompany(ctx, companyID, EventPresenceUpdate, PresenceUpdate{
		UserID:       rec.UserID,
		UserName:     rec.UserName,
		Status:       rec.Status,
		LastActivity: rec.LastActivity,
	})
}

// AnnouncePresence sends a presence_update for rec to companyID. The
// presence sweep uses it for users it demoted.
func (h *Hub) AnnouncePresence(ctx context.Context, companyID string, rec models.PresenceStatus) {
	h.announcePresence(ctx, companyID, &rec)
}

// Broadcast sends event to every connected socket of the deployment and
// returns how many local sockets received it.
func (h *Hub) Broadcast(ctx context.Context, event string, data interface{}) int {
	delivered := 0
	if h.cfg.Role == models.RoleAPI {
		delivered = h.emitAll(event, data)
	}
	h.publish(ctx, models.NotificationMessage{Type: models.NotificationBroadcast, Event: event, Data: data})
	return delivered
}

// SendMessageToUser sends event to every socket of userID and returns how
// many local sockets received it.
func (h *Hub) SendMessageToUser(ctx context.Context, userID, event string, data interface{}) int {
	delivered := 0
	if h.cfg.Role == models.RoleAPI {
		delivered = h.emitToUser(userID, event, data)
	}
	h.publish(ctx, models.NotificationMessage{Type: models.NotificationUser, TargetID: userID, Event: event, Data: data})
	return delivered
}

// SendMessageToCompany sends event to every connected user of companyID and
// returns how many local sockets received it. Other processes get one
// company-scoped notification and resolve the users themselves.
func (h *Hub) SendMessageToCompany(ctx context.Context, companyID, event string, data interface{}) int {
	delivered := 0
	if h.cfg.Role == models.RoleAPI {
		delivered = h.emitToCompany(ctx, companyID, event, data)
	}
	h.publish(ctx, models.NotificationMessage{Type: models.NotificationCompany, TargetID: companyID, Event: event, Data: data})
	return delivered
}

// publish hands msg to the bus unless this API process is local-only.
// Failures are logged; local delivery has already happened.
func (h *Hub) publish(ctx context.Context, msg models.NotificationMessage) {
	if h.cfg.Role == models.RoleAPI && h.cfg.LocalOnly {
		return
	}
	if h.bus == nil {
		metrics.RecordNotificationDropped("no_publisher")
		return
	}
	if err := h.bus.Publish(ctx, msg); err != nil {
		metrics.RecordNotificationDropped("publish_failed")
		logging.Ctx(ctx).Warn().Err(err).
			Str("component", "websocket-hub").
			Str("type", string(msg.Type)).
			Str("target_id", msg.TargetID).
			Str("event", msg.Event).
			Msg("Failed to publish notification")
	}
}

// HandleRedisNotification delivers a message received from the bus to the
// local sockets it addresses. It never publishes.
func (h *Hub) HandleRedisNotification(ctx context.Context, msg models.NotificationMessage) {
	if msg.Origin != "" && msg.Origin == h.cfg.InstanceID {
		metrics.RecordNotificationDropped("own_origin")
		return
	}
	if h.cfg.Role != models.RoleAPI {
		return
	}

	switch msg.Type {
	case models.NotificationUser:
		h.emitToUser(msg.TargetID, msg.Event, msg.Data)
	case models.NotificationCompany:
		h.emitToCompany(ctx, msg.TargetID, msg.Event, msg.Data)
	case models.NotificationBroadcast:
		h.emitAll(msg.Event, msg.Data)
	default:
		metrics.RecordNotificationDropped("invalid")
		h.log.Warn().Str("type", string(msg.Type)).Str("event", msg.Event).Msg("Ignoring notification of unknown type")
	}
}

// emitToUser emits to the local sockets of userID.
func (h *Hub) emitToUser(userID, event string, data interface{}) int {
	h.mu.RLock()
	handles := sortedHandles(h.clients[userID])
	h.mu.RUnlock()
	return h.emit(handles, event, data)
}

// emitToCompany emits to the local sockets of the company's users. Users
// come from the registry; local sockets of the company that the registry
// does not list yet are included, since mirror writes lag behind.
func (h *Hub) emitToCompany(ctx context.Context, companyID, event string, data interface{}) int {
	var users []string
	if h.registry != nil {
		users = h.registry.GetCompanyUsers(ctx, companyID)
	}

	seen := make(map[string]bool)
	var handles []Handle

	h.mu.RLock()
	for _, userID := range users {
		for _, handle := range sortedHandles(h.clients[userID]) {
			seen[handle.SocketID()] = true
			handles = append(handles, handle)
		}
	}
	for _, userID := range h.sortedUsersLocked() {
		for _, handle := range sortedHandles(h.clients[userID]) {
			if handle.CompanyID() == companyID && !seen[handle.SocketID()] {
				seen[handle.SocketID()] = true
				handles = append(handles, handle)
			}
		}
	}
	h.mu.RUnlock()

	return h.emit(handles, event, data)
}

// emitAll emits to every local socket.
func (h *Hub) emitAll(event string, data interface{}) int {
	h.mu.RLock()
	var handles []Handle
	for _, userID := range h.sortedUsersLocked() {
		handles = append(handles, sortedHandles(h.clients[userID])...)
	}
	h.mu.RUnlock()
	return h.emit(handles, event, data)
}

// emit sends to each handle outside the hub lock. A failing socket is
// logged and skipped.
func (h *Hub) emit(handles []Handle, event string, data interface{}) int {
	delivered := 0
	for _, handle := range handles {
		if err := handle.Emit(event, data); err != nil {
			reason := "emit"
			if errors.Is(err, ErrSendBufferFull) {
				reason = "send_buffer_full"
			}
			metrics.WSErrors.WithLabelValues(reason).Inc()
			h.log.Warn().Err(err).Str("socket_id", handle.SocketID()).Str("event", event).Msg("Dropping frame for socket")
			continue
		}
		delivered++
	}
	if delivered > 0 {
		metrics.WSMessagesSent.Add(float64(delivered))
	}
	return delivered
}

// HandleIncomingMessage publishes a chat message sent by a client as an
// application event. Nothing is sent back.
func (h *Hub) HandleIncomingMessage(ctx context.Context, companyID, userID string, message interface{}) {
	h.publishEvent(ctx, events.TopicMessageReceived, companyID, userID, message)
}

// HandleIncomingGoogleMeetPart publishes a meeting transcript part sent by
// a client as an application event.
func (h *Hub) HandleIncomingGoogleMeetPart(ctx context.Context, companyID, userID string, part interface{}) {
	h.publishEvent(ctx, events.TopicGoogleMeetPart, companyID, userID, part)
}

func (h *Hub) publishEvent(ctx context.Context, topic, companyID, userID string, payload interface{}) {
	if h.presence != nil {
		h.presence.UpdateActivity(ctx, userID)
	}
	if h.events == nil {
		return
	}
	if err := h.events.Publish(ctx, topic, companyID, userID, payload); err != nil {
		metrics.WSErrors.WithLabelValues("event_publish").Inc()
		h.log.Warn().Err(err).Str("topic", topic).Str("user_id", userID).Msg("Failed to publish client event")
	}
}

// TouchActivity records activity for userID.
func (h *Hub) TouchActivity(ctx context.Context, userID string) {
	if h.presence != nil {
		h.presence.UpdateActivity(ctx, userID)
	}
}

// GetClientCount returns the number of local sockets.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

// GetUserSocketIDs returns the local socket ids of userID, sorted.
func (h *Hub) GetUserSocketIDs(userID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients[userID]))
	for id := range h.clients[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LocalUserCompany returns the company of a locally connected user, or ""
// when the user has no socket on this process.
func (h *Hub) LocalUserCompany(userID string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, handle := range h.clients[userID] {
		return handle.CompanyID()
	}
	return ""
}

// GetLocalUsers returns the users with at least one local socket, sorted.
func (h *Hub) GetLocalUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sortedUsersLocked()
}

func (h *Hub) countLocked() int {
	n := 0
	for _, sockets := range h.clients {
		n += len(sockets)
	}
	return n
}

func (h *Hub) sortedUsersLocked() []string {
	users := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

// sortedHandles returns the handles of one user ordered by socket id so
// delivery order is deterministic.
func sortedHandles(sockets map[string]Handle) []Handle {
	handles := make([]Handle, 0, len(sockets))
	for _, handle := range sockets {
		handles = append(handles, handle)
	}
	sort.Slice(handles, func(i, j int) bool {
		return handles[i].SocketID() < handles[j].SocketID()
	})
	return handles
}

// RunWithContext sweeps the registry every CleanupInterval until ctx is
// canceled, then closes every local socket and returns ctx.Err().
func (h *Hub) RunWithContext(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.CleanupInterval)
	defer ticker.Stop()

	h.log.Info().
		Str("role", string(h.cfg.Role)).
		Bool("local_only", h.cfg.LocalOnly).
		Str("instance_id", h.cfg.InstanceID).
		Dur("cleanup_interval", h.cfg.CleanupInterval).
		Msg("websocket hub started")

	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case <-ticker.C:
			h.cleanup(ctx)
		}
	}
}

// cleanup runs one registry sweep. Failures are logged and the next tick
// runs as usual.
func (h *Hub) cleanup(ctx context.Context) {
	if h.registry == nil {
		return
	}
	report := h.registry.CleanupExpiredClients(ctx)
	if err := report.Err(); err != nil {
		h.log.Warn().Err(err).Int("users_scanned", report.UsersScanned).Msg("Registry cleanup finished with errors")
		return
	}
	if report.OrphansRemoved > 0 {
		h.log.Info().
			Int("users_scanned", report.UsersScanned).
			Int("orphans_removed", report.OrphansRemoved).
			Int("users_removed", len(report.UsersRemoved)).
			Msg("Registry cleanup removed orphaned sockets")
	}
}

// logGracefulShutdown closes the local sockets and logs why the hub
// stopped. ctx.Err() is not logged as an error since cancellation is the
// normal way to stop.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	closed := h.closeAllClients()
	h.log.Info().
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", closed).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// closeAllClients closes every local socket that can be closed. The sockets
// deregister themselves as their pumps exit.
func (h *Hub) closeAllClients() int {
	h.mu.RLock()
	var handles []Handle
	for _, userID := range h.sortedUsersLocked() {
		handles = append(handles, sortedHandles(h.clients[userID])...)
	}
	h.mu.RUnlock()

	closed := 0
	for _, handle := range handles {
		if c, ok := handle.(interface{ Close() }); ok {
			c.Close()
			closed++
		}
	}
	return closed
}

// String names the hub for the supervisor.
func (h *Hub) String() string {
	return "websocket-hub"
}

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

// Package presence tracks whether users are online, away or offline.
//
// Each user has one JSON record at presence:{userId} holding the socket ids
// that keep the user connected and the time of the last activity. The status
// returned to callers is derived when the record is read:
//
//	no sockets                      offline
//	idle <= online window (2m)      online
//	idle <= away window (30m)       away
//	otherwise                       offline
//
// Records expire after 35 minutes without a write, which is longer than the
// away window so a record never vanishes while it is still away.
package presence

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/tenantcore/internal/config"
	"github.com/tomtom215/tenantcore/internal/logging"
	"github.com/tomtom215/tenantcore/internal/models"
	"github.com/tomtom215/tenantcore/internal/store"
)

// Default thresholds.
const (
	DefaultOnlineWindow = 2 * time.Minute
	DefaultAwayWindow   = 30 * time.Minute
	DefaultRecordTTL    = 35 * time.Minute
)

const keyPrefix = "presence:"

// Thresholds are the idle windows of the presence state machine.
type Thresholds struct {
	Online time.Duration
	Away   time.Duration
}

// DefaultThresholds returns the 2 minute online and 30 minute away windows.
func DefaultThresholds() Thresholds {
	return Thresholds{Online: DefaultOnlineWindow, Away: DefaultAwayWindow}
}

// EffectiveStatus derives the status of a record at now. The stored Status
// field is ignored.
func EffectiveStatus(rec models.PresenceStatus, now time.Time, th Thresholds) models.Presence {
	if len(rec.SocketIDs) == 0 {
		return models.PresenceOffline
	}
	idle := now.Sub(rec.LastActivity)
	switch {
	case idle <= th.Online:
		return models.PresenceOnline
	case idle <= th.Away:
		return models.PresenceAway
	default:
		return models.PresenceOffline
	}
}

// Tracker reads and writes presence records. Every operation is a no-op
// when no store is configured, and store errors are logged, never returned.
// Writes to one user's record are serialized within the process.
type Tracker struct {
	kv         store.Store
	thresholds Thresholds
	recordTTL  time.Duration
	now        func() time.Time
	log        zerolog.Logger
	locks      userLocks
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a Tracker. Zero durations in cfg fall back to the defaults.
func New(kv store.Store, cfg config.PresenceConfig, opts ...Option) *Tracker {
	t := &Tracker{
		kv:         kv,
		thresholds: DefaultThresholds(),
		recordTTL:  DefaultRecordTTL,
		now:        time.Now,
		log:        logging.WithComponent("presence"),
	}
	if cfg.OnlineWindow > 0 {
		t.thresholds.Online = cfg.OnlineWindow
	}
	if cfg.AwayWindow > 0 {
		t.thresholds.Away = cfg.AwayWindow
	}
	if cfg.RecordTTL > 0 {
		t.recordTTL = cfg.RecordTTL
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Thresholds returns the configured idle windows.
func (t *Tracker) Thresholds() Thresholds {
	return t.thresholds
}

func key(userID string) string {
	return keyPrefix + userID
}

func (t *Tracker) configured() bool {
	return t != nil && t.kv != nil
}

// load returns the stored record of a user, or nil when there is none.
func (t *Tracker) load(ctx context.Context, userID string) (*models.PresenceStatus, error) {
	val, ok, err := t.kv.Get(ctx, key(userID))
	if err != nil || !ok {
		return nil, err
	}
	var rec models.PresenceStatus
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, err
	}
	if rec.UserID == "" {
		rec.UserID = userID
	}
	return &rec, nil
}

func (t *Tracker) save(ctx context.Context, rec *models.PresenceStatus) error {
	if rec.SocketIDs == nil {
		rec.SocketIDs = []string{}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return t.kv.SetWithTTL(ctx, key(rec.UserID), string(data), t.recordTTL)
}

// SetUserOnline adds socketID to the user's sockets and marks the user
// online now. It returns the saved record, or nil when nothing was saved.
func (t *Tracker) SetUserOnline(ctx context.Context, userID, userName, socketID string) *models.PresenceStatus {
	if !t.configured() {
		return nil
	}
	defer t.locks.lock(userID)()

	rec, err := t.load(ctx, userID)
	if err != nil {
		t.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to load presence, starting a new record")
	}
	if rec == nil {
		rec = &models.PresenceStatus{UserID: userID, SocketIDs: []string{}}
	}

	if socketID != "" && !contains(rec.SocketIDs, socketID) {
		rec.SocketIDs = append(rec.SocketIDs, socketID)
	}
	if userName != "" {
		rec.UserName = userName
	}
	rec.Status = models.PresenceOnline
	rec.LastActivity = t.now().UTC()

	if err := t.save(ctx, rec); err != nil {
		t.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to save presence")
		return nil
	}
	return rec
}

// SetUserOffline removes socketID from the user's sockets. The user becomes
// offline once no socket is left. It returns the saved record, or nil when
// the user had no record.
func (t *Tracker) SetUserOffline(ctx context.Context, userID, socketID string) *models.PresenceStatus {
	if !t.configured() {
		return nil
	}
	defer t.locks.lock(userID)()

	rec, err := t.load(ctx, userID)
	if err != nil {
		t.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to load presence")
		return nil
	}
	if rec == nil {
		return nil
	}

	rec.SocketIDs = without(rec.SocketIDs, socketID)
	if len(rec.SocketIDs) == 0 {
		rec.Status = models.PresenceOffline
	}

	if err := t.save(ctx, rec); err != nil {
		t.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to save presence")
		return nil
	}
	return rec
}

// UpdateActivity marks an existing user online now without touching its
// sockets. Users without a record are ignored.
func (t *Tracker) UpdateActivity(ctx context.Context, userID string) {
	if !t.configured() {
		return
	}
	defer t.locks.lock(userID)()

	rec, err := t.load(ctx, userID)
	if err != nil {
		t.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to load presence")
		return
	}
	if rec == nil {
		return
	}

	rec.Status = models.PresenceOnline
	rec.LastActivity = t.now().UTC()
	if err := t.save(ctx, rec); err != nil {
		t.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to save presence")
	}
}

// GetUserStatus returns the user's record with its effective status. Unknown
// users and store failures yield an offline record without sockets.
func (t *Tracker) GetUserStatus(ctx context.Context, userID string) models.PresenceStatus {
	offline := models.PresenceStatus{UserID: userID, Status: models.PresenceOffline, SocketIDs: []string{}}
	if !t.configured() {
		return offline
	}

	rec, err := t.load(ctx, userID)
	if err != nil {
		t.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to load presence")
		return offline
	}
	if rec == nil {
		return offline
	}
	if rec.SocketIDs == nil {
		rec.SocketIDs = []string{}
	}
	rec.Status = EffectiveStatus(*rec, t.now(), t.thresholds)
	return *rec
}

// GetUsersStatuses returns GetUserStatus for each user id.
func (t *Tracker) GetUsersStatuses(ctx context.Context, userIDs []string) map[string]models.PresenceStatus {
	out := make(map[string]models.PresenceStatus, len(userIDs))
	for _, id := range userIDs {
		if _, done := out[id]; done {
			continue
		}
		out[id] = t.GetUserStatus(ctx, id)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func without(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package presence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/tenantcore/internal/metrics"
	"github.com/tomtom215/tenantcore/internal/models"
)

// SweepReport lists what one MarkIdleUsersAsAway pass changed.
type SweepReport struct {
	Scanned int
	Away    []string
	Offline []string
	Errors  []error
}

// Changed returns every user whose status was demoted, away first.
func (r SweepReport) Changed() []string {
	out := make([]string, 0, len(r.Away)+len(r.Offline))
	out = append(out, r.Away...)
	return append(out, r.Offline...)
}

// Err joins the per-key errors of the pass.
func (r SweepReport) Err() error {
	return errors.Join(r.Errors...)
}

// rank orders statuses so the sweep can refuse promotions.
func rank(p models.Presence) int {
	switch p {
	case models.PresenceOnline:
		return 2
	case models.PresenceAway:
		return 1
	default:
		return 0
	}
}

// MarkIdleUsersAsAway demotes idle users. Records past the away window turn
// away; records past the offline window turn offline and lose their socket
// ids, since sockets that idle that long are treated as dead. A record is
// only written when its status goes down, so repeated sweeps never promote
// anyone. Errors on one key are recorded and the sweep continues.
func (t *Tracker) MarkIdleUsersAsAway(ctx context.Context) SweepReport {
	var report SweepReport
	if !t.configured() {
		return report
	}
	start := time.Now()
	defer func() { metrics.RecordSweep("presence", time.Since(start)) }()

	keys, err := t.kv.Keys(ctx, keyPrefix+"*")
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("list presence keys: %w", err))
		t.log.Warn().Err(err).Msg("Presence sweep could not list records")
		return report
	}

	now := t.now()
	for _, k := range keys {
		if ctx.Err() != nil {
			report.Errors = append(report.Errors, ctx.Err())
			break
		}
		report.Scanned++
		userID := strings.TrimPrefix(k, keyPrefix)

		changed, err := t.demote(ctx, userID, now)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("user %s: %w", userID, err))
			t.log.Warn().Err(err).Str("user_id", userID).Msg("Presence sweep failed for user")
			continue
		}
		switch changed {
		case models.PresenceAway:
			report.Away = append(report.Away, userID)
			metrics.PresenceSweepChanges.WithLabelValues(string(changed)).Inc()
		case models.PresenceOffline:
			report.Offline = append(report.Offline, userID)
			metrics.PresenceSweepChanges.WithLabelValues(string(changed)).Inc()
		}
	}

	if len(report.Away)+len(report.Offline) > 0 {
		t.log.Debug().
			Int("scanned", report.Scanned).
			Int("away", len(report.Away)).
			Int("offline", len(report.Offline)).
			Msg("Presence sweep demoted idle users")
	}
	return report
}

// demote applies the thresholds to one record and returns the new status
// when it was lowered, or "" when the record was left untouched.
func (t *Tracker) demote(ctx context.Context, userID string, now time.Time) (models.Presence, error) {
	defer t.locks.lock(userID)()
	rec, err := t.load(ctx, userID)
	if err != nil {
		return "", err
	}
	if rec == nil {
		// expired between SCAN and GET
		return "", nil
	}

	stored := rec.Status
	if stored == "" {
		stored = models.PresenceOnline
	}
	next := EffectiveStatus(*rec, now, t.thresholds)
	if rank(next) >= rank(stored) {
		return "", nil
	}

	rec.Status = next
	if next == models.PresenceOffline {
		rec.SocketIDs = []string{}
	}
	if err := t.save(ctx, rec); err != nil {
		return "", err
	}
	return next, nil
}

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tenantcore/internal/logging"
	"github.com/tomtom215/tenantcore/internal/models"
	"github.com/tomtom215/tenantcore/internal/presence"
)

// DefaultSweepInterval is used when no interval is configured.
const DefaultSweepInterval = time.Minute

// PresenceSweeper is satisfied by *presence.Tracker.
type PresenceSweeper interface {
	MarkIdleUsersAsAway(ctx context.Context) presence.SweepReport
	GetUserStatus(ctx context.Context, userID string) models.PresenceStatus
}

// CompanyLookup is satisfied by *registry.Registry.
type CompanyLookup interface {
	GetUserCompany(ctx context.Context, userID string) string
}

// PresenceAnnouncer is satisfied by *websocket.Hub.
type PresenceAnnouncer interface {
	AnnouncePresence(ctx context.Context, companyID string, rec models.PresenceStatus)
}

// PresenceSweepService demotes idle users on a fixed ticker and announces
// each change to the user's company. A failing pass is logged and the next
// tick runs as usual.
type PresenceSweepService struct {
	sweeper   PresenceSweeper
	companies CompanyLookup
	announcer PresenceAnnouncer
	interval  time.Duration
	name      string
	log       zerolog.Logger
}

// NewPresenceSweepService creates the sweep service. companies and
// announcer may be nil, in which case changes are not announced.
func NewPresenceSweepService(sweeper PresenceSweeper, companies CompanyLookup, announcer PresenceAnnouncer, interval time.Duration) *PresenceSweepService {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &PresenceSweepService{
		sweeper:   sweeper,
		companies: companies,
		announcer: announcer,
		interval:  interval,
		name:      "presence-sweep",
		log:       logging.WithComponent("presence-sweep"),
	}
}

// Serve sweeps every interval until ctx is canceled.
func (s *PresenceSweepService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs one pass and returns the number of announced changes.
func (s *PresenceSweepService) sweep(ctx context.Context) int {
	report := s.sweeper.MarkIdleUsersAsAway(ctx)
	if err := report.Err(); err != nil {
		s.log.Warn().Err(err).Int("scanned", report.Scanned).Msg("Presence sweep finished with errors")
	}
	if s.companies == nil || s.announcer == nil {
		return 0
	}

	announced := 0
	for _, userID := range report.Changed() {
		companyID := s.companies.GetUserCompany(ctx, userID)
		if companyID == "" {
			// no live socket record, nobody to tell
			continue
		}
		s.announcer.AnnouncePresence(ctx, companyID, s.sweeper.GetUserStatus(ctx, userID))
		announced++
	}
	return announced
}

// String names the service in supervisor logs.
func (s *PresenceSweepService) String() string {
	return s.name
}

// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/tenantcore/internal/metrics"
)

// CleanupReport summarizes one CleanupExpiredClients pass.
type CleanupReport struct {
	UsersScanned   int
	OrphansRemoved int
	UsersRemoved   []string
	Errors         []error
}

// Err joins the errors collected during the pass.
func (r CleanupReport) Err() error {
	return errors.Join(r.Errors...)
}

// CleanupExpiredClients drops socket ids whose client hash has expired from
// every user set. Users left without sockets are removed from every company
// set. Each user is reconciled with its own pipeline; a failure on one user
// is recorded and the pass moves on to the next.
func (r *Registry) CleanupExpiredClients(ctx context.Context) CleanupReport {
	var report CleanupReport
	if !r.configured() {
		return report
	}
	start := time.Now()
	defer func() { metrics.RecordSweep("registry_cleanup", time.Since(start)) }()

	userPrefix := r.userKey("")
	userKeys, err := r.kv.Keys(ctx, userPrefix+"*")
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("list user sets: %w", err))
		return report
	}

	var companyKeys []string
	companyKeysLoaded := false

	for _, userKey := range userKeys {
		if ctx.Err() != nil {
			report.Errors = append(report.Errors, ctx.Err())
			break
		}
		userID := strings.TrimPrefix(userKey, userPrefix)
		report.UsersScanned++

		orphans, remaining, err := r.orphanedSockets(ctx, userKey)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("user %s: %w", userID, err))
			continue
		}
		if len(orphans) == 0 {
			continue
		}

		p := r.kv.Pipeline()
		p.SetRemove(userKey, orphans...)

		userGone := remaining == 0
		if userGone {
			if !companyKeysLoaded {
				companyKeys, err = r.kv.Keys(ctx, r.companyKey("")+"*")
				if err != nil {
					report.Errors = append(report.Errors, fmt.Errorf("list company sets: %w", err))
					return report
				}
				companyKeysLoaded = true
			}
			for _, companyKey := range companyKeys {
				p.SetRemove(companyKey, userID)
			}
		}

		if err := p.Exec(ctx); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("user %s: %w", userID, err))
			continue
		}

		report.OrphansRemoved += len(orphans)
		metrics.RegistryOrphansRemoved.Add(float64(len(orphans)))
		if userGone {
			report.UsersRemoved = append(report.UsersRemoved, userID)
		}
	}

	if report.OrphansRemoved > 0 || len(report.Errors) > 0 {
		r.log.Info().
			Int("users_scanned", report.UsersScanned).
			Int("orphans_removed", report.OrphansRemoved).
			Int("users_removed", len(report.UsersRemoved)).
			Int("errors", len(report.Errors)).
			Msg("Registry cleanup completed")
	}
	return report
}

// orphanedSockets returns the members of a user set whose client hash no
// longer exists, and the number of members that are still live.
func (r *Registry) orphanedSockets(ctx context.Context, userKey string) (orphans []string, remaining int, err error) {
	sockets, err := r.kv.SetMembers(ctx, userKey)
	if err != nil {
		return nil, 0, fmt.Errorf("read sockets: %w", err)
	}
	for _, socketID := range sockets {
		ok, err := r.kv.Exists(ctx, r.clientKey(socketID))
		if err != nil {
			return nil, 0, fmt.Errorf("check socket %s: %w", socketID, err)
		}
		if ok {
			remaining++
		} else {
			orphans = append(orphans, socketID)
		}
	}
	return orphans, remaining, nil
}

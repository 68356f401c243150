// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

// Package registry records which websocket sockets are connected, for which
// user and company, in Redis so every process of a deployment can see them.
//
// Key layout ({prefix} is the deployment queue prefix):
//
//	{prefix}:ws_client:{socketId}      hash: userId, companyId, connectedAt
//	{prefix}:user_clients:{userId}     set of socket ids
//	{prefix}:company_users:{companyId} set of user ids
//
// Every key carries a 24 hour TTL. The TTL only bounds leaks from processes
// that die without disconnecting their sockets; RemoveClient is the normal
// path and CleanupExpiredClients reconciles the sets with expired hashes.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tenantcore/internal/logging"
	"github.com/tomtom215/tenantcore/internal/models"
	"github.com/tomtom215/tenantcore/internal/store"
)

// DefaultTTL is the safety TTL applied to every registry key.
const DefaultTTL = 24 * time.Hour

const (
	fieldUserID      = "userId"
	fieldCompanyID   = "companyId"
	fieldConnectedAt = "connectedAt"
)

// Registry is the shared socket registry. Writes return errors for the
// caller to log; reads fail soft and return empty results.
type Registry struct {
	kv     store.Store
	prefix string
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// New creates a Registry. A nil kv makes every operation a no-op.
func New(kv store.Store, prefix string, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		kv:     kv,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
		log:    logging.WithComponent("registry"),
	}
}

func (r *Registry) clientKey(socketID string) string {
	return r.prefix + ":ws_client:" + socketID
}

func (r *Registry) userKey(userID string) string {
	return r.prefix + ":user_clients:" + userID
}

func (r *Registry) companyKey(companyID string) string {
	return r.prefix + ":company_users:" + companyID
}

func (r *Registry) configured() bool {
	return r != nil && r.kv != nil
}

// AddClient records a socket for a user of a company. The hash, the user's
// socket set and the company's user set are written in one pipeline, and
// all three keys get the registry TTL.
func (r *Registry) AddClient(ctx context.Context, userID, companyID, socketID string) error {
	if !r.configured() {
		return nil
	}

	clientKey := r.clientKey(socketID)
	userKey := r.userKey(userID)
	companyKey := r.companyKey(companyID)

	p := r.kv.Pipeline()
	p.HashSet(clientKey, map[string]string{
		fieldUserID:      userID,
		fieldCompanyID:   companyID,
		fieldConnectedAt: r.now().UTC().Format(time.RFC3339),
	})
	p.SetAdd(userKey, socketID)
	p.SetAdd(companyKey, userID)
	p.Expire(clientKey, r.ttl)
	p.Expire(userKey, r.ttl)
	p.Expire(companyKey, r.ttl)

	if err := p.Exec(ctx); err != nil {
		return fmt.Errorf("register socket %s: %w", socketID, err)
	}
	return nil
}

// RemoveClient removes a socket. When it was the user's last socket the
// user also leaves the company set. Unknown sockets are a no-op, so calling
// RemoveClient twice is safe.
func (r *Registry) RemoveClient(ctx context.Context, socketID string) error {
	if !r.configured() {
		return nil
	}

	clientKey := r.clientKey(socketID)
	fields, err := r.kv.HashGetAll(ctx, clientKey)
	if err != nil {
		return fmt.Errorf("read socket %s: %w", socketID, err)
	}
	if len(fields) == 0 {
		return nil
	}

	userID := fields[fieldUserID]
	companyID := fields[fieldCompanyID]
	userKey := r.userKey(userID)

	sockets, err := r.kv.SetMembers(ctx, userKey)
	if err != nil {
		return fmt.Errorf("read sockets of user %s: %w", userID, err)
	}
	last := true
	for _, s := range sockets {
		if s != socketID {
			last = false
			break
		}
	}

	p := r.kv.Pipeline()
	p.SetRemove(userKey, socketID)
	if last && companyID != "" {
		p.SetRemove(r.companyKey(companyID), userID)
	}
	p.Delete(clientKey)

	if err := p.Exec(ctx); err != nil {
		return fmt.Errorf("unregister socket %s: %w", socketID, err)
	}
	return nil
}

// GetClientInfo returns the record of a socket, or nil when it is unknown.
func (r *Registry) GetClientInfo(ctx context.Context, socketID string) *models.ClientInfo {
	if !r.configured() {
		return nil
	}

	fields, err := r.kv.HashGetAll(ctx, r.clientKey(socketID))
	if err != nil {
		r.log.Warn().Err(err).Str("socket_id", socketID).Msg("Failed to read client info")
		return nil
	}
	if len(fields) == 0 {
		return nil
	}

	info := &models.ClientInfo{
		SocketID:  socketID,
		UserID:    fields[fieldUserID],
		CompanyID: fields[fieldCompanyID],
	}
	if ts, err := time.Parse(time.RFC3339, fields[fieldConnectedAt]); err == nil {
		info.ConnectedAt = ts
	}
	return info
}

// GetUserClients returns the socket ids of a user, sorted.
func (r *Registry) GetUserClients(ctx context.Context, userID string) []string {
	if !r.configured() {
		return nil
	}
	return r.members(ctx, r.userKey(userID), "user_id", userID)
}

// GetCompanyUsers returns the connected user ids of a company, sorted.
func (r *Registry) GetCompanyUsers(ctx context.Context, companyID string) []string {
	if !r.configured() {
		return nil
	}
	return r.members(ctx, r.companyKey(companyID), "company_id", companyID)
}

func (r *Registry) members(ctx context.Context, key, field, id string) []string {
	members, err := r.kv.SetMembers(ctx, key)
	if err != nil {
		r.log.Warn().Err(err).Str(field, id).Msg("Failed to read registry set")
		return nil
	}
	sort.Strings(members)
	return members
}

// GetUserCompany returns the company of a connected user, taken from the
// first of the user's sockets that still has a record. It returns "" when
// the user has no live socket.
func (r *Registry) GetUserCompany(ctx context.Context, userID string) string {
	for _, socketID := range r.GetUserClients(ctx, userID) {
		if info := r.GetClientInfo(ctx, socketID); info != nil && info.CompanyID != "" {
			return info.CompanyID
		}
	}
	return ""
}

// GetAllConnectedUsers returns every user that has a socket set, sorted.
func (r *Registry) GetAllConnectedUsers(ctx context.Context) []string {
	if !r.configured() {
		return nil
	}

	keyPrefix := r.userKey("")
	keys, err := r.kv.Keys(ctx, keyPrefix+"*")
	if err != nil {
		r.log.Warn().Err(err).Msg("Failed to list connected users")
		return nil
	}

	users := make([]string, 0, len(keys))
	for _, k := range keys {
		if userID := strings.TrimPrefix(k, keyPrefix); userID != "" {
			users = append(users, userID)
		}
	}
	sort.Strings(users)
	return users
}

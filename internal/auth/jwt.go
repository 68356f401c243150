// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest accepted HS256 secret.
const MinSecretLength = 32

// Claims are the JWT claims of a tenant user. The user id travels in the
// registered subject claim.
type Claims struct {
	CompanyID string `json:"company_id"`
	Name      string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator validates HS256 tokens.
type JWTAuthenticator struct {
	secret     []byte
	queryParam string
	now        func() time.Time
}

// NewJWTAuthenticator returns an authenticator signing and checking tokens
// with secret.
func NewJWTAuthenticator(secret string) (*JWTAuthenticator, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("JWT secret must be at least %d characters", MinSecretLength)
	}
	return &JWTAuthenticator{
		secret:     []byte(secret),
		queryParam: "token",
		now:        time.Now,
	}, nil
}

// Name returns the auth mode.
func (a *JWTAuthenticator) Name() string {
	return ModeJWT
}

// Authenticate extracts and validates the token of r.
func (a *JWTAuthenticator) Authenticate(_ context.Context, r *http.Request) (*Identity, error) {
	tokenStr := a.extractToken(r)
	if tokenStr == "" {
		return nil, ErrNoCredentials
	}

	claims, err := a.ValidateToken(tokenStr)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id := &Identity{UserID: claims.Subject, CompanyID: claims.CompanyID, UserName: claims.Name}
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return id, nil
}

// ValidateToken parses tokenString and returns its claims. Tokens signed
// with anything but HMAC are rejected.
func (a *JWTAuthenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// GenerateToken signs a token for id valid for ttl. Used by tooling and
// tests; production tokens are issued by the identity provider.
func (a *JWTAuthenticator) GenerateToken(id Identity, ttl time.Duration) (string, error) {
	now := a.now()
	claims := &Claims{
		CompanyID: id.CompanyID,
		Name:      id.UserName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// extractToken reads the bearer token from the Authorization header, then
// from the query string.
func (a *JWTAuthenticator) extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		scheme, token, ok := strings.Cut(authHeader, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	return strings.TrimSpace(r.URL.Query().Get(a.queryParam))
}

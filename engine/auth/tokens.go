// Package auth issues and verifies session tokens, enforces the password
// policy and signs users in locally or through Google and GitHub.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/WessleyAI/career-agent/pkg/kv"
)

var (
	ErrInvalidToken = errors.New("auth: could not validate credentials")
	ErrRevoked      = errors.New("auth: token has been revoked")
)

const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Claims is the JWT payload. Refresh tokens leave Email and Role empty.
type Claims struct {
	Email string    `json:"email"`
	Role  string    `json:"role"`
	Type  TokenType `json:"type"`
	jwt.RegisteredClaims
}

// Tokens signs HS256 tokens and keeps revoked token ids in a kv.Store
// until they would have expired anyway.
type Tokens struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	blacklist  kv.Store
	now        func() time.Time
	newID      func() string
	log        *slog.Logger
}

// NewTokens returns a token issuer. Zero TTLs fall back to the defaults; a
// nil blacklist disables revocation checks.
func NewTokens(secret string, accessTTL, refreshTTL time.Duration, blacklist kv.Store, logger *slog.Logger) *Tokens {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tokens{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		blacklist:  blacklist,
		now:        time.Now,
		newID:      uuid.NewString,
		log:        logger,
	}
}

// Issue signs a token of type typ for userID.
func (t *Tokens) Issue(userID, email, role string, typ TokenType) (string, error) {
	ttl := t.accessTTL
	if typ == TokenRefresh {
		ttl = t.refreshTTL
		email, role = "", ""
	}
	now := t.now()
	claims := Claims{
		Email: email,
		Role:  role,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        t.newID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign %s token: %w", typ, err)
	}
	return signed, nil
}

// Verify checks signature, expiry, type and revocation. A blacklist that
// cannot be reached does not reject the token.
func (t *Tokens) Verify(ctx context.Context, token string, typ TokenType) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Type != typ || claims.Subject == "" || claims.ID == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	if t.blacklist == nil {
		return claims, nil
	}
	_, err = t.blacklist.Get(ctx, blacklistKey(claims.ID))
	switch {
	case err == nil:
		return nil, ErrRevoked
	case errors.Is(err, kv.ErrNotFound):
	default:
		t.log.Warn("token blacklist unavailable", "err", err)
	}
	return claims, nil
}

// Revoke blacklists c for the rest of its validity. Expired tokens and a
// missing blacklist are no-ops.
func (t *Tokens) Revoke(ctx context.Context, c *Claims) error {
	if t.blacklist == nil || c.ExpiresAt == nil {
		return nil
	}
	remaining := c.ExpiresAt.Time.Sub(t.now())
	if remaining <= 0 {
		return nil
	}
	if err := t.blacklist.Set(ctx, blacklistKey(c.ID), []byte("1"), remaining); err != nil {
		return fmt.Errorf("auth: revoke token: %w", err)
	}
	return nil
}

func blacklistKey(jti string) string { return kv.Key("blacklist", jti) }

// Package account stores users and which resumes they own.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/WessleyAI/career-agent/engine/domain"
)

var (
	ErrUserNotFound = errors.New("account: user not found")
	ErrEmailTaken   = errors.New("account: email already registered")
)

type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a registered account. HashedPassword is empty for accounts that
// only sign in through OAuth.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	HashedPassword string    `json:"-"`
	Provider       Provider  `json:"provider"`
	ProviderID     string    `json:"-"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Store persists users and resume ownership. Lookups of unknown users
// return ErrUserNotFound; CreateUser returns ErrEmailTaken on a duplicate
// email.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error
	UserByID(ctx context.Context, id string) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByProvider(ctx context.Context, provider Provider, providerID string) (*User, error)

	// AddOwnership records that userID owns resumeID. Repeating it is a no-op.
	AddOwnership(ctx context.Context, userID, resumeID string) error
	Owns(ctx context.Context, userID, resumeID string) (bool, error)
	Close() error
}

// VerifyOwnership returns domain.ErrForbidden unless userID owns resumeID.
func VerifyOwnership(ctx context.Context, s Store, userID, resumeID string) error {
	ok, err := s.Owns(ctx, userID, resumeID)
	if err != nil {
		return fmt.Errorf("account: check ownership: %w", err)
	}
	if !ok {
		return domain.ErrForbidden
	}
	return nil
}

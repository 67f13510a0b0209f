package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/WessleyAI/career-agent/engine/account"
	"github.com/WessleyAI/career-agent/engine/domain"
	"github.com/WessleyAI/career-agent/pkg/mid"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	ErrInactive           = errors.New("auth: account is deactivated")
	ErrInvalidEmail       = errors.New("auth: invalid email address")
)

// Session is returned by every sign-in path. Refresh leaves User nil.
type Session struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	User         *account.User `json:"user,omitempty"`
}

type Options struct {
	Google     IdentityProvider
	GitHub     IdentityProvider
	BcryptCost int
}

// Service owns account sign-up and sign-in. It also implements
// mid.Authenticator for bearer-protected routes.
type Service struct {
	users     account.Store
	tokens    *Tokens
	providers map[account.Provider]IdentityProvider
	cost      int
	newID     func() string
	log       *slog.Logger
}

var _ mid.Authenticator = (*Service)(nil)

func New(users account.Store, tokens *Tokens, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	providers := map[account.Provider]IdentityProvider{}
	if opts.Google != nil {
		providers[account.ProviderGoogle] = opts.Google
	}
	if opts.GitHub != nil {
		providers[account.ProviderGitHub] = opts.GitHub
	}
	return &Service{
		users:     users,
		tokens:    tokens,
		providers: providers,
		cost:      opts.BcryptCost,
		newID:     uuid.NewString,
		log:       logger,
	}
}

// Register creates a local account and signs it in.
func (s *Service) Register(ctx context.Context, email, password, name string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return Session{}, err
	}
	if _, err := s.users.UserByEmail(ctx, email); err == nil {
		return Session{}, account.ErrEmailTaken
	} else if !errors.Is(err, account.ErrUserNotFound) {
		return Session{}, err
	}
	hash, err := hashPassword(password, s.cost)
	if err != nil {
		return Session{}, err
	}
	u := &account.User{
		ID:             s.newID(),
		Email:          email,
		Name:           strings.TrimSpace(name),
		HashedPassword: hash,
		Provider:       account.ProviderLocal,
		Role:           account.RoleUser,
		IsActive:       true,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return Session{}, err
	}
	s.log.Info("user registered", "user_id", u.ID)
	return s.session(u)
}

// Login checks a local password. Unknown emails, OAuth-only accounts and
// wrong passwords all return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, account.ErrUserNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !checkPassword(u.HashedPassword, password) {
		return Session{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		return Session{}, ErrInactive
	}
	return s.session(u)
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked so it works once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	c, err := s.tokens.Verify(ctx, refreshToken, TokenRefresh)
	if err != nil {
		return Session{}, err
	}
	if err := s.tokens.Revoke(ctx, c); err != nil {
		s.log.Warn("refresh token rotation not recorded", "err", err)
	}
	u, err := s.users.UserByID(ctx, c.Subject)
	if err != nil || !u.IsActive {
		return Session{}, ErrInvalidToken
	}
	sess, err := s.session(u)
	sess.User = nil
	return sess, err
}

func (s *Service) Me(ctx context.Context, userID string) (*account.User, error) {
	return s.users.UserByID(ctx, userID)
}

// Logout revokes an access token.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	c, err := s.tokens.Verify(ctx, accessToken, TokenAccess)
	if err != nil {
		return err
	}
	return s.tokens.Revoke(ctx, c)
}

func (s *Service) Authenticate(ctx context.Context, token string) (mid.Principal, error) {
	c, err := s.tokens.Verify(ctx, token, TokenAccess)
	if err != nil {
		return mid.Principal{}, err
	}
	u, err := s.users.UserByID(ctx, c.Subject)
	if errors.Is(err, account.ErrUserNotFound) {
		return mid.Principal{}, ErrInvalidToken
	}
	if err != nil {
		return mid.Principal{}, err
	}
	if !u.IsActive {
		return mid.Principal{}, ErrInactive
	}
	return mid.Principal{UserID: u.ID, Email: u.Email, Role: u.Role}, nil
}

// OAuth signs in through provider with the credential its client flow
// produced.
func (s *Service) OAuth(ctx context.Context, provider account.Provider, credential string) (Session, error) {
	idp, ok := s.providers[provider]
	if !ok {
		return Session{}, ErrProviderNotConfigured
	}
	if strings.TrimSpace(credential) == "" {
		return Session{}, domain.NewValidationError("credential", "", domain.ErrEmptyText)
	}
	id, err := idp.Identify(ctx, credential)
	if err != nil {
		return Session{}, err
	}
	u, err := s.upsert(ctx, provider, id)
	if err != nil {
		return Session{}, err
	}
	if !u.IsActive {
		return Session{}, ErrInactive
	}
	return s.session(u)
}

// upsert finds the user by provider id, then by email (linking the
// provider), and creates one otherwise.
func (s *Service) upsert(ctx context.Context, provider account.Provider, id Identity) (*account.User, error) {
	u, err := s.users.UserByProvider(ctx, provider, id.ProviderID)
	switch {
	case err == nil:
		u.Name = id.Name
		u.AvatarURL = id.AvatarURL
		return u, s.users.UpdateUser(ctx, u)
	case !errors.Is(err, account.ErrUserNotFound):
		return nil, err
	}

	email := strings.ToLower(id.Email)
	u, err = s.users.UserByEmail(ctx, email)
	switch {
	case err == nil:
		u.Provider = provider
		u.ProviderID = id.ProviderID
		if u.AvatarURL == "" {
			u.AvatarURL = id.AvatarURL
		}
		s.log.Info("linked oauth provider", "user_id", u.ID, "provider", provider)
		return u, s.users.UpdateUser(ctx, u)
	case !errors.Is(err, account.ErrUserNotFound):
		return nil, err
	}

	u = &account.User{
		ID:         s.newID(),
		Email:      email,
		Name:       id.Name,
		Provider:   provider,
		ProviderID: id.ProviderID,
		AvatarURL:  id.AvatarURL,
		Role:       account.RoleUser,
		IsActive:   true,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user registered", "user_id", u.ID, "provider", provider)
	return u, nil
}

func (s *Service) session(u *account.User) (Session, error) {
	access, err := s.tokens.Issue(u.ID, u.Email, u.Role, TokenAccess)
	if err != nil {
		return Session{}, err
	}
	refresh, err := s.tokens.Issue(u.ID, "", "", TokenRefresh)
	if err != nil {
		return Session{}, err
	}
	return Session{AccessToken: access, RefreshToken: refresh, TokenType: "bearer", User: u}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.NewValidationError("email", email, ErrInvalidEmail)
	}
	return email, nil
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"
)

var (
	ErrProviderNotConfigured = errors.New("auth: oauth provider is not configured")
	ErrOAuthRejected         = errors.New("auth: oauth credential rejected")
	ErrIncompleteProfile     = errors.New("auth: provider returned no verified email")
)

// Identity is what an OAuth provider tells us about the signed-in user.
type Identity struct {
	ProviderID string
	Email      string
	Name       string
	AvatarURL  string
}

// IdentityProvider turns a client-side credential (an id_token or an
// authorization code) into an Identity.
type IdentityProvider interface {
	Identify(ctx context.Context, credential string) (Identity, error)
}

// Google validates Sign-In id_tokens against the app's client id.
type Google struct {
	clientID string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

func NewGoogle(clientID string) *Google {
	return &Google{clientID: clientID, validate: idtoken.Validate}
}

func (g *Google) Identify(ctx context.Context, token string) (Identity, error) {
	p, err := g.validate(ctx, token, g.clientID)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: google: %v", ErrOAuthRejected, err)
	}
	email := claim(p.Claims, "email")
	if p.Subject == "" || email == "" || !emailVerified(p.Claims) {
		return Identity{}, ErrIncompleteProfile
	}
	return Identity{
		ProviderID: p.Subject,
		Email:      email,
		Name:       firstNonEmpty(claim(p.Claims, "name"), localPart(email)),
		AvatarURL:  claim(p.Claims, "picture"),
	}, nil
}

func claim(claims map[string]interface{}, name string) string {
	s, _ := claims[name].(string)
	return s
}

// emailVerified reads email_verified, which some issuers send as a string.
func emailVerified(claims map[string]interface{}) bool {
	switch v := claims["email_verified"].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

var githubEndpoint = oauth2.Endpoint{
	AuthURL:  "https://github.com/login/oauth/authorize",
	TokenURL: "https://github.com/login/oauth/access_token",
}

// GitHub exchanges an authorization code and reads the user's profile.
type GitHub struct {
	conf    *oauth2.Config
	apiBase *url.URL
}

func NewGitHub(clientID, clientSecret string) *GitHub {
	return &GitHub{conf: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     githubEndpoint,
		Scopes:       []string{"read:user", "user:email"},
	}}
}

func (g *GitHub) Identify(ctx context.Context, code string) (Identity, error) {
	tok, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: github: %v", ErrOAuthRejected, err)
	}
	client := github.NewClient(g.conf.Client(ctx, tok))
	if g.apiBase != nil {
		client.BaseURL = g.apiBase
	}

	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return Identity{}, fmt.Errorf("auth: github profile: %w", err)
	}
	email := user.GetEmail()
	if email == "" {
		// Private profiles hide the email; use the primary verified one.
		emails, _, err := client.Users.ListEmails(ctx, nil)
		if err != nil {
			return Identity{}, fmt.Errorf("auth: github emails: %w", err)
		}
		for _, e := range emails {
			if e.GetPrimary() && e.GetVerified() {
				email = e.GetEmail()
				break
			}
		}
	}
	if email == "" {
		return Identity{}, ErrIncompleteProfile
	}
	return Identity{
		ProviderID: strconv.FormatInt(user.GetID(), 10),
		Email:      email,
		Name:       firstNonEmpty(user.GetName(), user.GetLogin(), localPart(email)),
		AvatarURL:  user.GetAvatarURL(),
	}, nil
}

func localPart(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

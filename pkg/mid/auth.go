package mid

import (
	"context"
	"net/http"
	"strings"
)

// Principal is the authenticated caller attached to a request context.
type Principal struct {
	UserID string
	Email  string
	Role   string
}

// Authenticator resolves a bearer token to a Principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Principal, error)
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the Principal stored by RequireAuth.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// ErrorWriter writes the response for a failed request.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// RequireAuth rejects requests without a token a accepts. A missing token is
// always 401; Authenticate errors go to onErr, or become 401 when onErr is nil.
func RequireAuth(a Authenticator, onErr ErrorWriter) Middleware {
	if onErr == nil {
		onErr = func(w http.ResponseWriter, _ *http.Request, _ error) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			Error(w, http.StatusUnauthorized, "invalid or expired token")
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				Error(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			p, err := a.Authenticate(r.Context(), token)
			if err != nil {
				onErr(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

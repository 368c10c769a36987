// Package auth delegates password login to a Supabase-compatible identity
// provider and verifies bearer tokens for write endpoints.
package auth

import (
	"context"
	"errors"
)

var (
	// ErrInvalidCredentials is returned when the provider rejects a login.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrUnauthorized is returned for missing, malformed or expired tokens.
	ErrUnauthorized = errors.New("invalid or expired token")
	// ErrUnavailable is returned when the provider cannot be reached or the
	// circuit breaker is open.
	ErrUnavailable = errors.New("identity provider unavailable")
)

// User is the identity attached to a verified token.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Role    string `json:"role,omitempty"`
	IsAdmin bool   `json:"isAdmin,omitempty"`
}

// Session is the result of a successful password login.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	User         User   `json:"user"`
}

// Verifier resolves a bearer token to a user.
type Verifier interface {
	Verify(ctx context.Context, token string) (User, error)
}

// Chain tries each verifier in order and returns the first success. A
// verifier returning ErrUnavailable does not stop the chain.
type Chain []Verifier

// Verify implements Verifier.
func (c Chain) Verify(ctx context.Context, token string) (User, error) {
	err := ErrUnauthorized
	for _, v := range c {
		if v == nil {
			continue
		}
		user, verr := v.Verify(ctx, token)
		if verr == nil {
			return user, nil
		}
		err = verr
	}
	return User{}, err
}

type userKey struct{}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(userKey{}).(User)
	return user, ok
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type providerClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 access tokens signed with the provider's JWT
// secret without a network round trip.
type JWTVerifier struct {
	secret []byte
	leeway time.Duration
}

// NewJWTVerifier returns a verifier for tokens signed with secret.
func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTVerifier{secret: []byte(secret), leeway: 5 * time.Second}, nil
}

// Verify parses token and returns the subject as the user.
func (v *JWTVerifier) Verify(_ context.Context, token string) (User, error) {
	parsed, err := jwt.ParseWithClaims(token, &providerClaims{},
		func(_ *jwt.Token) (any, error) {
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*providerClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return User{}, ErrUnauthorized
	}
	return User{ID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/lestrrat-go/jwx/jwt"
)

var ErrAuthFailure = errors.New("authentication failed")

// JWTDirectory resolves bearer tokens to user ids. The user id is the
// token's "sub" claim; tokens are HS256 signed with a shared secret.
type JWTDirectory struct {
	tokenAuth *jwtauth.JWTAuth
}

func NewJWTDirectory(secret string) *JWTDirectory {
	return &JWTDirectory{tokenAuth: jwtauth.New("HS256", []byte(secret), nil)}
}

// JWTAuth exposes the verifier for chi middleware.
func (d *JWTDirectory) JWTAuth() *jwtauth.JWTAuth {
	return d.tokenAuth
}

// Resolve verifies token and returns its subject.
func (d *JWTDirectory) Resolve(token string) (string, error) {
	if token == "" {
		return "", ErrAuthFailure
	}
	t, err := d.tokenAuth.Decode(token)
	if err != nil || t == nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}
	if err := jwt.Validate(t); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}
	if t.Subject() == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrAuthFailure)
	}
	return t.Subject(), nil
}

// Issue signs a token for userID valid for ttl.
func (d *JWTDirectory) Issue(userID string, ttl time.Duration) (string, error) {
	_, tokenString, err := d.tokenAuth.Encode(map[string]interface{}{
		"sub": userID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	})
	return tokenString, err
}

// UserFromContext returns the subject of the token verified by jwtauth.Verifier.
func UserFromContext(ctx context.Context) (string, error) {
	t, _, err := jwtauth.FromContext(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}
	if t == nil || t.Subject() == "" {
		return "", ErrAuthFailure
	}
	return t.Subject(), nil
}

// Package session answers "who is signed in" for views.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/orbit/services/social/internal/domain"
)

// Source returns the signed-in user or an Unauthorized error.
type Source interface {
	CurrentUser(ctx context.Context) (domain.User, error)
}

// Static is a fixed user; the empty value means signed out.
type Static string

func (s Static) CurrentUser(context.Context) (domain.User, error) {
	if strings.TrimSpace(string(s)) == "" {
		return domain.User{}, domain.Unauthorized("session", "not signed in")
	}
	return domain.User{ID: string(s)}, nil
}

// Token reads the user from a bearer token's subject. The signature is not
// checked here; the service verifies it on every request.
type Token string

func (t Token) CurrentUser(context.Context) (domain.User, error) {
	raw := strings.TrimSpace(string(t))
	if raw == "" {
		return domain.User{}, domain.Unauthorized("session", "not signed in")
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return domain.User{}, domain.Unauthorized("session", "malformed token")
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return domain.User{}, domain.Unauthorized("session", "token expired")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return domain.User{}, domain.Unauthorized("session", "token has no subject")
	}
	return domain.User{ID: claims.Subject}, nil
}

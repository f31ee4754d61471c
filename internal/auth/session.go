// Package auth holds the backend session obtained by exchanging an
// identity-provider token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotAuthenticated is returned when no usable session exists
var ErrNotAuthenticated = errors.New("not authenticated")

// AuthError reports a failed token exchange or a rejected access token
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "auth: " + e.Op
	}
	return fmt.Sprintf("auth: %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Session is the backend access token and the user it belongs to
type Session struct {
	AccessToken string    `json:"accessToken"`
	UserID      string    `json:"userId"`
	Email       string    `json:"email,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
}

// Valid reports whether the session has a token and has not expired
func (s Session) Valid(now time.Time) bool {
	if s.AccessToken == "" || s.UserID == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// SessionSource supplies the session for backend calls
type SessionSource interface {
	Session(ctx context.Context) (Session, error)
}

// Static is a SessionSource that always returns the same session
type Static Session

// Session implements SessionSource
func (s Static) Session(context.Context) (Session, error) {
	if s.AccessToken == "" || s.UserID == "" {
		return Session{}, ErrNotAuthenticated
	}
	return Session(s), nil
}

type sessionKey struct{}

// WithSession attaches a per-request session to ctx
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session attached by WithSession
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// Identity is what the client reads from an identity-provider token.
// The token is not verified here; the backend verifies it on exchange.
type Identity struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
}

// ParseIdentityToken reads the subject, email and expiry claims
func ParseIdentityToken(idToken string) (Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(idToken, claims); err != nil {
		return Identity{}, fmt.Errorf("failed to parse identity token: %w", err)
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return Identity{}, errors.New("identity token has no subject")
	}
	email, _ := claims["email"].(string)

	id := Identity{Subject: sub, Email: email}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	return id, nil
}

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kosarica/analytics-service/internal/storage"
)

// Grant is the backend's answer to a token exchange
type Grant struct {
	AccessToken string
	UserID      string
}

// Exchanger trades an identity-provider token for a backend access token
type Exchanger interface {
	ExchangeToken(ctx context.Context, idToken string) (Grant, error)
}

// Manager owns the current session and persists it between runs
type Manager struct {
	store     storage.Storage
	exchanger Exchanger
	now       func() time.Time
	logger    zerolog.Logger

	mu      sync.Mutex
	current *Session
}

// NewManager creates a session manager
func NewManager(store storage.Storage, exchanger Exchanger) *Manager {
	return &Manager{
		store:     store,
		exchanger: exchanger,
		now:       time.Now,
		logger:    log.With().Str("component", "auth").Logger(),
	}
}

// Login exchanges idToken for a backend session. An existing valid session
// for the same subject is reused without another exchange.
func (m *Manager) Login(ctx context.Context, idToken string) (Session, error) {
	identity, err := ParseIdentityToken(idToken)
	if err != nil {
		return Session{}, &AuthError{Op: "login", Err: err}
	}
	now := m.now()
	if !identity.ExpiresAt.IsZero() && !now.Before(identity.ExpiresAt) {
		return Session{}, &AuthError{Op: "login", Err: errors.New("identity token has expired")}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, err := m.loadLocked(ctx); err == nil && s.Valid(now) && s.UserID == identity.Subject {
		m.logger.Debug().Str("user_id", s.UserID).Msg("Reusing existing session")
		return s, nil
	}

	grant, err := m.exchanger.ExchangeToken(ctx, idToken)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("token exchange: %w", err)
	}
	if grant.AccessToken == "" {
		return Session{}, &AuthError{Op: "token exchange", Err: errors.New("backend returned no access token")}
	}

	s := Session{
		AccessToken: grant.AccessToken,
		UserID:      grant.UserID,
		Email:       identity.Email,
		ExpiresAt:   identity.ExpiresAt,
	}
	if s.UserID == "" {
		s.UserID = identity.Subject
	}

	data, err := json.Marshal(s)
	if err != nil {
		return Session{}, fmt.Errorf("failed to encode session: %w", err)
	}
	if err := m.store.Put(ctx, storage.SessionKey, data); err != nil {
		return Session{}, fmt.Errorf("failed to save session: %w", err)
	}
	m.current = &s

	m.logger.Info().Str("user_id", s.UserID).Msg("Logged in")
	return s, nil
}

// Session returns the current session or ErrNotAuthenticated
func (m *Manager) Session(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.loadLocked(ctx)
	if err != nil {
		return Session{}, err
	}
	if !s.Valid(m.now()) {
		m.current = nil
		return Session{}, ErrNotAuthenticated
	}
	return s, nil
}

// Logout forgets the session
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = nil
	if err := m.store.Delete(ctx, storage.SessionKey); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	m.logger.Info().Msg("Logged out")
	return nil
}

func (m *Manager) loadLocked(ctx context.Context) (Session, error) {
	if m.current != nil {
		return *m.current, nil
	}
	data, err := m.store.Get(ctx, storage.SessionKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, ErrNotAuthenticated
		}
		return Session{}, fmt.Errorf("failed to read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		m.logger.Warn().Err(err).Msg("Discarding unreadable session")
		return Session{}, ErrNotAuthenticated
	}
	m.current = &s
	return s, nil
}

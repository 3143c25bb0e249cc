package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/dispensing-api/internal/model"
	"github.com/jwalitptl/dispensing-api/pkg/logger"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator checks a credential pair and returns the matching account.
// It returns ErrInvalidCredentials, possibly wrapped, for a bad pair.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
}

// Manager is the session object handed to handlers and middleware.
type Manager struct {
	store  Store
	tokens *Tokens
	auth   Authenticator
	ttl    time.Duration
	logger *logger.Logger
	now    func() time.Time
}

func NewManager(store Store, tokens *Tokens, auth Authenticator, ttl time.Duration, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		store:  store,
		tokens: tokens,
		auth:   auth,
		ttl:    ttl,
		logger: log,
		now:    time.Now,
	}
}

// TTL is how long a new session lives.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Login authenticates the pair and starts a session. A session named by prior
// is ended on success; on failure nothing stored changes.
func (m *Manager) Login(ctx context.Context, req model.LoginRequest, prior string) (*model.Identity, string, error) {
	user, err := m.auth.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, "", err
	}

	identity := model.IdentityFromUser(user)
	identity.ExpiresAt = m.now().Add(m.ttl).UTC()

	id := uuid.NewString()
	token, err := m.tokens.Issue(id, identity.ID.String(), string(identity.Role), identity.ExpiresAt)
	if err != nil {
		return nil, "", err
	}

	if err := m.store.Save(ctx, id, identity, m.ttl); err != nil {
		return nil, "", fmt.Errorf("failed to start session: %w", err)
	}

	if prior != "" {
		if priorID, err := m.tokens.Parse(prior); err == nil && priorID != id {
			if err := m.store.Delete(ctx, priorID); err != nil {
				m.logger.Warn("failed to end replaced session", "error", err.Error())
			}
		}
	}

	m.logger.Info("session started", "user_id", identity.ID.String(), "role", string(identity.Role))
	return identity, token, nil
}

// Logout ends the session named by token. Ending an unknown session is not an error.
func (m *Manager) Logout(ctx context.Context, token string) error {
	id, err := m.tokens.Parse(token)
	if err != nil {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// Current returns the identity behind token, or nil when there is none.
// Every failure, including a store outage, reads as unauthenticated.
func (m *Manager) Current(ctx context.Context, token string) *model.Identity {
	if token == "" {
		return nil
	}
	id, err := m.tokens.Parse(token)
	if err != nil {
		return nil
	}

	identity, err := m.store.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			m.logger.Warn("session lookup failed", "error", err.Error())
		}
		return nil
	}
	if !identity.ExpiresAt.IsZero() && m.now().After(identity.ExpiresAt) {
		return nil
	}
	return identity
}

// SessionID returns the id carried by token, or "" when the token is invalid.
func (m *Manager) SessionID(token string) string {
	id, err := m.tokens.Parse(token)
	if err != nil {
		return ""
	}
	return id
}

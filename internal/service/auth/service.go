package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwalitptl/dispensing-api/internal/model"
	"github.com/jwalitptl/dispensing-api/internal/repository"
	"github.com/jwalitptl/dispensing-api/internal/session"
	"github.com/jwalitptl/dispensing-api/pkg/logger"
	"github.com/jwalitptl/dispensing-api/pkg/metrics"
	"github.com/jwalitptl/dispensing-api/pkg/security"
)

// Service checks credentials against the user table. It implements
// session.Authenticator.
type Service struct {
	users   repository.UserRepository
	hasher  security.PasswordHasher
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func NewService(users repository.UserRepository, hasher security.PasswordHasher, m *metrics.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		users:   users,
		hasher:  hasher,
		metrics: m,
		logger:  log,
	}
}

// Authenticate returns the active account matching the pair. Unknown emails,
// wrong passwords and inactive accounts all report session.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.count("unknown")
			return nil, session.ErrInvalidCredentials
		}
		s.count("error")
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.count("mismatch")
		return nil, session.ErrInvalidCredentials
	}

	if user.Status != model.UserStatusActive {
		s.count("inactive")
		s.logger.Warn("login refused for inactive account", "user_id", user.ID.String())
		return nil, session.ErrInvalidCredentials
	}

	s.count("success")
	return user, nil
}

func (s *Service) count(result string) {
	if s.metrics != nil {
		s.metrics.Logins.WithLabelValues(result).Inc()
	}
}

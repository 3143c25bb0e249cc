package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/dispensing-api/internal/model"
	"github.com/jwalitptl/dispensing-api/internal/repository"
	apperrors "github.com/jwalitptl/dispensing-api/pkg/errors"
	"github.com/jwalitptl/dispensing-api/pkg/logger"
	"github.com/jwalitptl/dispensing-api/pkg/security"
	"github.com/jwalitptl/dispensing-api/pkg/validator"
)

type UserServicer interface {
	CreateUser(ctx context.Context, req *model.CreateUserRequest) (*model.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, req *model.UpdateUserRequest) (*model.User, error)
	DeleteUser(ctx context.Context, id, actor uuid.UUID) error
	ListUsers(ctx context.Context, filter *model.UserFilter) ([]*model.User, error)
}

type Service struct {
	repo      repository.UserRepository
	hasher    security.PasswordHasher
	validator validator.Validator
	logger    *logger.Logger
}

func NewService(repo repository.UserRepository, hasher security.PasswordHasher, v validator.Validator, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:      repo,
		hasher:    hasher,
		validator: v,
		logger:    log,
	}
}

func (s *Service) CreateUser(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, apperrors.BadRequest("invalid user data", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.BadRequest("invalid password", err)
	}

	user := &model.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		Position:     strings.TrimSpace(req.Position),
		Status:       req.Status,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, mapError(err)
	}

	s.logger.Info("user created", "user_id", user.ID.String(), "role", string(user.Role))
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return user, nil
}

// UpdateUser applies the fields present in req. A nil or empty password keeps
// the stored hash.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, req *model.UpdateUserRequest) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Role != nil {
		if !req.Role.Valid() {
			return nil, apperrors.BadRequest("invalid role", nil)
		}
		user.Role = *req.Role
	}
	if req.Position != nil {
		user.Position = strings.TrimSpace(*req.Position)
	}
	if req.Status != nil {
		user.Status = *req.Status
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return nil, apperrors.BadRequest("invalid password", err)
		}
		user.PasswordHash = hash
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, mapError(err)
	}
	return user, nil
}

// DeleteUser removes an account. Administrators cannot remove their own account.
func (s *Service) DeleteUser(ctx context.Context, id, actor uuid.UUID) error {
	if id == actor {
		return apperrors.Conflict("cannot delete the signed in account", nil)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapError(err)
	}
	s.logger.Info("user deleted", "user_id", id.String(), "deleted_by", actor.String())
	return nil
}

func (s *Service) ListUsers(ctx context.Context, filter *model.UserFilter) ([]*model.User, error) {
	users, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound("user", err)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.Conflict("email already in use", err)
	}
	return err
}

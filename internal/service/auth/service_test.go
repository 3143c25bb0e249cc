package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/dispensing-api/internal/model"
	"github.com/jwalitptl/dispensing-api/internal/repository"
	"github.com/jwalitptl/dispensing-api/internal/repository/mocks"
	"github.com/jwalitptl/dispensing-api/internal/session"
	"github.com/jwalitptl/dispensing-api/pkg/metrics"
	"github.com/jwalitptl/dispensing-api/pkg/security"
)

func newUser(t *testing.T, hasher security.PasswordHasher, status string) *model.User {
	t.Helper()
	hash, err := hasher.Hash("password")
	require.NoError(t, err)
	return &model.User{
		Base:         model.Base{ID: uuid.New()},
		Name:         "Usuario Regular",
		Email:        "user@medcol.com",
		PasswordHash: hash,
		Role:         model.RoleUser,
		Status:       status,
	}
}

func TestAuthenticate(t *testing.T) {
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	active := newUser(t, hasher, model.UserStatusActive)
	inactive := newUser(t, hasher, model.UserStatusInactive)
	inactive.Email = "maria@medcol.com"

	repo := new(mocks.UserRepository)
	repo.On("GetByEmail", mock.Anything, "user@medcol.com").Return(active, nil)
	repo.On("GetByEmail", mock.Anything, "maria@medcol.com").Return(inactive, nil)
	repo.On("GetByEmail", mock.Anything, "nobody@medcol.com").Return(nil, repository.ErrNotFound)
	repo.On("GetByEmail", mock.Anything, "broken@medcol.com").Return(nil, errors.New("connection refused"))

	m := metrics.NewNop()
	svc := NewService(repo, hasher, m, nil)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "user@medcol.com", "password")
	require.NoError(t, err)
	assert.Equal(t, active.ID, user.ID)

	_, err = svc.Authenticate(ctx, "user@medcol.com", "wrong-password")
	assert.ErrorIs(t, err, session.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@medcol.com", "password")
	assert.ErrorIs(t, err, session.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "maria@medcol.com", "password")
	assert.ErrorIs(t, err, session.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "broken@medcol.com", "password")
	require.Error(t, err)
	assert.NotErrorIs(t, err, session.ErrInvalidCredentials)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Logins.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Logins.WithLabelValues("inactive")))
	repo.AssertExpectations(t)
}

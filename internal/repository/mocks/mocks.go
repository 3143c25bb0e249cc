// Package mocks provides testify mocks of the repository interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/jwalitptl/dispensing-api/internal/model"
)

type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) Create(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *UserRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*model.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*model.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) Update(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *UserRepository) List(ctx context.Context, filter *model.UserFilter) ([]*model.User, error) {
	args := m.Called(ctx, filter)
	if u := args.Get(0); u != nil {
		return u.([]*model.User), args.Error(1)
	}
	return nil, args.Error(1)
}

type DocumentRepository struct {
	mock.Mock
}

func (m *DocumentRepository) CreateBatch(ctx context.Context, docs []*model.Document, files []*model.DocumentFile, event *model.OutboxEvent) error {
	return m.Called(ctx, docs, files, event).Error(0)
}

func (m *DocumentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	args := m.Called(ctx, id)
	if d := args.Get(0); d != nil {
		return d.(*model.Document), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DocumentRepository) GetFile(ctx context.Context, id uuid.UUID) (*model.DocumentFile, error) {
	args := m.Called(ctx, id)
	if f := args.Get(0); f != nil {
		return f.(*model.DocumentFile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DocumentRepository) List(ctx context.Context, filter *model.DocumentFilter) ([]*model.Document, error) {
	args := m.Called(ctx, filter)
	if d := args.Get(0); d != nil {
		return d.([]*model.Document), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DocumentRepository) Delete(ctx context.Context, id uuid.UUID, event *model.OutboxEvent) error {
	return m.Called(ctx, id, event).Error(0)
}

func (m *DocumentRepository) AttachFile(ctx context.Context, doc *model.Document, file *model.DocumentFile) error {
	return m.Called(ctx, doc, file).Error(0)
}

func (m *DocumentRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	if c := args.Get(0); c != nil {
		return c.(map[string]int), args.Error(1)
	}
	return nil, args.Error(1)
}

type MedicationRepository struct {
	mock.Mock
}

func (m *MedicationRepository) List(ctx context.Context, status string, filter *model.MedicationFilter) ([]*model.Medication, error) {
	args := m.Called(ctx, status, filter)
	if meds := args.Get(0); meds != nil {
		return meds.([]*model.Medication), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MedicationRepository) Get(ctx context.Context, id string) (*model.Medication, error) {
	args := m.Called(ctx, id)
	if med := args.Get(0); med != nil {
		return med.(*model.Medication), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MedicationRepository) MarkDelivered(ctx context.Context, id string, at time.Time, event *model.OutboxEvent) error {
	return m.Called(ctx, id, at, event).Error(0)
}

func (m *MedicationRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	if c := args.Get(0); c != nil {
		return c.(map[string]int), args.Error(1)
	}
	return nil, args.Error(1)
}

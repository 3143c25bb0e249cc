package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/dispensing-api/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter *model.UserFilter) ([]*model.User, error)
	}

	// DocumentRepository stores saved documents and their files. Writes that
	// carry an outbox event commit the event in the same transaction.
	DocumentRepository interface {
		CreateBatch(ctx context.Context, docs []*model.Document, files []*model.DocumentFile, event *model.OutboxEvent) error
		Get(ctx context.Context, id uuid.UUID) (*model.Document, error)
		GetFile(ctx context.Context, id uuid.UUID) (*model.DocumentFile, error)
		List(ctx context.Context, filter *model.DocumentFilter) ([]*model.Document, error)
		Delete(ctx context.Context, id uuid.UUID, event *model.OutboxEvent) error
		AttachFile(ctx context.Context, doc *model.Document, file *model.DocumentFile) error
		CountByStatus(ctx context.Context) (map[string]int, error)
	}

	MedicationRepository interface {
		List(ctx context.Context, status string, filter *model.MedicationFilter) ([]*model.Medication, error)
		Get(ctx context.Context, id string) (*model.Medication, error)
		MarkDelivered(ctx context.Context, id string, at time.Time, event *model.OutboxEvent) error
		CountByStatus(ctx context.Context) (map[string]int, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		ClaimPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)

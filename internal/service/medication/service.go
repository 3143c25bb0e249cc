package medication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/dispensing-api/internal/model"
	"github.com/jwalitptl/dispensing-api/internal/repository"
	apperrors "github.com/jwalitptl/dispensing-api/pkg/errors"
	"github.com/jwalitptl/dispensing-api/pkg/logger"
)

type Service struct {
	repo   repository.MedicationRepository
	logger *logger.Logger
	now    func() time.Time
}

func NewService(repo repository.MedicationRepository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{repo: repo, logger: log, now: time.Now}
}

func (s *Service) Delivered(ctx context.Context, filter *model.MedicationFilter) ([]*model.Medication, error) {
	return s.list(ctx, model.MedicationStatusDelivered, filter)
}

func (s *Service) Pending(ctx context.Context, filter *model.MedicationFilter) ([]*model.Medication, error) {
	return s.list(ctx, model.MedicationStatusPending, filter)
}

func (s *Service) list(ctx context.Context, status string, filter *model.MedicationFilter) ([]*model.Medication, error) {
	meds, err := s.repo.List(ctx, status, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	return meds, nil
}

// MarkDelivered records the delivery of a pending medication.
func (s *Service) MarkDelivered(ctx context.Context, id string, actor uuid.UUID) (*model.Medication, error) {
	med, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("medication", err)
		}
		return nil, err
	}
	if med.Status != model.MedicationStatusPending {
		return nil, apperrors.Conflict("medication already delivered", nil)
	}

	at := s.now().UTC()
	event, err := model.NewOutboxEvent(model.EventMedicationIssued, model.MedicationDeliveredPayload{
		MedicationID: med.ID,
		PatientID:    med.PatientID,
		DeliveredBy:  actor,
		DeliveredAt:  at,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build event: %w", err)
	}

	if err := s.repo.MarkDelivered(ctx, id, at, event); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Conflict("medication already delivered", err)
		}
		return nil, err
	}

	med.Status = model.MedicationStatusDelivered
	med.DeliveryDate = &at
	s.logger.Info("medication delivered", "medication_id", id, "delivered_by", actor.String())
	return med, nil
}

func (s *Service) Counts(ctx context.Context) (map[string]int, error) {
	return s.repo.CountByStatus(ctx)
}

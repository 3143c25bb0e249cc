package dashboard

import (
	"context"
	"fmt"

	"github.com/jwalitptl/dispensing-api/internal/model"
)

// Counter reports record counts keyed by status.
type Counter interface {
	Counts(ctx context.Context) (map[string]int, error)
}

type Service struct {
	documents   Counter
	medications Counter
}

func NewService(documents, medications Counter) *Service {
	return &Service{documents: documents, medications: medications}
}

// Summary feeds the landing page cards.
func (s *Service) Summary(ctx context.Context) (*model.DashboardSummary, error) {
	docs, err := s.documents.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	meds, err := s.medications.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count medications: %w", err)
	}

	total := 0
	for _, n := range docs {
		total += n
	}
	return &model.DashboardSummary{
		Documents:            total,
		PendingDocuments:     docs[model.DocumentStatusPending],
		DeliveredMedications: meds[model.MedicationStatusDelivered],
		PendingMedications:   meds[model.MedicationStatusPending],
	}, nil
}

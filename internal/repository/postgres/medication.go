package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/dispensing-api/internal/model"
	"github.com/jwalitptl/dispensing-api/internal/repository"
)

const medicationColumns = `id, patient_id, name, dosage, frequency, status, request_date, delivery_date`

type medicationRepository struct {
	BaseRepository
}

func NewMedicationRepository(base BaseRepository) repository.MedicationRepository {
	return &medicationRepository{base}
}

// List returns medications with the given status whose name or patient ID
// contains the search term, ignoring case.
func (r *medicationRepository) List(ctx context.Context, status string, filter *model.MedicationFilter) ([]*model.Medication, error) {
	query := `SELECT ` + medicationColumns + ` FROM medications WHERE status = $1`
	args := []interface{}{status}

	if filter != nil {
		if term := strings.TrimSpace(filter.SearchTerm); term != "" {
			args = append(args, "%"+escapeLike(term)+"%")
			query += " AND (name ILIKE $2 OR patient_id ILIKE $2)"
		}
	}

	order := "request_date DESC"
	if status == model.MedicationStatusDelivered {
		order = "delivery_date DESC"
	}
	query += " ORDER BY " + order + ", id ASC"

	meds := []*model.Medication{}
	if err := r.db.SelectContext(ctx, &meds, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	return meds, nil
}

func (r *medicationRepository) Get(ctx context.Context, id string) (*model.Medication, error) {
	query := `SELECT ` + medicationColumns + ` FROM medications WHERE id = $1`

	var med model.Medication
	if err := r.db.GetContext(ctx, &med, query, id); err != nil {
		return nil, fmt.Errorf("failed to get medication: %w", translate(err))
	}
	return &med, nil
}

// MarkDelivered moves a pending medication to delivered. A medication that is
// not pending reports ErrNotFound.
func (r *medicationRepository) MarkDelivered(ctx context.Context, id string, at time.Time, event *model.OutboxEvent) error {
	query := `
		UPDATE medications SET status = $1, delivery_date = $2
		WHERE id = $3 AND status = $4
	`

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, query,
			model.MedicationStatusDelivered, at, id, model.MedicationStatusPending)
		if err != nil {
			return err
		}
		if err := mustAffect(result); err != nil {
			return err
		}
		if event != nil {
			return insertOutboxTx(ctx, tx, event)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to mark medication delivered: %w", err)
	}
	return nil
}

func (r *medicationRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	return countByStatus(ctx, r.db, `SELECT status, COUNT(*) AS count FROM medications GROUP BY status`)
}

package lookup

import (
	"context"
	"strings"

	"github.com/jwalitptl/dispensing-api/internal/model"
)

// StaticDirectory answers searches from a fixed list. It backs development
// setups and tests where the remote API is not reachable.
type StaticDirectory struct {
	records []model.PatientRecord
}

func NewStaticDirectory(records []model.PatientRecord) *StaticDirectory {
	return &StaticDirectory{records: records}
}

// NewSeedDirectory returns the directory with the demo patients.
func NewSeedDirectory() *StaticDirectory {
	return NewStaticDirectory(SeedPatients())
}

func (d *StaticDirectory) Search(ctx context.Context, q Query) ([]model.PatientRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := []model.PatientRecord{}
	invoice := strings.TrimSpace(q.InvoiceNumber)
	nationalID := strings.TrimSpace(q.NationalID)
	for _, r := range d.records {
		if (invoice != "" && r.InvoiceNumber == invoice) || (nationalID != "" && r.NationalID == nationalID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func SeedPatients() []model.PatientRecord {
	return []model.PatientRecord{
		{
			NationalID:    "1098765432",
			FullName:      "Maria Alejandra Rodriguez Gomez",
			Address:       "Calle 123 #45-67",
			City:          "Bogotá",
			Insurer:       "Sanitas EPS",
			InvoiceNumber: "MSD-001",
		},
		{
			NationalID:    "0987654321",
			FullName:      "Carlos Andrés Martínez López",
			Address:       "Carrera 45 #12-34",
			City:          "Medellín",
			Insurer:       "Nueva EPS",
			InvoiceNumber: "MSD-002",
		},
		{
			NationalID:    "5678901234",
			FullName:      "Ana María Pérez Sánchez",
			Address:       "Avenida 67 #89-12",
			City:          "Cali",
			Insurer:       "Compensar EPS",
			InvoiceNumber: "MSD-003",
		},
	}
}

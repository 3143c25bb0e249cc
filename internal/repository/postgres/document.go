package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/dispensing-api/internal/model"
	"github.com/jwalitptl/dispensing-api/internal/repository"
)

const documentColumns = `id, reference, submission_id, patient_id, patient_name, invoice_number, category,
	status, file_name, content_type, size_bytes, width, height, saved_by, position, created_at, updated_at`

type documentRepository struct {
	BaseRepository
}

func NewDocumentRepository(base BaseRepository) repository.DocumentRepository {
	return &documentRepository{base}
}

// CreateBatch inserts the documents of one submission, their files and the
// announcing event atomically.
func (r *documentRepository) CreateBatch(ctx context.Context, docs []*model.Document, files []*model.DocumentFile, event *model.OutboxEvent) error {
	if len(docs) != len(files) {
		return fmt.Errorf("documents and files differ in length: %d != %d", len(docs), len(files))
	}

	insertDoc := `
		INSERT INTO documents (
			id, submission_id, patient_id, patient_name, invoice_number, category,
			status, file_name, content_type, size_bytes, width, height, saved_by, position,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING reference
	`
	insertFile := `INSERT INTO document_files (document_id, content_type, data) VALUES ($1, $2, $3)`

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		for i, d := range docs {
			if d.ID == uuid.Nil {
				d.ID = uuid.New()
			}
			d.CreatedAt = now
			d.UpdatedAt = now

			if err := tx.QueryRowxContext(ctx, insertDoc,
				d.ID, d.SubmissionID, d.PatientID, d.PatientName, d.InvoiceNumber, d.Category,
				d.Status, d.FileName, d.ContentType, d.SizeBytes, d.Width, d.Height, d.SavedBy, d.Position,
				d.CreatedAt, d.UpdatedAt,
			).Scan(&d.Reference); err != nil {
				return fmt.Errorf("failed to insert document: %w", err)
			}

			files[i].DocumentID = d.ID
			if _, err := tx.ExecContext(ctx, insertFile, d.ID, files[i].ContentType, files[i].Data); err != nil {
				return fmt.Errorf("failed to insert document file: %w", err)
			}
		}

		if event != nil {
			if err := insertOutboxTx(ctx, tx, event); err != nil {
				return fmt.Errorf("failed to insert outbox event: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create documents: %w", err)
	}
	return nil
}

func (r *documentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	var doc model.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, fmt.Errorf("failed to get document: %w", translate(err))
	}
	return doc.WithType(), nil
}

func (r *documentRepository) GetFile(ctx context.Context, id uuid.UUID) (*model.DocumentFile, error) {
	query := `SELECT document_id, content_type, data FROM document_files WHERE document_id = $1`

	var file model.DocumentFile
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		return nil, fmt.Errorf("failed to get document file: %w", translate(err))
	}
	return &file, nil
}

// List returns documents whose national ID or MSD contains the term. An empty
// term lists everything.
func (r *documentRepository) List(ctx context.Context, filter *model.DocumentFilter) ([]*model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	var args []interface{}

	if filter != nil {
		if term := strings.TrimSpace(filter.Term); term != "" {
			column := "invoice_number"
			if filter.Kind == model.SearchByNationalID {
				column = "patient_id"
			}
			args = append(args, term)
			query += fmt.Sprintf(" WHERE strpos(%s, $1) > 0", column)
		}
	}
	query += " ORDER BY created_at DESC, position ASC"

	docs := []*model.Document{}
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	for _, d := range docs {
		d.WithType()
	}
	return docs, nil
}

func (r *documentRepository) Delete(ctx context.Context, id uuid.UUID, event *model.OutboxEvent) error {
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
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
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// AttachFile stores the file of a pending document and marks it complete.
func (r *documentRepository) AttachFile(ctx context.Context, doc *model.Document, file *model.DocumentFile) error {
	update := `
		UPDATE documents SET
			status = $1, file_name = $2, content_type = $3, size_bytes = $4,
			width = $5, height = $6, updated_at = $7
		WHERE id = $8 AND status = $9
	`
	upsert := `
		INSERT INTO document_files (document_id, content_type, data) VALUES ($1, $2, $3)
		ON CONFLICT (document_id) DO UPDATE SET content_type = EXCLUDED.content_type, data = EXCLUDED.data
	`

	doc.UpdatedAt = time.Now().UTC()
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, update,
			model.DocumentStatusComplete, doc.FileName, doc.ContentType, doc.SizeBytes,
			doc.Width, doc.Height, doc.UpdatedAt, doc.ID, model.DocumentStatusPending,
		)
		if err != nil {
			return err
		}
		if err := mustAffect(result); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, upsert, doc.ID, file.ContentType, file.Data)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to attach document file: %w", err)
	}
	doc.Status = model.DocumentStatusComplete
	return nil
}

func (r *documentRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	return countByStatus(ctx, r.db, `SELECT status, COUNT(*) AS count FROM documents GROUP BY status`)
}

type statusCount struct {
	Status string `db:"status"`
	Count  int    `db:"count"`
}

func countByStatus(ctx context.Context, db *sqlx.DB, query string) (map[string]int, error) {
	var rows []statusCount
	if err := db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

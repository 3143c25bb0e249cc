package document

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/jwalitptl/dispensing-api/internal/model"
)

// Persist stores every file of a capture submission as a document, together
// with a DOCUMENTS_SAVED event, in one transaction. It implements
// capture.Persister.
func (s *Service) Persist(ctx context.Context, sub *model.Submission) (*model.SaveReceipt, error) {
	status := model.DocumentStatusComplete
	if sub.PendingDelivery {
		status = model.DocumentStatusPending
	}

	var savedBy *uuid.UUID
	if sub.SavedBy != uuid.Nil {
		savedBy = &sub.SavedBy
	}
	submissionID := sub.ID

	docs := make([]*model.Document, 0, len(sub.Files))
	files := make([]*model.DocumentFile, 0, len(sub.Files))
	ids := make([]uuid.UUID, 0, len(sub.Files))
	for _, f := range sub.Files {
		id := uuid.New()
		sealed, err := s.encryptor.Encrypt(f.Data, id[:])
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt %s: %w", f.Category, err)
		}

		docs = append(docs, &model.Document{
			Base:          model.Base{ID: id},
			SubmissionID:  &submissionID,
			PatientID:     sub.Patient.NationalID,
			PatientName:   sub.Patient.FullName,
			InvoiceNumber: sub.Patient.InvoiceNumber,
			Category:      f.Category,
			Status:        status,
			FileName:      fileName(f),
			ContentType:   f.ContentType,
			SizeBytes:     int64(len(f.Data)),
			Width:         f.Width,
			Height:        f.Height,
			SavedBy:       savedBy,
			Position:      f.Position,
		})
		files = append(files, &model.DocumentFile{DocumentID: id, ContentType: f.ContentType, Data: sealed})
		ids = append(ids, id)
	}

	event, err := model.NewOutboxEvent(model.EventDocumentsSaved, model.DocumentsSavedPayload{
		SubmissionID:    sub.ID,
		PatientID:       sub.Patient.NationalID,
		InvoiceNumber:   sub.Patient.InvoiceNumber,
		DocumentIDs:     ids,
		PendingDelivery: sub.PendingDelivery,
		SavedBy:         sub.SavedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build event: %w", err)
	}

	if err := s.repo.CreateBatch(ctx, docs, files, event); err != nil {
		return nil, err
	}

	refs := make([]string, 0, len(docs))
	for _, d := range docs {
		refs = append(refs, d.Reference)
	}
	s.logger.Info("submission stored",
		"submission_id", sub.ID.String(),
		"patient_id", sub.Patient.NationalID,
		"documents", len(docs),
		"status", status)

	return &model.SaveReceipt{
		SubmissionID: sub.ID,
		DocumentIDs:  ids,
		References:   refs,
		Status:       status,
	}, nil
}

func fileName(f model.SubmissionFile) string {
	if f.FileName != "" {
		return filepath.Base(f.FileName)
	}
	ext := ".png"
	if f.ContentType == "application/pdf" {
		ext = ".pdf"
	}
	if f.Category.Multiple() {
		return fmt.Sprintf("%s-%d%s", f.Category, f.Position+1, ext)
	}
	return string(f.Category) + ext
}

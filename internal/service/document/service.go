package document

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/dispensing-api/internal/capture"
	"github.com/jwalitptl/dispensing-api/internal/model"
	"github.com/jwalitptl/dispensing-api/internal/repository"
	apperrors "github.com/jwalitptl/dispensing-api/pkg/errors"
	"github.com/jwalitptl/dispensing-api/pkg/logger"
	"github.com/jwalitptl/dispensing-api/pkg/security"
)

var ErrNotPending = errors.New("document is not pending")

// ConsultationResult is the answer of a consultation search. Searched is false
// when no term was given.
type ConsultationResult struct {
	Searched  bool              `json:"searched"`
	Kind      model.SearchKind  `json:"type"`
	Term      string            `json:"term"`
	Documents []*model.Document `json:"documents"`
}

type Service struct {
	repo      repository.DocumentRepository
	encryptor security.Encryptor
	maxUpload int64
	logger    *logger.Logger
}

func NewService(repo repository.DocumentRepository, encryptor security.Encryptor, maxUpload int64, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:      repo,
		encryptor: encryptor,
		maxUpload: maxUpload,
		logger:    log,
	}
}

// Consult searches saved documents by national ID or MSD. An empty term is not
// a search: it returns no documents and Searched false.
func (s *Service) Consult(ctx context.Context, kind model.SearchKind, term string) (*ConsultationResult, error) {
	if kind == "" {
		kind = model.SearchByNationalID
	}
	if !kind.Valid() {
		return nil, apperrors.BadRequest("invalid search type", nil)
	}

	term = strings.TrimSpace(term)
	result := &ConsultationResult{Kind: kind, Term: term, Documents: []*model.Document{}}
	if term == "" {
		return result, nil
	}

	docs, err := s.repo.List(ctx, &model.DocumentFilter{Kind: kind, Term: term})
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	result.Searched = true
	result.Documents = docs
	return result, nil
}

// List returns saved documents. An empty filter term lists everything.
func (s *Service) List(ctx context.Context, filter *model.DocumentFilter) ([]*model.Document, error) {
	if filter != nil && filter.Kind != "" && !filter.Kind.Valid() {
		return nil, apperrors.BadRequest("invalid search type", nil)
	}
	docs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return doc, nil
}

// File returns the decrypted content of a document.
func (s *Service) File(ctx context.Context, id uuid.UUID) (*model.Document, []byte, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, mapError(err)
	}
	file, err := s.repo.GetFile(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperrors.NotFound("document file", err)
		}
		return nil, nil, err
	}

	data, err := s.encryptor.Decrypt(file.Data, id[:])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt document %s: %w", id, err)
	}
	return doc, data, nil
}

func (s *Service) Delete(ctx context.Context, id, actor uuid.UUID) error {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return mapError(err)
	}

	event, err := model.NewOutboxEvent(model.EventDocumentDeleted, model.DocumentDeletedPayload{
		DocumentID:    doc.ID,
		Reference:     doc.Reference,
		InvoiceNumber: doc.InvoiceNumber,
		DeletedBy:     actor,
	})
	if err != nil {
		return fmt.Errorf("failed to build event: %w", err)
	}

	if err := s.repo.Delete(ctx, id, event); err != nil {
		return mapError(err)
	}
	s.logger.Info("document deleted", "document_id", id.String(), "reference", doc.Reference, "deleted_by", actor.String())
	return nil
}

// Attach stores an uploaded file for a pending document and marks it complete.
func (s *Service) Attach(ctx context.Context, id uuid.UUID, fileName string, data []byte) (*model.Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	if doc.Status != model.DocumentStatusPending {
		return nil, apperrors.Conflict("document is not pending", ErrNotPending)
	}

	info, err := capture.InspectFile(data, s.maxUpload)
	if err != nil {
		return nil, apperrors.Unprocessable(err.Error(), err)
	}

	sealed, err := s.encryptor.Encrypt(data, id[:])
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt document: %w", err)
	}

	doc.FileName = fileName
	doc.ContentType = info.ContentType
	doc.SizeBytes = int64(len(data))
	doc.Width, doc.Height = info.Width, info.Height

	err = s.repo.AttachFile(ctx, doc, &model.DocumentFile{DocumentID: id, ContentType: info.ContentType, Data: sealed})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Conflict("document is not pending", ErrNotPending)
		}
		return nil, err
	}
	return doc.WithType(), nil
}

// Summary counts documents by status.
func (s *Service) Counts(ctx context.Context) (map[string]int, error) {
	return s.repo.CountByStatus(ctx)
}

func mapError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("document", err)
	}
	return err
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// Category is one of the fixed document slots of a dispensation.
type Category string

const (
	CategoryAuthorization Category = "autorizacion"
	CategoryIDCard        Category = "cedula"
	CategoryFormula       Category = "formula"
	CategoryMSD           Category = "msd"
)

// Categories lists every slot in display order.
var Categories = []Category{CategoryAuthorization, CategoryIDCard, CategoryFormula, CategoryMSD}

// MandatoryCategories must each hold an artifact before a save is accepted.
var MandatoryCategories = []Category{CategoryIDCard, CategoryFormula, CategoryMSD}

func (c Category) Valid() bool {
	switch c {
	case CategoryAuthorization, CategoryIDCard, CategoryFormula, CategoryMSD:
		return true
	}
	return false
}

// Multiple reports whether the slot keeps an ordered list instead of a single artifact.
func (c Category) Multiple() bool {
	return c == CategoryMSD
}

// Label is the name shown to operators.
func (c Category) Label() string {
	switch c {
	case CategoryAuthorization:
		return "Autorización"
	case CategoryIDCard:
		return "Cédula"
	case CategoryFormula:
		return "Fórmula Médica"
	case CategoryMSD:
		return "MSD"
	}
	return string(c)
}

// Document status values
const (
	DocumentStatusComplete = "Completo"
	DocumentStatusPending  = "Pendiente"
)

// Document is a saved dispensation document.
type Document struct {
	Base
	// Reference is the human readable code, e.g. DOC-001.
	Reference     string     `json:"reference" db:"reference"`
	SubmissionID  *uuid.UUID `json:"submission_id,omitempty" db:"submission_id"`
	PatientID     string     `json:"patient_id" db:"patient_id"`
	PatientName   string     `json:"patient_name" db:"patient_name"`
	InvoiceNumber string     `json:"msd" db:"invoice_number"`
	Category      Category   `json:"category" db:"category"`
	Type          string     `json:"type" db:"-"`
	Status        string     `json:"status" db:"status"`
	FileName      string     `json:"file_name" db:"file_name"`
	ContentType   string     `json:"content_type" db:"content_type"`
	SizeBytes     int64      `json:"size_bytes" db:"size_bytes"`
	Width         int        `json:"width,omitempty" db:"width"`
	Height        int        `json:"height,omitempty" db:"height"`
	SavedBy       *uuid.UUID `json:"saved_by,omitempty" db:"saved_by"`
	Position      int        `json:"position" db:"position"`
}

// WithType fills the display label of the category.
func (d *Document) WithType() *Document {
	d.Type = d.Category.Label()
	return d
}

// DocumentFile is the stored content of a document.
type DocumentFile struct {
	DocumentID  uuid.UUID `db:"document_id"`
	ContentType string    `db:"content_type"`
	Data        []byte    `db:"data"`
}

// DocumentFilter selects saved documents by national ID or MSD substring.
type DocumentFilter struct {
	Kind SearchKind `form:"type"`
	Term string     `form:"q"`
}

// Submission is everything persisted by one successful capture save.
type Submission struct {
	ID              uuid.UUID
	Patient         PatientRecord
	SavedBy         uuid.UUID
	PendingDelivery bool
	Files           []SubmissionFile
	CreatedAt       time.Time
}

// SubmissionFile is one artifact of a Submission.
type SubmissionFile struct {
	Category    Category
	Position    int
	FileName    string
	ContentType string
	Width       int
	Height      int
	Data        []byte
}

// SaveReceipt acknowledges a persisted submission.
type SaveReceipt struct {
	SubmissionID uuid.UUID   `json:"submission_id"`
	DocumentIDs  []uuid.UUID `json:"document_ids"`
	References   []string    `json:"references"`
	Status       string      `json:"status"`
}

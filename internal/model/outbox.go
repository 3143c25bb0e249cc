package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusProcessed  OutboxStatus = "processed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// Outbox event types
const (
	EventDocumentsSaved   = "DOCUMENTS_SAVED"
	EventDocumentDeleted  = "DOCUMENT_DELETED"
	EventMedicationIssued = "MEDICATION_DELIVERED"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       string          `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// DocumentsSavedPayload is the body of a DOCUMENTS_SAVED event.
type DocumentsSavedPayload struct {
	SubmissionID    uuid.UUID   `json:"submission_id"`
	PatientID       string      `json:"patient_id"`
	InvoiceNumber   string      `json:"invoice_number"`
	DocumentIDs     []uuid.UUID `json:"document_ids"`
	PendingDelivery bool        `json:"pending_delivery"`
	SavedBy         uuid.UUID   `json:"saved_by"`
}

// DocumentDeletedPayload is the body of a DOCUMENT_DELETED event.
type DocumentDeletedPayload struct {
	DocumentID    uuid.UUID `json:"document_id"`
	Reference     string    `json:"reference"`
	InvoiceNumber string    `json:"invoice_number"`
	DeletedBy     uuid.UUID `json:"deleted_by"`
}

// MedicationDeliveredPayload is the body of a MEDICATION_DELIVERED event.
type MedicationDeliveredPayload struct {
	MedicationID string    `json:"medication_id"`
	PatientID    string    `json:"patient_id"`
	DeliveredBy  uuid.UUID `json:"delivered_by"`
	DeliveredAt  time.Time `json:"delivered_at"`
}

// NewOutboxEvent marshals payload into a pending event.
func NewOutboxEvent(eventType string, payload interface{}) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   data,
		Status:    string(OutboxStatusPending),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

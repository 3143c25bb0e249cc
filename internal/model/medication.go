package model

import "time"

const (
	MedicationStatusDelivered = "Entregado"
	MedicationStatusPending   = "Pendiente"
)

// Medication is one dispensation line, either delivered or awaiting delivery.
type Medication struct {
	ID           string     `json:"id" db:"id"`
	PatientID    string     `json:"patient_id" db:"patient_id"`
	Name         string     `json:"name" db:"name"`
	Dosage       string     `json:"dosage" db:"dosage"`
	Frequency    string     `json:"frequency" db:"frequency"`
	Status       string     `json:"status" db:"status"`
	RequestDate  time.Time  `json:"request_date" db:"request_date"`
	DeliveryDate *time.Time `json:"delivery_date,omitempty" db:"delivery_date"`
}

// MedicationFilter narrows a medication list.
type MedicationFilter struct {
	BaseFilter
}

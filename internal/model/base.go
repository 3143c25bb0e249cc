package model

import (
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for persisted models
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// BaseFilter contains common filter fields
type BaseFilter struct {
	SearchTerm string `json:"search_term" form:"q"`
	Status     string `json:"status" form:"status"`
}

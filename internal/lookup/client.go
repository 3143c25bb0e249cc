// Package lookup finds patient records by invoice (MSD) number or national ID.
package lookup

import (
	"context"
	"errors"
	"strings"

	"github.com/jwalitptl/dispensing-api/internal/model"
)

var (
	ErrInvalidQuery = errors.New("exactly one of invoice number or national id is required")
	ErrUpstream     = errors.New("patient lookup unavailable")
)

// Query names the search key. Exactly one field is set.
type Query struct {
	InvoiceNumber string
	NationalID    string
}

// NewQuery builds the query for a search kind and term.
func NewQuery(kind model.SearchKind, term string) (Query, error) {
	term = strings.TrimSpace(term)
	switch kind {
	case model.SearchByInvoice:
		return Query{InvoiceNumber: term}, nil
	case model.SearchByNationalID:
		return Query{NationalID: term}, nil
	}
	return Query{}, ErrInvalidQuery
}

// Validate reports ErrInvalidQuery unless exactly one key is non-empty.
func (q Query) Validate() error {
	hasInvoice := strings.TrimSpace(q.InvoiceNumber) != ""
	hasNationalID := strings.TrimSpace(q.NationalID) != ""
	if hasInvoice == hasNationalID {
		return ErrInvalidQuery
	}
	return nil
}

// Kind returns the key type carried by q.
func (q Query) Kind() model.SearchKind {
	if q.InvoiceNumber != "" {
		return model.SearchByInvoice
	}
	return model.SearchByNationalID
}

func (q Query) key() string {
	if q.InvoiceNumber != "" {
		return "invoice:" + q.InvoiceNumber
	}
	return "national_id:" + q.NationalID
}

// Client searches patient records. Zero matches is an empty slice, not an error.
type Client interface {
	Search(ctx context.Context, q Query) ([]model.PatientRecord, error)
}

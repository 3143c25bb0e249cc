package model

// PatientRecord is a read-only patient row returned by the lookup API.
type PatientRecord struct {
	NationalID    string `json:"national_id"`
	FullName      string `json:"full_name"`
	Address       string `json:"address"`
	City          string `json:"city,omitempty"`
	Insurer       string `json:"insurer"`
	Pharmacy      string `json:"pharmacy,omitempty"`
	InvoiceNumber string `json:"invoice_number"`
	DocumentType  string `json:"document_type,omitempty"`
	Regimen       string `json:"regimen,omitempty"`
	Physician     string `json:"physician,omitempty"`
	DeliveryType  string `json:"delivery_type,omitempty"`
	Status        string `json:"status,omitempty"`
}

// SearchKind selects the key a patient search runs on.
type SearchKind string

const (
	SearchByInvoice    SearchKind = "invoice"
	SearchByNationalID SearchKind = "national_id"
)

func (k SearchKind) Valid() bool {
	return k == SearchByInvoice || k == SearchByNationalID
}

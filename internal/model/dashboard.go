package model

// DashboardSummary feeds the landing page cards.
type DashboardSummary struct {
	Documents            int `json:"documents"`
	PendingDocuments     int `json:"pending_documents"`
	DeliveredMedications int `json:"delivered_medications"`
	PendingMedications   int `json:"pending_medications"`
}

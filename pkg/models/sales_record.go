package models

import "time"

// SalesRecord is an append-only sales fact. It is never upserted by content:
// re-ingesting the same sheet inserts new rows, deduplication is the caller's
// concern.
type SalesRecord struct {
	SalesRecordID int64     `json:"sales_record_id"`
	EmployeeID    int64     `json:"employee_id"`
	CustomerID    int64     `json:"customer_id"`
	ProductID     int64     `json:"product_id"`
	SaleAmount    float64   `json:"sale_amount"`
	SaleDate      time.Time `json:"sale_date"`
	CreatedAt     time.Time `json:"created_at"`
}

// InteractionLog is an append-only record of an employee-customer contact.
type InteractionLog struct {
	InteractionID   int64     `json:"interaction_id"`
	EmployeeID      int64     `json:"employee_id"`
	CustomerID      int64     `json:"customer_id"`
	InteractionType *string   `json:"interaction_type,omitempty"`
	Summary         *string   `json:"summary,omitempty"`
	Sentiment       *string   `json:"sentiment,omitempty"`
	ComplianceRisk  *string   `json:"compliance_risk,omitempty"`
	InteractedAt    time.Time `json:"interacted_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// Assignment maps an employee to a customer they are responsible for.
// Pure relation with a composite key, no attributes.
type Assignment struct {
	EmployeeID int64     `json:"employee_id"`
	CustomerID int64     `json:"customer_id"`
	CreatedAt  time.Time `json:"created_at"`
}

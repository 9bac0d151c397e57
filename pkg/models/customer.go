package models

import "time"

// Customer is a medical institution. The uniqueness key is
// (customer_name, address), not name alone: the same clinic name in two
// districts is two distinct customers.
type Customer struct {
	CustomerID    int64     `json:"customer_id"`
	CustomerName  string    `json:"customer_name"`
	Address       *string   `json:"address,omitempty"`
	DoctorName    *string   `json:"doctor_name,omitempty"`
	TotalPatients *int64    `json:"total_patients,omitempty"`
	CustomerGrade *string   `json:"customer_grade,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

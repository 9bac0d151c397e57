package models

import "time"

// Product is a pharmaceutical product. ProductName is globally unique.
type Product struct {
	ProductID   int64     `json:"product_id"`
	ProductName string    `json:"product_name"`
	Description *string   `json:"description,omitempty"`
	Category    *string   `json:"category,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

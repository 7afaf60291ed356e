package schema

import (
	"fmt"
	"time"
)

// Sale records a completed sale of a single product.
//
// UnitPrice and TotalPrice are derived from the product at the moment of
// sale and never change afterwards, even if the product's price does.
// Creating a sale atomically decrements the referenced product's quantity
// in the same local transaction.
type Sale struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`

	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`

	CustomerName  string `json:"customer_name,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Synced bool   `json:"synced"`
	UserID string `json:"user_id"`
}

// Validate checks if the Sale has valid field values.
func (s *Sale) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.ProductID == "" {
		return fmt.Errorf("product_id is required")
	}
	if s.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if s.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive (got %d)", s.Quantity)
	}
	if s.UnitPrice < 0 || s.TotalPrice < 0 {
		return fmt.Errorf("prices must not be negative")
	}
	if s.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (s *Sale) SetDefaults() {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}
}

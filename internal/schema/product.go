// Package schema defines the business entities held in the local store:
// products, sales, and the queue items that record pending mutations
// awaiting delivery to the remote store.
package schema

import (
	"fmt"
	"time"
)

// Product is a stock item owned by a single user.
//
// The id is client-generated and stable across sync, so a product created
// offline keeps its identity once it reaches the remote store. Synced is
// true only when the last committed local state matches what was last
// confirmed written remotely.
type Product struct {
	ID string `json:"id"`

	Name     string `json:"name"`
	SKU      string `json:"sku,omitempty"`
	Category string `json:"category,omitempty"`
	Supplier string `json:"supplier,omitempty"`

	// Quantity never goes negative; writes clamp at zero.
	Quantity          int     `json:"quantity"`
	PurchasePrice     float64 `json:"purchase_price"`
	SellingPrice      float64 `json:"selling_price"`
	GST               float64 `json:"gst"` // percent, 0-100
	LowStockThreshold int     `json:"low_stock_threshold"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Synced bool   `json:"synced"`
	UserID string `json:"user_id"`
}

// Validate checks if the Product has valid field values.
func (p *Product) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if p.Quantity < 0 {
		return fmt.Errorf("quantity must not be negative (got %d)", p.Quantity)
	}
	if p.PurchasePrice < 0 || p.SellingPrice < 0 {
		return fmt.Errorf("prices must not be negative")
	}
	if p.GST < 0 || p.GST > 100 {
		return fmt.Errorf("gst must be between 0 and 100 (got %v)", p.GST)
	}
	if p.LowStockThreshold < 0 {
		return fmt.Errorf("low_stock_threshold must not be negative (got %d)", p.LowStockThreshold)
	}
	if p.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if p.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (p *Product) SetDefaults() {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
}

// Touch sets UpdatedAt to the current time. Call on every local mutation.
func (p *Product) Touch() {
	p.UpdatedAt = time.Now().UTC()
}

// LowOnStock reports whether the quantity has fallen to or below the
// product's own threshold.
func (p *Product) LowOnStock() bool {
	return p.Quantity <= p.LowStockThreshold
}

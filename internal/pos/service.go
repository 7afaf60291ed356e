// Package pos is the domain-facing surface of the application: the
// operations a point-of-sale UI calls. Every write commits locally first
// and then nudges the sync engine; callers never wait on the network.
package pos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"stockpilot/internal/engine"
	"stockpilot/internal/schema"
	"stockpilot/internal/store"
)

// ErrInvalidInput marks a request rejected before touching the store.
var ErrInvalidInput = errors.New("invalid input")

// Syncer is the slice of the engine the service needs. Satisfied by
// *engine.Engine; tests substitute a stub.
type Syncer interface {
	ForceSync()
	Status(ctx context.Context) (engine.Status, error)
}

// Service implements the business operations on top of the local store.
type Service struct {
	store  *store.DB
	syncer Syncer
	userID string
	logger *zap.Logger
}

// NewService creates a service for one user. A nil syncer disables the
// post-write sync nudge; writes still commit locally.
func NewService(db *store.DB, syncer Syncer, userID string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.L()
	}
	return &Service{
		store:  db,
		syncer: syncer,
		userID: userID,
		logger: logger,
	}
}

// ProductInput carries the caller-supplied fields for a new product.
type ProductInput struct {
	Name              string  `json:"name"`
	SKU               string  `json:"sku"`
	Category          string  `json:"category"`
	Supplier          string  `json:"supplier"`
	Quantity          int     `json:"quantity"`
	PurchasePrice     float64 `json:"purchase_price"`
	SellingPrice      float64 `json:"selling_price"`
	GST               float64 `json:"gst"`
	LowStockThreshold int     `json:"low_stock_threshold"`
}

// ProductPatch holds partial updates for an existing product. Nil fields
// are left unchanged.
type ProductPatch struct {
	Name              *string  `json:"name,omitempty"`
	SKU               *string  `json:"sku,omitempty"`
	Category          *string  `json:"category,omitempty"`
	Supplier          *string  `json:"supplier,omitempty"`
	Quantity          *int     `json:"quantity,omitempty"`
	PurchasePrice     *float64 `json:"purchase_price,omitempty"`
	SellingPrice      *float64 `json:"selling_price,omitempty"`
	GST               *float64 `json:"gst,omitempty"`
	LowStockThreshold *int     `json:"low_stock_threshold,omitempty"`
}

// SaleInput carries the caller-supplied fields for a new sale. The unit
// price comes from the product, not the caller.
type SaleInput struct {
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
}

// AddProduct creates a product with a fresh client-generated id, commits
// it locally, and queues it for sync.
func (s *Service) AddProduct(ctx context.Context, in ProductInput) (*schema.Product, error) {
	p := &schema.Product{
		ID:                uuid.NewString(),
		Name:              in.Name,
		SKU:               in.SKU,
		Category:          in.Category,
		Supplier:          in.Supplier,
		Quantity:          in.Quantity,
		PurchasePrice:     in.PurchasePrice,
		SellingPrice:      in.SellingPrice,
		GST:               in.GST,
		LowStockThreshold: in.LowStockThreshold,
		UserID:            s.userID,
	}
	p.SetDefaults()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.store.UpsertProduct(ctx, p, true); err != nil {
		return nil, err
	}
	s.logger.Info("product added", zap.String("product", p.ID), zap.String("name", p.Name))
	s.nudge()
	return p, nil
}

// UpdateProduct applies a partial update to an existing product.
func (s *Service) UpdateProduct(ctx context.Context, id string, patch ProductPatch) (*schema.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.SKU != nil {
		p.SKU = *patch.SKU
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Supplier != nil {
		p.Supplier = *patch.Supplier
	}
	if patch.Quantity != nil {
		p.Quantity = *patch.Quantity
	}
	if patch.PurchasePrice != nil {
		p.PurchasePrice = *patch.PurchasePrice
	}
	if patch.SellingPrice != nil {
		p.SellingPrice = *patch.SellingPrice
	}
	if patch.GST != nil {
		p.GST = *patch.GST
	}
	if patch.LowStockThreshold != nil {
		p.LowStockThreshold = *patch.LowStockThreshold
	}
	p.Touch()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.store.UpsertProduct(ctx, p, true); err != nil {
		return nil, err
	}
	s.nudge()
	return p, nil
}

// DeleteProduct removes a product locally and queues the delete. Sales
// referencing it are kept for history.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id, true); err != nil {
		return err
	}
	s.logger.Info("product deleted", zap.String("product", id))
	s.nudge()
	return nil
}

// GetProduct returns one product by id.
func (s *Service) GetProduct(ctx context.Context, id string) (*schema.Product, error) {
	return s.store.GetProduct(ctx, id)
}

// ListProducts returns all of the user's products, most recently created
// first.
func (s *Service) ListProducts(ctx context.Context) ([]*schema.Product, error) {
	return s.store.ListProducts(ctx, s.userID)
}

// SearchProducts matches the term against name, SKU, and category.
func (s *Service) SearchProducts(ctx context.Context, term string) ([]*schema.Product, error) {
	return s.store.SearchProducts(ctx, s.userID, term)
}

// ProductsByCategory returns the user's products in one category.
func (s *Service) ProductsByCategory(ctx context.Context, category string) ([]*schema.Product, error) {
	return s.store.ProductsByCategory(ctx, s.userID, category)
}

// LowStockProducts returns products at or below their own threshold.
func (s *Service) LowStockProducts(ctx context.Context) ([]*schema.Product, error) {
	return s.store.LowStockProducts(ctx, s.userID)
}

// AddSale records a sale. The product's current selling price fixes the
// unit price, and the product's stock is decremented in the same local
// transaction. Fails with store.ErrInsufficientStock when stock doesn't
// cover the quantity.
func (s *Service) AddSale(ctx context.Context, in SaleInput) (*schema.Sale, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive (got %d)", ErrInvalidInput, in.Quantity)
	}
	p, err := s.store.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}

	sale := &schema.Sale{
		ID:            uuid.NewString(),
		ProductID:     in.ProductID,
		Quantity:      in.Quantity,
		UnitPrice:     p.SellingPrice,
		TotalPrice:    p.SellingPrice * float64(in.Quantity),
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,
		UserID:        s.userID,
	}
	sale.SetDefaults()
	if err := sale.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.store.CreateSale(ctx, sale); err != nil {
		return nil, err
	}
	s.logger.Info("sale recorded",
		zap.String("sale", sale.ID),
		zap.String("product", sale.ProductID),
		zap.Int("quantity", sale.Quantity),
		zap.Float64("total", sale.TotalPrice))
	s.nudge()
	return sale, nil
}

// DeleteSale removes a sale locally and queues the delete. Stock is not
// restored; a deletion corrects the record, not the shelf.
func (s *Service) DeleteSale(ctx context.Context, id string) error {
	if err := s.store.DeleteSale(ctx, id, true); err != nil {
		return err
	}
	s.nudge()
	return nil
}

// ListSales returns all of the user's sales, most recent first.
func (s *Service) ListSales(ctx context.Context) ([]*schema.Sale, error) {
	return s.store.ListSales(ctx, s.userID)
}

// RecentSales returns the latest sales joined with product names.
func (s *Service) RecentSales(ctx context.Context, limit int) ([]*store.SaleWithProduct, error) {
	return s.store.RecentSales(ctx, s.userID, limit)
}

// SalesByDateRange returns sales created in [from, to).
func (s *Service) SalesByDateRange(ctx context.Context, from, to time.Time) ([]*store.SaleWithProduct, error) {
	return s.store.SalesByDateRange(ctx, s.userID, from, to)
}

// SalesSummary aggregates count, revenue, and average order value.
func (s *Service) SalesSummary(ctx context.Context) (*store.Summary, error) {
	return s.store.SalesSummary(ctx, s.userID)
}

// DailySales returns per-day sales buckets for the last n days.
func (s *Service) DailySales(ctx context.Context, days int) ([]*store.DailyBucket, error) {
	return s.store.DailySales(ctx, s.userID, days)
}

// SyncStatus reports connectivity, queue depth, dead letters, and the
// last successful sync time.
func (s *Service) SyncStatus(ctx context.Context) (engine.Status, error) {
	if s.syncer == nil {
		return engine.Status{}, errors.New("sync engine not configured")
	}
	return s.syncer.Status(ctx)
}

// nudge asks the engine to sync soon. Never blocks, never fails.
func (s *Service) nudge() {
	if s.syncer != nil {
		s.syncer.ForceSync()
	}
}

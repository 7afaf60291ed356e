// Package remote is the client side of the authoritative remote store.
//
// All operations are idempotent upserts and deletes scoped to a user, so
// at-least-once redelivery by the sync engine is safe. Errors are
// classified into NetworkError (retryable) and RejectionError (terminal);
// the sync engine's retry policy depends on that distinction.
package remote

import (
	"context"

	"stockpilot/internal/schema"
)

// API is the remote operations the sync engine consumes. The production
// implementation is Client; tests substitute fakes.
type API interface {
	// FetchProducts returns the authoritative product set for the user.
	FetchProducts(ctx context.Context, userID string) ([]*schema.Product, error)

	// FetchSales returns the authoritative sale set for the user.
	FetchSales(ctx context.Context, userID string) ([]*schema.Sale, error)

	// UpsertProduct creates or replaces a product remotely. Idempotent.
	UpsertProduct(ctx context.Context, p *schema.Product) error

	// UpsertSale creates or replaces a sale remotely. Idempotent.
	UpsertSale(ctx context.Context, s *schema.Sale) error

	// DeleteProduct removes a product remotely. Deleting a product that
	// doesn't exist is not an error.
	DeleteProduct(ctx context.Context, id string) error

	// DeleteSale removes a sale remotely. Idempotent like DeleteProduct.
	DeleteSale(ctx context.Context, id string) error

	// Ping checks reachability. Used by the connectivity monitor's probe.
	Ping(ctx context.Context) error
}

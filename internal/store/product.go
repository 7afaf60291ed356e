package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"stockpilot/internal/schema"
)

// UpsertProduct inserts or updates a product.
//
// When enqueue is true (a locally-originated write) the row is flagged
// unsynced and a matching product-upsert queue item is appended in the
// same transaction. Pull-sourced writes go through MergeProducts instead.
func (db *DB) UpsertProduct(ctx context.Context, p *schema.Product, enqueue bool) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid product: %w", err)
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if enqueue {
			p.Synced = false
		}
		if err := upsertProductRow(ctx, tx, p); err != nil {
			return err
		}
		if !enqueue {
			return nil
		}
		item, err := schema.NewProductUpsertItem(p)
		if err != nil {
			return err
		}
		return appendQueueItem(ctx, tx, item)
	})
}

func upsertProductRow(ctx context.Context, e execer, p *schema.Product) error {
	query := `
	INSERT INTO products (
		id, name, sku, category, supplier, quantity,
		purchase_price, selling_price, gst, low_stock_threshold,
		created_at, updated_at, synced, user_id
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		sku = excluded.sku,
		category = excluded.category,
		supplier = excluded.supplier,
		quantity = excluded.quantity,
		purchase_price = excluded.purchase_price,
		selling_price = excluded.selling_price,
		gst = excluded.gst,
		low_stock_threshold = excluded.low_stock_threshold,
		updated_at = excluded.updated_at,
		synced = excluded.synced,
		user_id = excluded.user_id
	`

	_, err := e.ExecContext(ctx, query,
		p.ID, p.Name, p.SKU, p.Category, p.Supplier, p.Quantity,
		p.PurchasePrice, p.SellingPrice, p.GST, p.LowStockThreshold,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt), boolToInt(p.Synced), p.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
	}
	return nil
}

// DeleteProduct removes a product.
//
// When enqueue is true a product-delete queue item is appended in the
// same transaction so the remote copy is removed too. Returns ErrNotFound
// if the product doesn't exist.
func (db *DB) DeleteProduct(ctx context.Context, id string, enqueue bool) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete product %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to delete product %s: %w", id, err)
		}
		if n == 0 {
			return ErrNotFound
		}
		if !enqueue {
			return nil
		}
		item, err := schema.NewProductDeleteItem(id)
		if err != nil {
			return err
		}
		return appendQueueItem(ctx, tx, item)
	})
}

// GetProduct retrieves a single product by id.
// Returns ErrNotFound if the product doesn't exist.
func (db *DB) GetProduct(ctx context.Context, id string) (*schema.Product, error) {
	row := db.conn.QueryRowContext(ctx, productSelect+" WHERE id = ?", id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// ListProducts returns every product owned by the user, newest first.
func (db *DB) ListProducts(ctx context.Context, userID string) ([]*schema.Product, error) {
	rows, err := db.conn.QueryContext(ctx,
		productSelect+" WHERE user_id = ? ORDER BY created_at DESC, id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// MergeProducts applies an authoritative remote product set.
//
// Remote rows are upserted with synced=true, but a local row that is
// still unsynced (has a pending queue item) is never overwritten and
// never removed; synced local rows absent from the remote set are
// deleted. All of it happens in one transaction, so a racing pull can't
// clobber an un-pushed local edit.
func (db *DB) MergeProducts(ctx context.Context, remote []*schema.Product) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, p := range remote {
			cp := *p
			cp.Synced = true
			if err := mergeProductRow(ctx, tx, &cp); err != nil {
				return err
			}
		}

		query := "DELETE FROM products WHERE synced = 1"
		args := make([]any, 0, len(remote))
		if len(remote) > 0 {
			placeholders := make([]string, len(remote))
			for i, p := range remote {
				placeholders[i] = "?"
				args = append(args, p.ID)
			}
			query += " AND id NOT IN (" + strings.Join(placeholders, ", ") + ")"
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to prune merged products: %w", err)
		}
		return nil
	})
}

// mergeProductRow upserts a remote product without touching local rows
// that still have un-pushed changes.
func mergeProductRow(ctx context.Context, e execer, p *schema.Product) error {
	query := `
	INSERT INTO products (
		id, name, sku, category, supplier, quantity,
		purchase_price, selling_price, gst, low_stock_threshold,
		created_at, updated_at, synced, user_id
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		sku = excluded.sku,
		category = excluded.category,
		supplier = excluded.supplier,
		quantity = excluded.quantity,
		purchase_price = excluded.purchase_price,
		selling_price = excluded.selling_price,
		gst = excluded.gst,
		low_stock_threshold = excluded.low_stock_threshold,
		updated_at = excluded.updated_at,
		synced = 1
	WHERE products.synced = 1
	`

	_, err := e.ExecContext(ctx, query,
		p.ID, p.Name, p.SKU, p.Category, p.Supplier, p.Quantity,
		p.PurchasePrice, p.SellingPrice, p.GST, p.LowStockThreshold,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt), p.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to merge product %s: %w", p.ID, err)
	}
	return nil
}

const productSelect = `
	SELECT id, name, sku, category, supplier, quantity,
	       purchase_price, selling_price, gst, low_stock_threshold,
	       created_at, updated_at, synced, user_id
	FROM products`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*schema.Product, error) {
	var p schema.Product
	var createdAt, updatedAt string
	var synced int

	err := row.Scan(
		&p.ID, &p.Name, &p.SKU, &p.Category, &p.Supplier, &p.Quantity,
		&p.PurchasePrice, &p.SellingPrice, &p.GST, &p.LowStockThreshold,
		&createdAt, &updatedAt, &synced, &p.UserID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	p.Synced = synced != 0
	return &p, nil
}

func scanProducts(rows *sql.Rows) ([]*schema.Product, error) {
	var products []*schema.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return products, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

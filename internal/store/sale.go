package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"stockpilot/internal/schema"
)

// CreateSale records a sale and decrements the referenced product's stock
// in one transaction.
//
// The product's quantity is re-read inside the transaction: if it is
// lower than the sale quantity the whole operation fails with
// ErrInsufficientStock and nothing is written, so concurrent local sales
// can't oversell. On success two queue items are appended - the sale
// upsert and the product upsert carrying the decremented quantity -
// matching the two remote writes the sync engine must eventually make.
func (db *DB) CreateSale(ctx context.Context, s *schema.Sale) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid sale: %w", err)
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, productSelect+" WHERE id = ?", s.ProductID)
		p, err := scanProduct(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if p.Quantity < s.Quantity {
			return ErrInsufficientStock
		}

		s.Synced = false
		if err := upsertSaleRow(ctx, tx, s); err != nil {
			return err
		}

		// Clamp at zero is a safety net; the check above already rejects
		// oversell.
		p.Quantity = max(0, p.Quantity-s.Quantity)
		p.Touch()
		p.Synced = false
		if err := upsertProductRow(ctx, tx, p); err != nil {
			return err
		}

		saleItem, err := schema.NewSaleUpsertItem(s)
		if err != nil {
			return err
		}
		if err := appendQueueItem(ctx, tx, saleItem); err != nil {
			return err
		}

		productItem, err := schema.NewProductUpsertItem(p)
		if err != nil {
			return err
		}
		return appendQueueItem(ctx, tx, productItem)
	})
}

// UpsertSale inserts or updates a sale without touching product stock.
// Used for corrections and pull application; new sales go through
// CreateSale. When enqueue is true a sale-upsert queue item is appended
// in the same transaction.
func (db *DB) UpsertSale(ctx context.Context, s *schema.Sale, enqueue bool) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid sale: %w", err)
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if enqueue {
			s.Synced = false
		}
		if err := upsertSaleRow(ctx, tx, s); err != nil {
			return err
		}
		if !enqueue {
			return nil
		}
		item, err := schema.NewSaleUpsertItem(s)
		if err != nil {
			return err
		}
		return appendQueueItem(ctx, tx, item)
	})
}

func upsertSaleRow(ctx context.Context, e execer, s *schema.Sale) error {
	query := `
	INSERT INTO sales (
		id, product_id, quantity, unit_price, total_price,
		customer_name, customer_phone, created_at, updated_at, synced, user_id
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		customer_name = excluded.customer_name,
		customer_phone = excluded.customer_phone,
		updated_at = excluded.updated_at,
		synced = excluded.synced
	`

	// quantity and prices are deliberately not in the update set: they
	// are immutable once the sale exists.
	_, err := e.ExecContext(ctx, query,
		s.ID, s.ProductID, s.Quantity, s.UnitPrice, s.TotalPrice,
		s.CustomerName, s.CustomerPhone,
		formatTime(s.CreatedAt), formatTime(s.UpdatedAt), boolToInt(s.Synced), s.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert sale %s: %w", s.ID, err)
	}
	return nil
}

// DeleteSale removes a sale. Stock is not restored; a delete is a record
// correction, not a refund. Returns ErrNotFound if the sale doesn't exist.
func (db *DB) DeleteSale(ctx context.Context, id string, enqueue bool) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM sales WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete sale %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to delete sale %s: %w", id, err)
		}
		if n == 0 {
			return ErrNotFound
		}
		if !enqueue {
			return nil
		}
		item, err := schema.NewSaleDeleteItem(id)
		if err != nil {
			return err
		}
		return appendQueueItem(ctx, tx, item)
	})
}

// GetSale retrieves a single sale by id.
// Returns ErrNotFound if the sale doesn't exist.
func (db *DB) GetSale(ctx context.Context, id string) (*schema.Sale, error) {
	row := db.conn.QueryRowContext(ctx, saleSelect+" WHERE id = ?", id)
	s, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// ListSales returns every sale owned by the user, newest first.
func (db *DB) ListSales(ctx context.Context, userID string) ([]*schema.Sale, error) {
	rows, err := db.conn.QueryContext(ctx,
		saleSelect+" WHERE user_id = ? ORDER BY created_at DESC, id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	defer rows.Close()

	return scanSales(rows)
}

// MergeSales applies an authoritative remote sale set, preserving local
// unsynced rows. Same contract as MergeProducts.
func (db *DB) MergeSales(ctx context.Context, remote []*schema.Sale) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, s := range remote {
			cs := *s
			cs.Synced = true
			if err := mergeSaleRow(ctx, tx, &cs); err != nil {
				return err
			}
		}

		query := "DELETE FROM sales WHERE synced = 1"
		args := make([]any, 0, len(remote))
		if len(remote) > 0 {
			placeholders := make([]string, len(remote))
			for i, s := range remote {
				placeholders[i] = "?"
				args = append(args, s.ID)
			}
			query += " AND id NOT IN (" + strings.Join(placeholders, ", ") + ")"
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to prune merged sales: %w", err)
		}
		return nil
	})
}

func mergeSaleRow(ctx context.Context, e execer, s *schema.Sale) error {
	query := `
	INSERT INTO sales (
		id, product_id, quantity, unit_price, total_price,
		customer_name, customer_phone, created_at, updated_at, synced, user_id
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
	ON CONFLICT(id) DO UPDATE SET
		customer_name = excluded.customer_name,
		customer_phone = excluded.customer_phone,
		updated_at = excluded.updated_at,
		synced = 1
	WHERE sales.synced = 1
	`

	_, err := e.ExecContext(ctx, query,
		s.ID, s.ProductID, s.Quantity, s.UnitPrice, s.TotalPrice,
		s.CustomerName, s.CustomerPhone,
		formatTime(s.CreatedAt), formatTime(s.UpdatedAt), s.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to merge sale %s: %w", s.ID, err)
	}
	return nil
}

const saleSelect = `
	SELECT id, product_id, quantity, unit_price, total_price,
	       customer_name, customer_phone, created_at, updated_at, synced, user_id
	FROM sales`

func scanSale(row rowScanner) (*schema.Sale, error) {
	var s schema.Sale
	var createdAt, updatedAt string
	var synced int

	err := row.Scan(
		&s.ID, &s.ProductID, &s.Quantity, &s.UnitPrice, &s.TotalPrice,
		&s.CustomerName, &s.CustomerPhone, &createdAt, &updatedAt, &synced, &s.UserID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan sale: %w", err)
	}

	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan sale: %w", err)
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan sale: %w", err)
	}
	s.Synced = synced != 0
	return &s, nil
}

func scanSales(rows *sql.Rows) ([]*schema.Sale, error) {
	var sales []*schema.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sales: %w", err)
	}
	return sales, nil
}

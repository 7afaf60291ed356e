package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"stockpilot/internal/schema"
)

// UnknownProductName is reported for sales whose product no longer exists
// locally (deleted, or pruned by a pull merge).
const UnknownProductName = "Unknown Product"

// Summary aggregates all sales for a user.
type Summary struct {
	TotalSales        int     `json:"total_sales"`
	TotalRevenue      float64 `json:"total_revenue"`
	AverageOrderValue float64 `json:"average_order_value"`
}

// SaleWithProduct is a sale joined with its product's name for display.
type SaleWithProduct struct {
	schema.Sale
	ProductName string `json:"product_name"`
}

// DailyBucket is one day of sales activity.
type DailyBucket struct {
	Date    string  `json:"date"` // YYYY-MM-DD
	Sales   int     `json:"sales"`
	Revenue float64 `json:"revenue"`
}

// LowStockProducts returns products whose quantity has fallen to or below
// their low-stock threshold.
func (db *DB) LowStockProducts(ctx context.Context, userID string) ([]*schema.Product, error) {
	rows, err := db.conn.QueryContext(ctx,
		productSelect+` WHERE user_id = ? AND quantity <= low_stock_threshold
		ORDER BY quantity ASC, name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query low stock products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// likeEscaper quotes LIKE metacharacters so search terms match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchProducts matches the term against name, sku and category,
// case-insensitively. LIKE wildcards in the term are taken literally.
func (db *DB) SearchProducts(ctx context.Context, userID, term string) ([]*schema.Product, error) {
	like := "%" + likeEscaper.Replace(term) + "%"
	rows, err := db.conn.QueryContext(ctx,
		productSelect+` WHERE user_id = ?
		AND (name LIKE ? ESCAPE '\' COLLATE NOCASE
		  OR sku LIKE ? ESCAPE '\' COLLATE NOCASE
		  OR category LIKE ? ESCAPE '\' COLLATE NOCASE)
		ORDER BY name ASC`, userID, like, like, like)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// ProductsByCategory returns all products in the given category.
func (db *DB) ProductsByCategory(ctx context.Context, userID, category string) ([]*schema.Product, error) {
	rows, err := db.conn.QueryContext(ctx,
		productSelect+" WHERE user_id = ? AND category = ? ORDER BY name ASC", userID, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query products by category: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// SalesSummary returns totals over every sale the user has recorded.
func (db *DB) SalesSummary(ctx context.Context, userID string) (*Summary, error) {
	var s Summary
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(total_price), 0) FROM sales WHERE user_id = ?",
		userID).Scan(&s.TotalSales, &s.TotalRevenue)
	if err != nil {
		return nil, fmt.Errorf("failed to compute sales summary: %w", err)
	}
	if s.TotalSales > 0 {
		s.AverageOrderValue = s.TotalRevenue / float64(s.TotalSales)
	}
	return &s, nil
}

// RecentSales returns the newest sales joined with product names.
// Sales whose product is gone get UnknownProductName.
func (db *DB) RecentSales(ctx context.Context, userID string, limit int) ([]*SaleWithProduct, error) {
	query := saleWithProductSelect + ` WHERE s.user_id = ?
		ORDER BY s.created_at DESC, s.id`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent sales: %w", err)
	}
	defer rows.Close()

	return scanSalesWithProduct(rows)
}

// SalesByDateRange returns sales created in [from, to), joined with
// product names, oldest first.
func (db *DB) SalesByDateRange(ctx context.Context, userID string, from, to time.Time) ([]*SaleWithProduct, error) {
	rows, err := db.conn.QueryContext(ctx,
		saleWithProductSelect+` WHERE s.user_id = ? AND s.created_at >= ? AND s.created_at < ?
		ORDER BY s.created_at ASC, s.id`,
		userID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query sales by date range: %w", err)
	}
	defer rows.Close()

	return scanSalesWithProduct(rows)
}

// DailySales buckets the last n days of sales by calendar day (UTC),
// oldest day first. Days without sales appear with zero counts.
func (db *DB) DailySales(ctx context.Context, userID string, days int) ([]*DailyBucket, error) {
	if days <= 0 {
		days = 7
	}

	byDate := make(map[string]*DailyBucket, days)
	buckets := make([]*DailyBucket, 0, days)
	today := time.Now().UTC().Truncate(24 * time.Hour)
	for i := days - 1; i >= 0; i-- {
		date := today.AddDate(0, 0, -i).Format("2006-01-02")
		b := &DailyBucket{Date: date}
		byDate[date] = b
		buckets = append(buckets, b)
	}

	since := today.AddDate(0, 0, -(days - 1))
	rows, err := db.conn.QueryContext(ctx,
		`SELECT substr(created_at, 1, 10), COUNT(*), COALESCE(SUM(total_price), 0)
		FROM sales WHERE user_id = ? AND created_at >= ?
		GROUP BY substr(created_at, 1, 10)`,
		userID, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily sales: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var date string
		var count int
		var revenue float64
		if err := rows.Scan(&date, &count, &revenue); err != nil {
			return nil, fmt.Errorf("failed to scan daily sales: %w", err)
		}
		if b, ok := byDate[date]; ok {
			b.Sales = count
			b.Revenue = revenue
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily sales: %w", err)
	}
	return buckets, nil
}

const saleWithProductSelect = `
	SELECT s.id, s.product_id, s.quantity, s.unit_price, s.total_price,
	       s.customer_name, s.customer_phone, s.created_at, s.updated_at, s.synced, s.user_id,
	       COALESCE(p.name, '')
	FROM sales s
	LEFT JOIN products p ON p.id = s.product_id`

func scanSalesWithProduct(rows *sql.Rows) ([]*SaleWithProduct, error) {
	var sales []*SaleWithProduct
	for rows.Next() {
		var sp SaleWithProduct
		var createdAt, updatedAt string
		var synced int
		err := rows.Scan(
			&sp.ID, &sp.ProductID, &sp.Quantity, &sp.UnitPrice, &sp.TotalPrice,
			&sp.CustomerName, &sp.CustomerPhone, &createdAt, &updatedAt, &synced, &sp.UserID,
			&sp.ProductName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		if sp.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		if sp.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sp.Synced = synced != 0
		if sp.ProductName == "" {
			sp.ProductName = UnknownProductName
		}
		sales = append(sales, &sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sales: %w", err)
	}
	return sales, nil
}

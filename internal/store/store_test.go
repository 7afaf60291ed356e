package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stockpilot/internal/schema"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	return db
}

func testProduct(id string, quantity int) *schema.Product {
	now := time.Now().UTC()
	return &schema.Product{
		ID:                id,
		Name:              "Product " + id,
		SKU:               "SKU-" + id,
		Category:          "Grocery",
		Quantity:          quantity,
		PurchasePrice:     80,
		SellingPrice:      100,
		GST:               5,
		LowStockThreshold: 5,
		CreatedAt:         now,
		UpdatedAt:         now,
		UserID:            "user-1",
	}
}

func testSale(id, productID string, quantity int) *schema.Sale {
	now := time.Now().UTC()
	return &schema.Sale{
		ID:         id,
		ProductID:  productID,
		Quantity:   quantity,
		UnitPrice:  100,
		TotalPrice: float64(quantity) * 100,
		CreatedAt:  now,
		UpdatedAt:  now,
		UserID:     "user-1",
	}
}

func TestOpen_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "app.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("second InitSchema() error = %v", err)
	}
}

func TestHasOfflineData(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	has, err := db.HasOfflineData(ctx)
	if err != nil {
		t.Fatalf("HasOfflineData() error = %v", err)
	}
	if has {
		t.Error("HasOfflineData() = true on empty store")
	}

	if err := db.UpsertProduct(ctx, testProduct("p1", 10), false); err != nil {
		t.Fatal(err)
	}

	has, err = db.HasOfflineData(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Error("HasOfflineData() = false after insert")
	}
}

func TestClearAll(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.UpsertProduct(ctx, testProduct("p1", 10), true); err != nil {
		t.Fatal(err)
	}
	if err := db.SetLastSyncTime(ctx, time.Now()); err != nil {
		t.Fatal(err)
	}

	if err := db.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}

	has, err := db.HasOfflineData(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Error("HasOfflineData() = true after ClearAll")
	}

	pending, err := db.PendingCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if pending != 0 {
		t.Errorf("PendingCount() = %d after ClearAll, want 0", pending)
	}

	last, err := db.LastSyncTime(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last != nil {
		t.Error("LastSyncTime() != nil after ClearAll")
	}
}

func TestLastSyncTime(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	got, err := db.LastSyncTime(ctx)
	if err != nil {
		t.Fatalf("LastSyncTime() error = %v", err)
	}
	if got != nil {
		t.Errorf("LastSyncTime() = %v before any sync, want nil", got)
	}

	want := time.Date(2026, 8, 30, 12, 30, 0, 0, time.UTC)
	if err := db.SetLastSyncTime(ctx, want); err != nil {
		t.Fatalf("SetLastSyncTime() error = %v", err)
	}

	got, err = db.LastSyncTime(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || !got.Equal(want) {
		t.Errorf("LastSyncTime() = %v, want %v", got, want)
	}

	// Overwrite, don't append.
	later := want.Add(time.Hour)
	if err := db.SetLastSyncTime(ctx, later); err != nil {
		t.Fatal(err)
	}
	got, err = db.LastSyncTime(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || !got.Equal(later) {
		t.Errorf("LastSyncTime() = %v after overwrite, want %v", got, later)
	}
}

func TestCorruptTimestampSurfacesError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.UpsertProduct(ctx, testProduct("p1", 10), false); err != nil {
		t.Fatal(err)
	}
	if _, err := db.RawDB().ExecContext(ctx,
		"UPDATE products SET created_at = 'yesterday-ish' WHERE id = 'p1'"); err != nil {
		t.Fatal(err)
	}

	_, err := db.GetProduct(ctx, "p1")
	if err == nil {
		t.Fatal("GetProduct() with corrupt timestamp succeeded, want error")
	}
	if !strings.Contains(err.Error(), "invalid stored timestamp") {
		t.Errorf("GetProduct() error = %v, want invalid stored timestamp", err)
	}
}

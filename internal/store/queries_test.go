package store

import (
	"context"
	"testing"
	"time"

	"stockpilot/internal/schema"
)

func TestLowStockProducts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	low := testProduct("p-low", 3) // threshold 5
	ok := testProduct("p-ok", 50)
	at := testProduct("p-at", 5) // exactly at threshold counts
	if err := db.UpsertProduct(ctx, low, false); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertProduct(ctx, ok, false); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertProduct(ctx, at, false); err != nil {
		t.Fatal(err)
	}

	got, err := db.LowStockProducts(ctx, "user-1")
	if err != nil {
		t.Fatalf("LowStockProducts() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("LowStockProducts() = %d products, want 2", len(got))
	}
	if got[0].ID != "p-low" || got[1].ID != "p-at" {
		t.Errorf("LowStockProducts() order = [%s, %s]", got[0].ID, got[1].ID)
	}
}

func TestSearchProducts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rice := testProduct("p1", 10)
	rice.Name = "Basmati Rice 5kg"
	rice.SKU = "RICE-5"
	sugar := testProduct("p2", 10)
	sugar.Name = "Sugar 1kg"
	sugar.Category = "Sweeteners"
	cotton := testProduct("p3", 10)
	cotton.Name = "100%_Cotton Towel"
	for _, p := range []*schema.Product{rice, sugar, cotton} {
		if err := db.UpsertProduct(ctx, p, false); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		term string
		want []string
	}{
		{"rice", []string{"p1"}},        // case-insensitive name
		{"RICE-5", []string{"p1"}},      // sku
		{"sweet", []string{"p2"}},       // category
		{"kg", []string{"p1", "p2"}},    // substring in both
		{"nonexistent", []string{}},     // no match
		{"100%_cotton", []string{"p3"}}, // % and _ taken literally
		{"%", []string{"p3"}},           // bare wildcard is not match-all
		{"_", []string{"p3"}},
	}

	for _, tt := range tests {
		got, err := db.SearchProducts(ctx, "user-1", tt.term)
		if err != nil {
			t.Fatalf("SearchProducts(%q) error = %v", tt.term, err)
		}
		if len(got) != len(tt.want) {
			t.Errorf("SearchProducts(%q) = %d results, want %d", tt.term, len(got), len(tt.want))
			continue
		}
		for i, id := range tt.want {
			if got[i].ID != id {
				t.Errorf("SearchProducts(%q)[%d] = %s, want %s", tt.term, i, got[i].ID, id)
			}
		}
	}
}

func TestSalesSummary(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	empty, err := db.SalesSummary(ctx, "user-1")
	if err != nil {
		t.Fatalf("SalesSummary() error = %v", err)
	}
	if empty.TotalSales != 0 || empty.TotalRevenue != 0 || empty.AverageOrderValue != 0 {
		t.Errorf("SalesSummary() on empty store = %+v", empty)
	}

	if err := db.UpsertProduct(ctx, testProduct("p1", 100), false); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateSale(ctx, testSale("s1", "p1", 2)); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateSale(ctx, testSale("s2", "p1", 4)); err != nil {
		t.Fatal(err)
	}

	got, err := db.SalesSummary(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalSales != 2 {
		t.Errorf("TotalSales = %d, want 2", got.TotalSales)
	}
	if got.TotalRevenue != 600 {
		t.Errorf("TotalRevenue = %v, want 600", got.TotalRevenue)
	}
	if got.AverageOrderValue != 300 {
		t.Errorf("AverageOrderValue = %v, want 300", got.AverageOrderValue)
	}
}

func TestRecentSales_UnknownProductFallback(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p := testProduct("p1", 10)
	p.Name = "Basmati Rice 5kg"
	if err := db.UpsertProduct(ctx, p, false); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateSale(ctx, testSale("s1", "p1", 1)); err != nil {
		t.Fatal(err)
	}

	got, err := db.RecentSales(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("RecentSales() error = %v", err)
	}
	if len(got) != 1 || got[0].ProductName != "Basmati Rice 5kg" {
		t.Fatalf("RecentSales() = %+v", got)
	}

	// Sales survive product deletion; the join falls back.
	if err := db.DeleteProduct(ctx, "p1", false); err != nil {
		t.Fatal(err)
	}
	got, err = db.RecentSales(ctx, "user-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("sale lost when product deleted")
	}
	if got[0].ProductName != UnknownProductName {
		t.Errorf("ProductName = %q, want %q", got[0].ProductName, UnknownProductName)
	}
}

func TestRecentSales_Limit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.UpsertProduct(ctx, testProduct("p1", 100), false); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"s1", "s2", "s3"} {
		if err := db.CreateSale(ctx, testSale(id, "p1", 1)); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.RecentSales(ctx, "user-1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("RecentSales(limit=2) = %d sales", len(got))
	}
}

func TestSalesByDateRange(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.UpsertProduct(ctx, testProduct("p1", 100), false); err != nil {
		t.Fatal(err)
	}

	old := testSale("s-old", "p1", 1)
	old.CreatedAt = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	recent := testSale("s-recent", "p1", 1)
	recent.CreatedAt = time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	if err := db.CreateSale(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateSale(ctx, recent); err != nil {
		t.Fatal(err)
	}

	from := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	got, err := db.SalesByDateRange(ctx, "user-1", from, to)
	if err != nil {
		t.Fatalf("SalesByDateRange() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "s-recent" {
		t.Errorf("SalesByDateRange() = %+v, want only s-recent", got)
	}
}

func TestDailySales(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.UpsertProduct(ctx, testProduct("p1", 100), false); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	today := testSale("s-today", "p1", 2)
	today.CreatedAt = now
	yesterday := testSale("s-yesterday", "p1", 1)
	yesterday.CreatedAt = now.AddDate(0, 0, -1)
	if err := db.CreateSale(ctx, today); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateSale(ctx, yesterday); err != nil {
		t.Fatal(err)
	}

	got, err := db.DailySales(ctx, "user-1", 7)
	if err != nil {
		t.Fatalf("DailySales() error = %v", err)
	}
	if len(got) != 7 {
		t.Fatalf("DailySales() = %d buckets, want 7", len(got))
	}

	// Oldest first, today last.
	last := got[len(got)-1]
	if last.Date != now.Format("2006-01-02") {
		t.Errorf("last bucket date = %s, want today", last.Date)
	}
	if last.Sales != 1 || last.Revenue != 200 {
		t.Errorf("today's bucket = %+v, want 1 sale / 200 revenue", last)
	}
	prev := got[len(got)-2]
	if prev.Sales != 1 || prev.Revenue != 100 {
		t.Errorf("yesterday's bucket = %+v, want 1 sale / 100 revenue", prev)
	}

	// Empty days are present with zeros.
	if got[0].Sales != 0 || got[0].Revenue != 0 {
		t.Errorf("empty bucket = %+v, want zeros", got[0])
	}
}

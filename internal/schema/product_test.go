package schema

import (
	"strings"
	"testing"
	"time"
)

func validProduct() Product {
	now := time.Now().UTC()
	return Product{
		ID:                "prod-1",
		Name:              "Basmati Rice 5kg",
		SKU:               "RICE-5KG",
		Category:          "Grains",
		Quantity:          20,
		PurchasePrice:     380,
		SellingPrice:      450,
		GST:               5,
		LowStockThreshold: 5,
		CreatedAt:         now,
		UpdatedAt:         now,
		UserID:            "user-1",
	}
}

func TestProduct_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Product)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid product",
			mutate:  func(p *Product) {},
			wantErr: false,
		},
		{
			name:    "missing id",
			mutate:  func(p *Product) { p.ID = "" },
			wantErr: true,
			errMsg:  "id is required",
		},
		{
			name:    "missing name",
			mutate:  func(p *Product) { p.Name = "" },
			wantErr: true,
			errMsg:  "name is required",
		},
		{
			name:    "missing user",
			mutate:  func(p *Product) { p.UserID = "" },
			wantErr: true,
			errMsg:  "user_id is required",
		},
		{
			name:    "negative quantity",
			mutate:  func(p *Product) { p.Quantity = -1 },
			wantErr: true,
			errMsg:  "quantity",
		},
		{
			name:    "negative price",
			mutate:  func(p *Product) { p.SellingPrice = -10 },
			wantErr: true,
			errMsg:  "prices",
		},
		{
			name:    "gst over 100",
			mutate:  func(p *Product) { p.GST = 120 },
			wantErr: true,
			errMsg:  "gst",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProduct()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Validate() = nil, want error")
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Validate() error = %v, want containing %q", err, tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestProduct_SetDefaults(t *testing.T) {
	p := Product{ID: "prod-1", Name: "Salt", UserID: "u"}
	p.SetDefaults()
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Error("SetDefaults() did not set timestamps")
	}
}

func TestProduct_LowOnStock(t *testing.T) {
	p := validProduct()
	p.Quantity = 5
	p.LowStockThreshold = 5
	if !p.LowOnStock() {
		t.Error("LowOnStock() = false at threshold, want true")
	}
	p.Quantity = 6
	if p.LowOnStock() {
		t.Error("LowOnStock() = true above threshold, want false")
	}
}

func TestSale_Validate(t *testing.T) {
	now := time.Now().UTC()
	valid := Sale{
		ID:         "sale-1",
		ProductID:  "prod-1",
		Quantity:   2,
		UnitPrice:  450,
		TotalPrice: 900,
		CreatedAt:  now,
		UpdatedAt:  now,
		UserID:     "user-1",
	}

	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	zeroQty := valid
	zeroQty.Quantity = 0
	if err := zeroQty.Validate(); err == nil {
		t.Error("Validate() with zero quantity should fail")
	}

	noProduct := valid
	noProduct.ProductID = ""
	if err := noProduct.Validate(); err == nil {
		t.Error("Validate() with no product_id should fail")
	}
}

package storage

import (
	"context"
	"testing"
)

func TestMemoryCatalog_FindByRFID(t *testing.T) {
	c := NewMemoryCatalog(DemoCatalog())
	ctx := context.Background()

	p, err := c.FindByRFID(ctx, "RF003")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected product, got nil")
	}
	if p.ID != "3" || p.Name != "Fresh Milk" {
		t.Errorf("unexpected product: %+v", p)
	}
	if p.NominalWeightGrams != 1000 {
		t.Errorf("expected 1000g, got %v", p.NominalWeightGrams)
	}
}

func TestMemoryCatalog_FindByBarcode(t *testing.T) {
	c := NewMemoryCatalog(DemoCatalog())
	ctx := context.Background()

	p, err := c.FindByBarcode(ctx, "1234567890123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected product, got nil")
	}
	if p.ID != "10" {
		t.Errorf("expected product 10, got %s", p.ID)
	}
}

func TestMemoryCatalog_NotFound(t *testing.T) {
	c := NewMemoryCatalog(DemoCatalog())
	ctx := context.Background()

	p, err := c.FindByRFID(ctx, "RF999")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil for unknown code, got %+v", p)
	}

	p, err = c.FindByBarcode(ctx, "ZZZZZZ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil for unknown barcode, got %+v", p)
	}
}

func TestMemoryCatalog_ReturnsCopies(t *testing.T) {
	c := NewMemoryCatalog(DemoCatalog())
	ctx := context.Background()

	p1, _ := c.FindByRFID(ctx, "RF001")
	p1.Price = 99.99

	p2, _ := c.FindByRFID(ctx, "RF001")
	if p2.Price != 2.99 {
		t.Errorf("catalog entry mutated through returned pointer: %v", p2.Price)
	}
}

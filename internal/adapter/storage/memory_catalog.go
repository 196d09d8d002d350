package storage

import (
	"context"
	"sync"

	"github.com/smartcart-io/cartd/internal/core/domain"
)

// MemoryCatalog is an in-process read-only catalog keyed by physical codes.
// The external catalog service owns the data; this adapter holds whatever
// snapshot it was seeded with.
type MemoryCatalog struct {
	mu        sync.RWMutex
	byID      map[string]domain.Product
	byRFID    map[string]domain.Product
	byBarcode map[string]domain.Product
}

func NewMemoryCatalog(products []domain.Product) *MemoryCatalog {
	c := &MemoryCatalog{
		byID:      make(map[string]domain.Product),
		byRFID:    make(map[string]domain.Product),
		byBarcode: make(map[string]domain.Product),
	}
	for _, p := range products {
		c.byID[p.ID] = p
		if p.RFIDCode != "" {
			c.byRFID[p.RFIDCode] = p
		}
		if p.Barcode != "" {
			c.byBarcode[p.Barcode] = p
		}
	}
	return c
}

func (c *MemoryCatalog) FindByID(_ context.Context, id string) (*domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if p, ok := c.byID[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (c *MemoryCatalog) FindByRFID(_ context.Context, code string) (*domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if p, ok := c.byRFID[code]; ok {
		return &p, nil
	}
	return nil, nil
}

func (c *MemoryCatalog) FindByBarcode(_ context.Context, code string) (*domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if p, ok := c.byBarcode[code]; ok {
		return &p, nil
	}
	return nil, nil
}

// DemoCatalog returns the demo store inventory the hardware adapters were
// calibrated against.
func DemoCatalog() []domain.Product {
	return []domain.Product{
		{ID: "1", Name: "Red Apples", Brand: "Fresh Farm", Category: "fruits", Price: 2.99, NominalWeightGrams: 150, RFIDCode: "RF001", Barcode: "000000000000"},
		{ID: "2", Name: "Whole Wheat Bread", Brand: "Artisan Bakery", Category: "bakery", Price: 1.99, NominalWeightGrams: 400, RFIDCode: "RF002", Barcode: "000000000001"},
		{ID: "3", Name: "Fresh Milk", Brand: "Farm Fresh", Category: "dairy", Price: 3.49, NominalWeightGrams: 1000, RFIDCode: "RF003", Barcode: "000000000002"},
		{ID: "4", Name: "Bananas", Brand: "Tropical Farms", Category: "fruits", Price: 1.29, NominalWeightGrams: 120, RFIDCode: "RF004", Barcode: "000000000003"},
		{ID: "5", Name: "Cheddar Cheese", Brand: "Artisan Cheese", Category: "dairy", Price: 4.99, NominalWeightGrams: 250, RFIDCode: "RF005", Barcode: "000000000004"},
		{ID: "6", Name: "Croissants", Brand: "French Bakery", Category: "bakery", Price: 3.99, NominalWeightGrams: 180, RFIDCode: "RF006", Barcode: "000000000005"},
		{ID: "7", Name: "Orange Juice", Brand: "Pure Orange", Category: "beverages", Price: 2.79, NominalWeightGrams: 950, RFIDCode: "RF007", Barcode: "000000000006"},
		{ID: "8", Name: "Chicken Breast", Brand: "Premium Poultry", Category: "meat", Price: 7.99, NominalWeightGrams: 450, RFIDCode: "RF008", Barcode: "000000000007"},
		{ID: "9", Name: "Test Product", Brand: "Test Brand", Category: "test", Price: 1.00, NominalWeightGrams: 100, Barcode: "123456789012"},
		{ID: "10", Name: "Demo Item", Brand: "Demo Co", Category: "demo", Price: 5.00, NominalWeightGrams: 200, Barcode: "1234567890123"},
	}
}

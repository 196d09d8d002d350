package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCartState_AddMerges(t *testing.T) {
	c := NewCartState()
	p := Product{ID: "1", NominalWeightGrams: 150, Price: 2.99}
	now := time.Now()

	c.Add(p, 1, now)
	c.Add(p, 2, now)

	e := c.Get("1")
	assert.NotNil(t, e)
	assert.Equal(t, 3, e.Quantity)
	assert.Equal(t, 1, c.Len())
}

func TestCartState_AddNonPositiveIgnored(t *testing.T) {
	c := NewCartState()
	c.Add(Product{ID: "1"}, 0, time.Now())
	c.Add(Product{ID: "1"}, -2, time.Now())
	assert.Zero(t, c.Len())
}

func TestCartState_SetQuantity(t *testing.T) {
	c := NewCartState()
	c.Add(Product{ID: "1"}, 2, time.Now())

	c.SetQuantity("1", 5)
	assert.Equal(t, 5, c.Get("1").Quantity)

	// Non-positive removes the entry.
	c.SetQuantity("1", 0)
	assert.Nil(t, c.Get("1"))

	// Setting an absent entry is a no-op.
	c.SetQuantity("missing", 3)
	assert.Nil(t, c.Get("missing"))
}

func TestCartState_RemoveAbsentIsNoop(t *testing.T) {
	c := NewCartState()
	c.Remove("nope")
	assert.Zero(t, c.Len())
}

func TestCartState_EntriesInsertionOrder(t *testing.T) {
	c := NewCartState()
	now := time.Now()
	c.Add(Product{ID: "b"}, 1, now)
	c.Add(Product{ID: "a"}, 1, now)
	c.Add(Product{ID: "c"}, 1, now)
	c.Remove("a")

	entries := c.Entries()
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.Product.ID
	}
	assert.Equal(t, []string{"b", "c"}, ids)
}

func TestCartState_Totals(t *testing.T) {
	c := NewCartState()
	now := time.Now()
	c.Add(Product{ID: "1", NominalWeightGrams: 150, Price: 2.99}, 2, now)
	c.Add(Product{ID: "2", NominalWeightGrams: 1000, Price: 3.49}, 1, now)

	assert.InDelta(t, 1300, c.ExpectedWeightGrams(), 1e-9)
	assert.InDelta(t, 9.47, c.TotalPrice(), 1e-9)
	assert.Equal(t, 3, c.TotalQuantity())
}

func TestCartState_Clear(t *testing.T) {
	c := NewCartState()
	c.Add(Product{ID: "1"}, 1, time.Now())
	c.Clear()
	assert.Zero(t, c.Len())
	assert.Empty(t, c.Entries())
	assert.Zero(t, c.ExpectedWeightGrams())
}

func TestNewUnresolvedProduct(t *testing.T) {
	p := NewUnresolvedProduct("XYZ")
	assert.Equal(t, "unknown_XYZ", p.ID)
	assert.True(t, p.Unresolved)
	assert.Equal(t, float64(UnresolvedWeightGrams), p.NominalWeightGrams)
	assert.Equal(t, UnresolvedPrice, p.Price)
}

func TestScanKind_Valid(t *testing.T) {
	for _, k := range []ScanKind{ScanKindRFID, ScanKindBarcode, ScanKindCamera, ScanKindManual} {
		assert.True(t, k.Valid(), string(k))
	}
	assert.False(t, ScanKind("telepathy").Valid())
}

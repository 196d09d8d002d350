package domain

import "time"

// CartAction is the kind of a normalized cart mutation.
type CartAction string

const (
	CartActionAdd    CartAction = "add"
	CartActionRemove CartAction = "remove"
	CartActionUpdate CartAction = "update"
	CartActionClear  CartAction = "clear"
)

// CartEvent is a normalized mutation applied to a session cart. Events are
// applied strictly in arrival order from a single stream.
type CartEvent struct {
	UserID   string
	Action   CartAction
	Product  Product
	Quantity int
	At       time.Time
}

// CartEntry is one line of a cart. Quantity never reaches zero; an entry
// whose quantity would drop to zero is removed instead.
type CartEntry struct {
	Product  Product
	Quantity int
	AddedAt  time.Time
}

// CartState maps product ID to entry. Insertion order is tracked for
// display only; it carries no correctness guarantee.
type CartState struct {
	entries map[string]*CartEntry
	order   []string
}

// NewCartState returns an empty cart.
func NewCartState() *CartState {
	return &CartState{entries: make(map[string]*CartEntry)}
}

// Add merges qty into an existing entry or creates one. Duplicate adds
// after the dedup window has expired double-count; that risk is accepted
// at this layer.
func (c *CartState) Add(p Product, qty int, at time.Time) {
	if qty <= 0 {
		return
	}
	if e, ok := c.entries[p.ID]; ok {
		e.Quantity += qty
		return
	}
	c.entries[p.ID] = &CartEntry{Product: p, Quantity: qty, AddedAt: at}
	c.order = append(c.order, p.ID)
}

// SetQuantity overwrites an entry's quantity. qty <= 0 removes the entry.
func (c *CartState) SetQuantity(productID string, qty int) {
	if qty <= 0 {
		c.Remove(productID)
		return
	}
	if e, ok := c.entries[productID]; ok {
		e.Quantity = qty
	}
}

// Remove deletes an entry if present; removing an absent entry is a no-op.
func (c *CartState) Remove(productID string) {
	if _, ok := c.entries[productID]; !ok {
		return
	}
	delete(c.entries, productID)
	for i, id := range c.order {
		if id == productID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Clear empties the cart.
func (c *CartState) Clear() {
	c.entries = make(map[string]*CartEntry)
	c.order = nil
}

// Get returns the entry for productID, or nil.
func (c *CartState) Get(productID string) *CartEntry {
	return c.entries[productID]
}

// Len returns the number of distinct products.
func (c *CartState) Len() int { return len(c.entries) }

// Entries returns the entries in insertion order. The returned slice holds
// copies; mutating it does not affect the cart.
func (c *CartState) Entries() []CartEntry {
	out := make([]CartEntry, 0, len(c.order))
	for _, id := range c.order {
		if e, ok := c.entries[id]; ok {
			out = append(out, *e)
		}
	}
	return out
}

// ExpectedWeightGrams sums nominal product weight times quantity.
func (c *CartState) ExpectedWeightGrams() float64 {
	var total float64
	for _, e := range c.entries {
		total += e.Product.NominalWeightGrams * float64(e.Quantity)
	}
	return total
}

// TotalPrice sums entry price times quantity.
func (c *CartState) TotalPrice() float64 {
	var total float64
	for _, e := range c.entries {
		total += e.Product.Price * float64(e.Quantity)
	}
	return total
}

// TotalQuantity sums quantities across entries.
func (c *CartState) TotalQuantity() int {
	var total int
	for _, e := range c.entries {
		total += e.Quantity
	}
	return total
}

package domain

// Product is a read-only view of a catalog entry. The catalog itself is
// owned by an external service; the core only matches scan codes against it.
type Product struct {
	ID                 string
	Name               string
	Brand              string
	Category           string
	Price              float64
	NominalWeightGrams float64
	RFIDCode           string
	Barcode            string

	// Unresolved marks a synthetic product fabricated for a scan code that
	// matched nothing in the catalog. Consumers are expected to display
	// these distinctly.
	Unresolved bool
}

const (
	// UnresolvedWeightGrams is the assumed weight of an unknown item.
	UnresolvedWeightGrams = 100
	// UnresolvedPrice is the placeholder price of an unknown item.
	UnresolvedPrice = 0.99
)

// NewUnresolvedProduct fabricates a placeholder so that a physical scan is
// always representable in the cart.
func NewUnresolvedProduct(code string) Product {
	return Product{
		ID:                 "unknown_" + code,
		Name:               "Unknown Product (" + code + ")",
		Category:           "unknown",
		Price:              UnresolvedPrice,
		NominalWeightGrams: UnresolvedWeightGrams,
		Unresolved:         true,
	}
}

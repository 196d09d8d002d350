package service

import (
	"context"
	"strings"

	"github.com/smartcart-io/cartd/internal/core/domain"
	"github.com/smartcart-io/cartd/internal/port"
)

// ProductResolver maps noisy physical scan codes to catalog products.
// Resolution never fails: a code that matches nothing yields a synthetic
// unresolved product so the scan stays representable in the cart.
type ProductResolver struct {
	catalog port.CatalogRepository
}

func NewProductResolver(catalog port.CatalogRepository) *ProductResolver {
	return &ProductResolver{catalog: catalog}
}

// Resolve tries the code and its cleaned variants against the catalog.
// The error is only ever an infrastructure failure; callers that cannot
// retry should fall back to the synthetic product themselves.
func (r *ProductResolver) Resolve(ctx context.Context, code string, kind domain.ScanKind) (domain.Product, error) {
	for _, candidate := range codeVariants(code) {
		p, err := r.lookup(ctx, candidate, kind)
		if err != nil {
			return domain.Product{}, err
		}
		if p != nil {
			return *p, nil
		}
	}
	return domain.NewUnresolvedProduct(code), nil
}

// lookup checks both code namespaces, preferring the one matching the
// sensor that produced the scan.
func (r *ProductResolver) lookup(ctx context.Context, code string, kind domain.ScanKind) (*domain.Product, error) {
	first, second := r.catalog.FindByBarcode, r.catalog.FindByRFID
	if kind == domain.ScanKindRFID {
		first, second = second, first
	}

	p, err := first(ctx, code)
	if err != nil || p != nil {
		return p, err
	}
	return second(ctx, code)
}

// codeVariants produces the matching ladder: the raw code, the
// numeric-cleaned code, zero-padded UPC-A (12) and EAN-13 (13) forms, and
// the cleaned code with the first or last digit dropped. Duplicates are
// collapsed, order preserved.
func codeVariants(code string) []string {
	variants := []string{code}

	digits := stripNonDigits(code)
	if digits != "" {
		variants = append(variants, digits)
		variants = append(variants, zeroPad(digits, 12))
		variants = append(variants, zeroPad(digits, 13))
		if len(digits) > 1 {
			variants = append(variants, digits[1:])
			variants = append(variants, digits[:len(digits)-1])
		}
	}

	seen := make(map[string]bool, len(variants))
	out := variants[:0]
	for _, v := range variants {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func zeroPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

package port

import (
	"context"

	"github.com/smartcart-io/cartd/internal/core/domain"
)

type CatalogRepository interface {
	// FindByID retrieves a product by catalog ID, nil if not found
	FindByID(ctx context.Context, id string) (*domain.Product, error)

	// FindByRFID retrieves a product by RFID tag code, nil if not found
	FindByRFID(ctx context.Context, code string) (*domain.Product, error)

	// FindByBarcode retrieves a product by barcode, nil if not found
	FindByBarcode(ctx context.Context, code string) (*domain.Product, error)
}

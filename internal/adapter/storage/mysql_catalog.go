package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/smartcart-io/cartd/internal/core/domain"
)

// MySQLCatalog reads the products table the external catalog service
// maintains. This adapter never writes.
type MySQLCatalog struct {
	db *sql.DB
}

func NewMySQLCatalog(db *sql.DB) *MySQLCatalog {
	return &MySQLCatalog{db: db}
}

const productColumns = `id, name, brand, category, price, weight_grams, rfid_code, barcode`

func (m *MySQLCatalog) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products WHERE id = ?`, id)
	return scanProduct(row)
}

func (m *MySQLCatalog) FindByRFID(ctx context.Context, code string) (*domain.Product, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products WHERE rfid_code = ?`, code)
	return scanProduct(row)
}

func (m *MySQLCatalog) FindByBarcode(ctx context.Context, code string) (*domain.Product, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products WHERE barcode = ?`, code)
	return scanProduct(row)
}

func scanProduct(row *sql.Row) (*domain.Product, error) {
	var p domain.Product
	var rfid, barcode sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &p.Price,
		&p.NominalWeightGrams, &rfid, &barcode)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}

	p.RFIDCode = rfid.String
	p.Barcode = barcode.String
	return &p, nil
}

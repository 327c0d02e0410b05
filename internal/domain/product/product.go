// Package product holds the catalog entities consumed by the allocation
// engine. The engine only reads from the catalog; it never mutates it.
package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a product does not exist in the catalog.
var ErrNotFound = errors.New("product not found")

// Product is a catalog entry. Price is the current unit price; orders snapshot
// it into their lines at creation time.
type Product struct {
	ID        int64
	SKU       string
	Name      string
	Unit      string
	Price     decimal.Decimal
	CreatedAt time.Time
}

// Repository defines read access to the product catalog.
type Repository interface {
	// GetByIDs fetches all products with the given IDs in a single query.
	// Missing IDs are simply absent from the result; callers decide whether
	// that is an error.
	GetByIDs(ctx context.Context, ids []int64) ([]Product, error)
	// GetBySKU returns the product with the given SKU, or ErrNotFound.
	GetBySKU(ctx context.Context, sku string) (*Product, error)
	// List returns all catalog products ordered by ID.
	List(ctx context.Context) ([]Product, error)
}

// PriceMap builds a product-id → unit-price index from a batch fetch result.
func PriceMap(products []Product) map[int64]decimal.Decimal {
	m := make(map[int64]decimal.Decimal, len(products))
	for _, p := range products {
		m[p.ID] = p.Price
	}
	return m
}

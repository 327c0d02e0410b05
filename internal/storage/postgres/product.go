package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/novadistro/backoffice/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	db dbtx
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{db: pool}
}

// GetByIDs fetches all products with the given IDs in a single query.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, sku, name, unit, price, created_at
		FROM products WHERE id = ANY($1)
		ORDER BY id`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products by ids")
	}
	defer rows.Close()

	return scanProducts(rows)
}

// GetBySKU returns the product with the given SKU, or product.ErrNotFound.
func (r *ProductRepository) GetBySKU(ctx context.Context, sku string) (*product.Product, error) {
	var p product.Product
	err := r.db.QueryRow(ctx, `
		SELECT id, sku, name, unit, price, created_at
		FROM products WHERE sku = $1`, sku,
	).Scan(&p.ID, &p.SKU, &p.Name, &p.Unit, &p.Price, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, product.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", sku)
	}
	return &p, nil
}

// List returns all catalog products ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, sku, name, unit, price, created_at
		FROM products ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	defer rows.Close()

	return scanProducts(rows)
}

// Upsert inserts a product or updates its mutable fields, keyed by SKU. Used
// by catalog seeding.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO products (sku, name, unit, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sku) DO UPDATE
		SET name = EXCLUDED.name, unit = EXCLUDED.unit, price = EXCLUDED.price
		RETURNING id, created_at`,
		p.SKU, p.Name, p.Unit, p.Price,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "upsert product %q", p.SKU)
	}
	return nil
}

func scanProducts(rows pgx.Rows) ([]product.Product, error) {
	var out []product.Product
	for rows.Next() {
		var p product.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Unit, &p.Price, &p.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

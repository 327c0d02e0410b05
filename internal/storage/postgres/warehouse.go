package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/novadistro/backoffice/internal/domain/warehouse"
)

var _ warehouse.Repository = (*WarehouseRepository)(nil)

// WarehouseRepository implements warehouse.Repository. The same code serves
// pooled reads and the engine's transactions.
type WarehouseRepository struct {
	db dbtx
}

// NewWarehouseRepository returns a WarehouseRepository over the pool.
func NewWarehouseRepository(pool *pgxpool.Pool) *WarehouseRepository {
	return &WarehouseRepository{db: pool}
}

// Create persists a new warehouse.
func (r *WarehouseRepository) Create(ctx context.Context, w *warehouse.Warehouse) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO warehouses (name) VALUES ($1) RETURNING id`, w.Name,
	).Scan(&w.ID)
	if err != nil {
		return errors.Wrapf(err, "insert warehouse %q", w.Name)
	}
	return nil
}

// List returns all warehouses ordered by ID ascending.
func (r *WarehouseRepository) List(ctx context.Context) ([]warehouse.Warehouse, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM warehouses ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list warehouses")
	}
	defer rows.Close()

	var out []warehouse.Warehouse
	for rows.Next() {
		var w warehouse.Warehouse
		if err := rows.Scan(&w.ID, &w.Name); err != nil {
			return nil, errors.Wrap(err, "scan warehouse")
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Default returns the warehouse with the lowest ID, creating one when the
// table is empty.
func (r *WarehouseRepository) Default(ctx context.Context) (*warehouse.Warehouse, error) {
	var w warehouse.Warehouse
	err := r.db.QueryRow(ctx,
		`SELECT id, name FROM warehouses ORDER BY id LIMIT 1`,
	).Scan(&w.ID, &w.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		w.Name = warehouse.DefaultName
		if err := r.Create(ctx, &w); err != nil {
			return nil, err
		}
		return &w, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get default warehouse")
	}
	return &w, nil
}

package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/novadistro/backoffice/internal/domain/inventory"
)

var (
	_ inventory.Repository = (*InventoryRepository)(nil)
	_ inventory.Reader     = (*InventoryReader)(nil)
)

// InventoryRepository implements the transactional stock operations. Records
// are locked with SELECT ... FOR UPDATE before any read-check-write sequence,
// so two concurrent reservations of the same row serialize instead of both
// reading the same available quantity.
type InventoryRepository struct {
	db dbtx
}

// LockOrCreate returns the locked record for (productID, warehouseID),
// inserting a zero-valued row first when the product has never been stocked
// in that warehouse.
func (r *InventoryRepository) LockOrCreate(ctx context.Context, productID, warehouseID int64) (*inventory.Record, error) {
	// The upsert keeps concurrent first-references of the same product from
	// racing on the unique (product_id, warehouse_id) pair.
	_, err := r.db.Exec(ctx, `
		INSERT INTO inventory_records (product_id, warehouse_id)
		VALUES ($1, $2)
		ON CONFLICT (product_id, warehouse_id) DO NOTHING`,
		productID, warehouseID)
	if err != nil {
		return nil, errors.Wrap(err, "ensure inventory record")
	}

	var rec inventory.Record
	err = r.db.QueryRow(ctx, `
		SELECT id, product_id, warehouse_id, on_hand, reserved, reorder_point
		FROM inventory_records
		WHERE product_id = $1 AND warehouse_id = $2
		FOR UPDATE`,
		productID, warehouseID,
	).Scan(&rec.ID, &rec.ProductID, &rec.WarehouseID, &rec.OnHand, &rec.Reserved, &rec.ReorderPoint)
	if err != nil {
		return nil, errors.Wrap(err, "lock inventory record")
	}
	return &rec, nil
}

// Update writes back a mutated record.
func (r *InventoryRepository) Update(ctx context.Context, rec *inventory.Record) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE inventory_records
		SET on_hand = $2, reserved = $3, reorder_point = $4
		WHERE id = $1`,
		rec.ID, rec.OnHand, rec.Reserved, rec.ReorderPoint)
	if err != nil {
		return errors.Wrap(err, "update inventory record")
	}
	if tag.RowsAffected() == 0 {
		return inventory.ErrNotFound
	}
	return nil
}

// InventoryReader implements the read-only stock projections over the pool.
type InventoryReader struct {
	db dbtx
}

// NewInventoryReader returns an InventoryReader that uses the given pool.
func NewInventoryReader(pool *pgxpool.Pool) *InventoryReader {
	return &InventoryReader{db: pool}
}

// Get returns the record for (productID, warehouseID), or
// inventory.ErrNotFound.
func (r *InventoryReader) Get(ctx context.Context, productID, warehouseID int64) (*inventory.Record, error) {
	var rec inventory.Record
	err := r.db.QueryRow(ctx, `
		SELECT id, product_id, warehouse_id, on_hand, reserved, reorder_point
		FROM inventory_records
		WHERE product_id = $1 AND warehouse_id = $2`,
		productID, warehouseID,
	).Scan(&rec.ID, &rec.ProductID, &rec.WarehouseID, &rec.OnHand, &rec.Reserved, &rec.ReorderPoint)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, inventory.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get inventory record")
	}
	return &rec, nil
}

// SumByProduct aggregates stock for a product across all warehouses.
func (r *InventoryReader) SumByProduct(ctx context.Context, productID int64) (decimal.Decimal, decimal.Decimal, error) {
	var onHand, reserved decimal.Decimal
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(on_hand), 0), COALESCE(SUM(reserved), 0)
		FROM inventory_records WHERE product_id = $1`,
		productID,
	).Scan(&onHand, &reserved)
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrap(err, "sum inventory records")
	}
	return onHand, reserved, nil
}

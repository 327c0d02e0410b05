// Package inventory owns the stock ledger: per (product, warehouse) records of
// on-hand and reserved quantities. The invariants live here; every mutation
// goes through Record methods so a record can never observe a negative
// quantity or reserve more than is on hand.
package inventory

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no inventory record exists for a
// (product, warehouse) pair.
var ErrNotFound = errors.New("inventory record not found")

// InsufficientStockError indicates a reservation request exceeds the available
// quantity for a product.
type InsufficientStockError struct {
	ProductID int64
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %s, available %s",
		e.ProductID, e.Requested, e.Available)
}

// ShortfallError indicates a fulfillment cannot be honored because the record
// holds less reserved or on-hand stock than the order line requires. If
// reservations were applied correctly at creation time this should not occur.
type ShortfallError struct {
	ProductID int64
	Field     string // "reserved" or "on_hand"
	Have      decimal.Decimal
	Need      decimal.Decimal
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("%s below fulfill qty for product %d: have %s, need %s",
		e.Field, e.ProductID, e.Have, e.Need)
}

// Record tracks stock for one product in one warehouse.
// Invariants after every successful mutation:
//
//	OnHand >= 0, Reserved >= 0, OnHand - Reserved >= 0
type Record struct {
	ID           int64
	ProductID    int64
	WarehouseID  int64
	OnHand       decimal.Decimal
	Reserved     decimal.Decimal
	ReorderPoint decimal.Decimal
}

// Available returns the quantity that can still be newly reserved.
func (r *Record) Available() decimal.Decimal {
	return r.OnHand.Sub(r.Reserved)
}

// LowStock reports whether on-hand stock has fallen to or below the reorder
// point.
func (r *Record) LowStock() bool {
	return r.OnHand.LessThanOrEqual(r.ReorderPoint)
}

// Reserve increases the reserved quantity by qty after checking availability.
func (r *Record) Reserve(qty decimal.Decimal) error {
	if avail := r.Available(); qty.GreaterThan(avail) {
		return &InsufficientStockError{ProductID: r.ProductID, Requested: qty, Available: avail}
	}
	r.Reserved = r.Reserved.Add(qty)
	return nil
}

// Consume converts qty of reservation into an actual stock decrement: both
// reserved and on-hand drop by qty. It refuses to go negative on either side.
func (r *Record) Consume(qty decimal.Decimal) error {
	if r.Reserved.LessThan(qty) {
		return &ShortfallError{ProductID: r.ProductID, Field: "reserved", Have: r.Reserved, Need: qty}
	}
	if r.OnHand.LessThan(qty) {
		return &ShortfallError{ProductID: r.ProductID, Field: "on_hand", Have: r.OnHand, Need: qty}
	}
	r.Reserved = r.Reserved.Sub(qty)
	r.OnHand = r.OnHand.Sub(qty)
	return nil
}

// Release returns qty of reservation to the available pool without touching
// on-hand stock. The result is clamped at zero to stay safe against drifted
// counters.
func (r *Record) Release(qty decimal.Decimal) {
	r.Reserved = r.Reserved.Sub(qty)
	if r.Reserved.IsNegative() {
		r.Reserved = decimal.Zero
	}
}

// Repository defines the transactional operations the allocation engine
// performs on inventory records. Implementations must hold a row-level lock on
// every record returned by LockOrCreate until the enclosing transaction ends.
type Repository interface {
	// LockOrCreate returns the record for (productID, warehouseID), creating a
	// zero-valued one when the product has never been stocked in that
	// warehouse. The returned record is locked for update.
	LockOrCreate(ctx context.Context, productID, warehouseID int64) (*Record, error)
	// Update writes back a mutated record.
	Update(ctx context.Context, rec *Record) error
}

// Reader defines the read-only projections used by the inventory query API.
type Reader interface {
	// Get returns the record for (productID, warehouseID), or ErrNotFound.
	Get(ctx context.Context, productID, warehouseID int64) (*Record, error)
	// SumByProduct aggregates on-hand and reserved quantities for a product
	// across all warehouses. A product with no records sums to zero.
	SumByProduct(ctx context.Context, productID int64) (onHand, reserved decimal.Decimal, err error)
}

// Package warehouse models fulfillment locations. Warehouses have no behavior
// of their own; they partition inventory records.
package warehouse

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a warehouse does not exist.
var ErrNotFound = errors.New("warehouse not found")

// DefaultName is the name of the warehouse created implicitly when none exists.
const DefaultName = "Main"

// Warehouse is a fulfillment location.
type Warehouse struct {
	ID   int64
	Name string
}

// Repository defines persistence operations for warehouses.
type Repository interface {
	// Create persists a new warehouse and assigns its ID.
	Create(ctx context.Context, w *Warehouse) error
	// List returns all warehouses ordered by ID ascending.
	List(ctx context.Context) ([]Warehouse, error)
	// Default returns the warehouse with the lowest ID, creating one named
	// DefaultName when none exists yet.
	//
	// The lowest-ID heuristic mirrors the single-warehouse routing the system
	// currently uses; callers that need a specific warehouse should be
	// extended to pass one explicitly.
	Default(ctx context.Context) (*Warehouse, error)
}

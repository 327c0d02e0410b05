// Package order contains the order aggregate and the allocation engine that
// reserves, consumes, and releases stock as orders move through their
// lifecycle.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusCreated   Status = "created"
	StatusPaid      Status = "paid"
	StatusFulfilled Status = "fulfilled"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates a status string from config or transport input.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusCreated, StatusPaid, StatusFulfilled, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown order status %q", s)
	}
}

// allocatable reports whether an order in this status still holds live
// reservations that may be consumed by fulfillment.
func (s Status) allocatable() bool {
	return s == StatusCreated || s == StatusPaid
}

// Sentinel errors for order operations.
var (
	ErrEmptyItems    = errors.New("items required")
	ErrOrderNotFound = errors.New("order not found")
)

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID int64
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %d", e.ProductID)
}

// ProductNotFoundError indicates a requested product does not exist in the
// catalog.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// InvalidTransitionError indicates an operation was attempted from a status
// that forbids it.
type InvalidTransitionError struct {
	OrderID int64
	From    Status
	To      Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %d: cannot transition from %s to %s", e.OrderID, e.From, e.To)
}

// Order is the aggregate root: a header owning an ordered list of lines.
// Invariant once persisted: Total equals the sum of all line totals.
type Order struct {
	ID         int64
	CustomerID int64
	Status     Status
	Currency   string
	Total      decimal.Decimal
	Channel    string
	CreatedAt  time.Time
	Lines      []Line
}

// Line is a single order line. Lines are immutable after creation; fulfillment
// and cancellation only read them for inventory accounting.
type Line struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Qty       int
	Price     decimal.Decimal
	LineTotal decimal.Decimal
}

// ListFilter narrows and pages an order listing.
type ListFilter struct {
	Status     Status // empty matches any status
	CustomerID int64  // zero matches any customer
	Page       int    // 1-based
	PageSize   int
}

// Repository defines the transactional persistence operations the engine
// performs on orders. All methods must run inside the transaction of the
// enclosing unit of work.
type Repository interface {
	// Create persists the order header and all lines, assigning IDs.
	Create(ctx context.Context, o *Order) error
	// GetForUpdate loads an order with its lines under a row lock, or
	// ErrOrderNotFound.
	GetForUpdate(ctx context.Context, id int64) (*Order, error)
	// UpdateStatus sets the status of an existing order.
	UpdateStatus(ctx context.Context, id int64, status Status) error
}

// Reader defines read-only order access outside of engine transactions.
type Reader interface {
	// Get loads an order with its lines, or ErrOrderNotFound.
	Get(ctx context.Context, id int64) (*Order, error)
	// List returns orders matching the filter, newest first.
	List(ctx context.Context, f ListFilter) ([]Order, error)
}

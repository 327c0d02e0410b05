package order

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/novadistro/backoffice/internal/domain/inventory"
	"github.com/novadistro/backoffice/internal/domain/product"
	"github.com/novadistro/backoffice/internal/domain/warehouse"
)

// Tx exposes the repositories bound to one storage transaction. Everything the
// engine mutates during a single operation goes through the same Tx, so either
// all of it commits or none of it does.
type Tx interface {
	Orders() Repository
	Inventory() inventory.Repository
	Warehouses() warehouse.Repository
}

// UnitOfWork runs a function inside a single storage transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Notifier is told about committed order state changes. Implementations must
// be best-effort: they swallow or log their own failures and never block the
// engine for long.
type Notifier interface {
	OrderUpdated(ctx context.Context, o *Order)
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	CustomerID int64
	Channel    string
	Items      []ItemRequest
}

// ItemRequest is one requested line. Price, when set, overrides the catalog
// price for the snapshot; the product must still exist in the catalog.
type ItemRequest struct {
	ProductID int64
	Qty       int
	Price     *decimal.Decimal
}

// Service is the allocation engine. Create reserves stock, Fulfill consumes
// it, Cancel releases it; each runs as one atomic unit of work.
type Service struct {
	products  product.Repository
	uow       UnitOfWork
	reader    Reader
	notifiers []Notifier
	currency  string
	channel   string

	// terminal holds statuses that block cancellation in addition to
	// fulfilled and cancelled. Extended deployments configure e.g. shipped
	// and delivered here.
	terminal map[Status]struct{}
}

// Config carries the engine's policy knobs.
type Config struct {
	// Currency is stamped on every new order.
	Currency string
	// DefaultChannel is used when a create request carries no channel tag.
	DefaultChannel string
	// ExtraTerminalStatuses lists additional statuses from which cancellation
	// is disallowed.
	ExtraTerminalStatuses []Status
}

// NewService creates the allocation engine.
func NewService(cfg Config, products product.Repository, uow UnitOfWork, reader Reader, notifiers ...Notifier) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "NGN"
	}
	if cfg.DefaultChannel == "" {
		cfg.DefaultChannel = "chatbot"
	}
	terminal := map[Status]struct{}{
		StatusFulfilled: {},
		StatusCancelled: {},
	}
	for _, st := range cfg.ExtraTerminalStatuses {
		terminal[st] = struct{}{}
	}
	return &Service{
		products:  products,
		uow:       uow,
		reader:    reader,
		notifiers: notifiers,
		terminal:  terminal,
		currency:  cfg.Currency,
		channel:   cfg.DefaultChannel,
	}
}

// maxPageSize caps a listing page; larger requests are served the cap.
const maxPageSize = 200

// Create validates the request, snapshots catalog prices, reserves stock for
// every line against the default warehouse, and persists the order with its
// computed total. The whole operation is all-or-nothing: any failure leaves no
// order and no reservation behind.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	// Validate quantities and collect distinct product IDs.
	seen := make(map[int64]struct{}, len(req.Items))
	ids := make([]int64, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Qty <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		if _, ok := seen[item.ProductID]; !ok {
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}

	// Batch price lookup. Every referenced product must exist, even when the
	// request overrides its price.
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	prices := product.PriceMap(fetched)
	for _, item := range req.Items {
		if _, ok := prices[item.ProductID]; !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
	}

	channel := req.Channel
	if channel == "" {
		channel = s.channel
	}

	o := &Order{
		CustomerID: req.CustomerID,
		Status:     StatusCreated,
		Currency:   s.currency,
		Channel:    channel,
		Total:      decimal.Zero,
	}

	err = s.uow.WithinTx(ctx, func(tx Tx) error {
		wh, err := tx.Warehouses().Default(ctx)
		if err != nil {
			return errors.Wrap(err, "resolve default warehouse")
		}

		// Lock rows in ascending product order so two concurrent
		// multi-line creates with opposite line orders cannot deadlock.
		locked := make(map[int64]*inventory.Record, len(ids))
		for _, id := range sortedIDs(ids) {
			rec, err := tx.Inventory().LockOrCreate(ctx, id, wh.ID)
			if err != nil {
				return errors.Wrapf(err, "lock inventory for product %d", id)
			}
			locked[id] = rec
		}

		// Reserve per line, in request order, so a shortfall names the
		// first offending line of the request.
		for _, item := range req.Items {
			price := prices[item.ProductID]
			if item.Price != nil {
				price = *item.Price
			}
			qty := decimal.NewFromInt(int64(item.Qty))

			if err := locked[item.ProductID].Reserve(qty); err != nil {
				return err
			}

			lineTotal := price.Mul(qty).Round(2)
			o.Total = o.Total.Add(lineTotal)
			o.Lines = append(o.Lines, Line{
				ProductID: item.ProductID,
				Qty:       item.Qty,
				Price:     price,
				LineTotal: lineTotal,
			})
		}

		for _, id := range ids {
			if err := tx.Inventory().Update(ctx, locked[id]); err != nil {
				return errors.Wrapf(err, "update inventory for product %d", id)
			}
		}

		if err := tx.Orders().Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, o)
	return o, nil
}

// Fulfill converts an order's reservations into actual stock consumption and
// marks it fulfilled. It is only permitted while the order still holds live
// reservations (status created or paid); repeating it on a fulfilled order
// fails without touching inventory again.
func (s *Service) Fulfill(ctx context.Context, orderID int64) (*Order, error) {
	var fulfilled *Order
	err := s.uow.WithinTx(ctx, func(tx Tx) error {
		o, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.Status.allocatable() {
			return &InvalidTransitionError{OrderID: o.ID, From: o.Status, To: StatusFulfilled}
		}

		wh, err := tx.Warehouses().Default(ctx)
		if err != nil {
			return errors.Wrap(err, "resolve default warehouse")
		}

		for _, line := range sortedByProduct(o.Lines) {
			rec, err := tx.Inventory().LockOrCreate(ctx, line.ProductID, wh.ID)
			if err != nil {
				return errors.Wrapf(err, "lock inventory for product %d", line.ProductID)
			}
			if err := rec.Consume(decimal.NewFromInt(int64(line.Qty))); err != nil {
				return err
			}
			if err := tx.Inventory().Update(ctx, rec); err != nil {
				return errors.Wrapf(err, "update inventory for product %d", line.ProductID)
			}
		}

		if err := tx.Orders().UpdateStatus(ctx, o.ID, StatusFulfilled); err != nil {
			return errors.Wrap(err, "update order status")
		}
		o.Status = StatusFulfilled
		fulfilled = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, fulfilled)
	return fulfilled, nil
}

// Cancel releases every reservation the order still holds and marks it
// cancelled. On-hand stock is never touched. Orders in a terminal status
// cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, orderID int64) (*Order, error) {
	var cancelled *Order
	err := s.uow.WithinTx(ctx, func(tx Tx) error {
		o, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if _, isTerminal := s.terminal[o.Status]; isTerminal {
			return &InvalidTransitionError{OrderID: o.ID, From: o.Status, To: StatusCancelled}
		}

		wh, err := tx.Warehouses().Default(ctx)
		if err != nil {
			return errors.Wrap(err, "resolve default warehouse")
		}

		for _, line := range sortedByProduct(o.Lines) {
			rec, err := tx.Inventory().LockOrCreate(ctx, line.ProductID, wh.ID)
			if err != nil {
				return errors.Wrapf(err, "lock inventory for product %d", line.ProductID)
			}
			rec.Release(decimal.NewFromInt(int64(line.Qty)))
			if err := tx.Inventory().Update(ctx, rec); err != nil {
				return errors.Wrapf(err, "update inventory for product %d", line.ProductID)
			}
		}

		if err := tx.Orders().UpdateStatus(ctx, o.ID, StatusCancelled); err != nil {
			return errors.Wrap(err, "update order status")
		}
		o.Status = StatusCancelled
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, cancelled)
	return cancelled, nil
}

// Pay transitions an order from created to paid. No inventory movement:
// reservations stay in place until fulfillment or cancellation.
func (s *Service) Pay(ctx context.Context, orderID int64) (*Order, error) {
	var paid *Order
	err := s.uow.WithinTx(ctx, func(tx Tx) error {
		o, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusCreated {
			return &InvalidTransitionError{OrderID: o.ID, From: o.Status, To: StatusPaid}
		}
		if err := tx.Orders().UpdateStatus(ctx, o.ID, StatusPaid); err != nil {
			return errors.Wrap(err, "update order status")
		}
		o.Status = StatusPaid
		paid = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, paid)
	return paid, nil
}

// Get loads a single order with its lines.
func (s *Service) Get(ctx context.Context, orderID int64) (*Order, error) {
	return s.reader.Get(ctx, orderID)
}

// List returns orders matching the filter, newest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	return s.reader.List(ctx, f)
}

// notify fans a committed state change out to the best-effort collaborators.
// Notifier implementations own their error handling, so a failing audit sink
// or event bus can never undo a committed transaction.
func (s *Service) notify(ctx context.Context, o *Order) {
	for _, n := range s.notifiers {
		n.OrderUpdated(ctx, o)
	}
}

// sortedByProduct returns the lines ordered by ascending product ID so that
// concurrent fulfill/cancel operations lock inventory rows in a consistent
// order.
func sortedByProduct(lines []Line) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

func sortedIDs(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

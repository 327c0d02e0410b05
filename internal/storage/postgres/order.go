package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/novadistro/backoffice/internal/domain/order"
)

var (
	_ order.Repository = (*OrderRepository)(nil)
	_ order.Reader     = (*OrderReader)(nil)
)

// OrderRepository implements the transactional order operations. It is always
// bound to the transaction of the enclosing unit of work.
type OrderRepository struct {
	db dbtx
}

// Create inserts the order header and its lines, assigning generated IDs.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO orders (customer_id, status, currency, total, channel)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		o.CustomerID, o.Status, o.Currency, o.Total, o.Channel,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert order")
	}

	for i := range o.Lines {
		line := &o.Lines[i]
		line.OrderID = o.ID
		err := r.db.QueryRow(ctx, `
			INSERT INTO order_lines (order_id, product_id, qty, price, line_total)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			line.OrderID, line.ProductID, line.Qty, line.Price, line.LineTotal,
		).Scan(&line.ID)
		if err != nil {
			return errors.Wrapf(err, "insert order line for product %d", line.ProductID)
		}
	}
	return nil
}

// GetForUpdate loads an order and its lines, locking the header row for the
// rest of the transaction.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id int64) (*order.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `
		SELECT id, customer_id, status, currency, total, channel, created_at
		FROM orders WHERE id = $1
		FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if o.Lines, err = fetchLines(ctx, r.db, id); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateStatus sets the status of an existing order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, status order.Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return errors.Wrapf(err, "update order %d status", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

// OrderReader implements read-only order access over the pool.
type OrderReader struct {
	db dbtx
}

// NewOrderReader returns an OrderReader that uses the given pool.
func NewOrderReader(pool *pgxpool.Pool) *OrderReader {
	return &OrderReader{db: pool}
}

// Get loads an order with its lines.
func (r *OrderReader) Get(ctx context.Context, id int64) (*order.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `
		SELECT id, customer_id, status, currency, total, channel, created_at
		FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if o.Lines, err = fetchLines(ctx, r.db, id); err != nil {
		return nil, err
	}
	return o, nil
}

// List returns orders matching the filter, newest first. Zero filter fields
// match everything.
func (r *OrderReader) List(ctx context.Context, f order.ListFilter) ([]order.Order, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, customer_id, status, currency, total, channel, created_at
		FROM orders
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = 0 OR customer_id = $2)
		ORDER BY id DESC
		LIMIT $3 OFFSET $4`,
		string(f.Status), f.CustomerID, f.PageSize, (f.Page-1)*f.PageSize)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		var o order.Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.Status, &o.Currency, &o.Total, &o.Channel, &o.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var o order.Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.Status, &o.Currency, &o.Total, &o.Channel, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan order")
	}
	return &o, nil
}

func fetchLines(ctx context.Context, db dbtx, orderID int64) ([]order.Line, error) {
	rows, err := db.Query(ctx, `
		SELECT id, order_id, product_id, qty, price, line_total
		FROM order_lines WHERE order_id = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch order lines")
	}
	defer rows.Close()

	var lines []order.Line
	for rows.Next() {
		var l order.Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Qty, &l.Price, &l.LineTotal); err != nil {
			return nil, errors.Wrap(err, "scan order line")
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

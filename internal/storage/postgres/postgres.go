// Package postgres implements the engine's storage ports on PostgreSQL via
// pgx. Monetary and quantity columns are NUMERIC and map to shopspring
// decimals through the registered pgx codec, so no value ever passes through
// binary floating point.
package postgres

import (
	"context"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/novadistro/backoffice/db"
	"github.com/novadistro/backoffice/internal/domain/inventory"
	"github.com/novadistro/backoffice/internal/domain/order"
	"github.com/novadistro/backoffice/internal/domain/warehouse"
)

// dbtx is the subset of pgx operations shared by *pgxpool.Pool and pgx.Tx,
// letting the same repository code run pooled or inside a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing database config")
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating connection pool")
	}

	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, db.Schema); err != nil {
		return errors.Wrap(err, "running migrations")
	}
	return nil
}

// Store implements order.UnitOfWork on a connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ order.UnitOfWork = (*Store)(nil)

// NewStore returns a Store over the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithinTx runs fn inside a single database transaction. Row locks taken by
// the repositories (SELECT ... FOR UPDATE) are held until commit or rollback,
// which serializes competing mutations of the same inventory rows.
func (s *Store) WithinTx(ctx context.Context, fn func(tx order.Tx) error) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer pgtx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(&storeTx{db: pgtx}); err != nil {
		return err
	}
	if err := pgtx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// storeTx bundles the repositories bound to one transaction.
type storeTx struct {
	db pgx.Tx
}

func (t *storeTx) Orders() order.Repository { return &OrderRepository{db: t.db} }

func (t *storeTx) Inventory() inventory.Repository { return &InventoryRepository{db: t.db} }

func (t *storeTx) Warehouses() warehouse.Repository { return &WarehouseRepository{db: t.db} }

// Command seed-db loads the product catalog from a JSON file and, optionally,
// opening stock levels from gzipped CSV ledgers exported by the legacy
// back office. Ledger files are parsed in parallel and applied in one pass.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/novadistro/backoffice/internal/domain/product"
	"github.com/novadistro/backoffice/internal/domain/warehouse"
	"github.com/novadistro/backoffice/internal/storage/postgres"
)

type productJSON struct {
	SKU   string          `json:"sku"`
	Name  string          `json:"name"`
	Unit  string          `json:"unit"`
	Price decimal.Decimal `json:"price"`
}

// stockRow is one line of a ledger file: warehouse,sku,on_hand,reorder_point.
type stockRow struct {
	Warehouse    string
	SKU          string
	OnHand       decimal.Decimal
	ReorderPoint decimal.Decimal
}

func main() {
	var (
		databaseURL  string
		productsFile string
		stockDir     string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&stockDir, "stock-dir", "", "directory with *.csv.gz stock ledgers (optional)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, stockDir); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, stockDir string) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if stockDir != "" {
		if err := seedStock(ctx, pool, stockDir); err != nil {
			return errors.Wrap(err, "seed stock")
		}
	}
	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	var products []productJSON
	if err := json.Unmarshal(raw, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	repo := postgres.NewProductRepository(pool)
	for _, p := range products {
		unit := p.Unit
		if unit == "" {
			unit = "unit"
		}
		if err := repo.Upsert(ctx, &product.Product{
			SKU:   p.SKU,
			Name:  p.Name,
			Unit:  unit,
			Price: p.Price,
		}); err != nil {
			return err
		}
	}
	slog.Info("products seeded", slog.Int("count", len(products)))
	return nil
}

func seedStock(ctx context.Context, pool *pgxpool.Pool, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "list ledger files")
	}
	if len(files) == 0 {
		slog.Warn("no ledger files found", slog.String("dir", dir))
		return nil
	}

	// Parse all ledgers concurrently; apply after every file parsed cleanly.
	results := make([][]stockRow, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			rows, err := parseLedger(gctx, f)
			if err != nil {
				return errors.Wrapf(err, "parse %s", f)
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// The default warehouse is the one with the lowest ID, so it must exist
	// before any ledger-named warehouse is created.
	if _, err := pool.Exec(ctx, `
		INSERT INTO warehouses (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING`, warehouse.DefaultName); err != nil {
		return errors.Wrap(err, "ensure default warehouse")
	}

	total := 0
	for _, rows := range results {
		for _, row := range rows {
			if err := applyStockRow(ctx, pool, row); err != nil {
				return err
			}
			total++
		}
	}
	slog.Info("stock seeded", slog.Int("rows", total), slog.Int("files", len(files)))
	return nil
}

func parseLedger(ctx context.Context, path string) ([]stockRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "open gzip stream")
	}
	defer gz.Close()

	var rows []stockRow
	r := csv.NewReader(gz)
	r.FieldsPerRecord = 4
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		onHand, err := decimal.NewFromString(strings.TrimSpace(record[2]))
		if err != nil {
			return nil, errors.Wrapf(err, "bad on_hand %q", record[2])
		}
		reorder, err := decimal.NewFromString(strings.TrimSpace(record[3]))
		if err != nil {
			return nil, errors.Wrapf(err, "bad reorder_point %q", record[3])
		}
		rows = append(rows, stockRow{
			Warehouse:    strings.TrimSpace(record[0]),
			SKU:          strings.TrimSpace(record[1]),
			OnHand:       onHand,
			ReorderPoint: reorder,
		})
	}
}

func applyStockRow(ctx context.Context, pool *pgxpool.Pool, row stockRow) error {
	var warehouseID int64
	err := pool.QueryRow(ctx, `
		INSERT INTO warehouses (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, row.Warehouse,
	).Scan(&warehouseID)
	if err != nil {
		return errors.Wrapf(err, "upsert warehouse %q", row.Warehouse)
	}

	var productID int64
	err = pool.QueryRow(ctx, `SELECT id FROM products WHERE sku = $1`, row.SKU).Scan(&productID)
	if err != nil {
		return errors.Wrapf(err, "unknown sku %q in ledger", row.SKU)
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO inventory_records (product_id, warehouse_id, on_hand, reorder_point)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id, warehouse_id) DO UPDATE
		SET on_hand = EXCLUDED.on_hand, reorder_point = EXCLUDED.reorder_point`,
		productID, warehouseID, row.OnHand, row.ReorderPoint)
	if err != nil {
		return errors.Wrapf(err, "set stock for %q in %q", row.SKU, row.Warehouse)
	}
	return nil
}

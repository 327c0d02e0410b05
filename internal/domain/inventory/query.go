package inventory

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// View is a read-only stock projection for one product, either scoped to a
// single warehouse or aggregated across all of them.
type View struct {
	ProductID   int64
	WarehouseID int64 // 0 when aggregated across warehouses
	OnHand      decimal.Decimal
	Reserved    decimal.Decimal
	Available   decimal.Decimal
	LowStock    bool
}

// QueryService answers stock level questions. It has no side effects.
type QueryService struct {
	records Reader
}

// NewQueryService creates a QueryService over the given reader.
func NewQueryService(records Reader) *QueryService {
	return &QueryService{records: records}
}

// Levels returns the stock view for a product. When warehouseID is non-zero
// the view is scoped to that warehouse; a missing record reads as all-zero
// because records are created lazily. When warehouseID is zero the view sums
// every warehouse, and the low-stock flag is omitted since reorder points are
// per warehouse.
func (s *QueryService) Levels(ctx context.Context, productID, warehouseID int64) (*View, error) {
	if warehouseID != 0 {
		rec, err := s.records.Get(ctx, productID, warehouseID)
		if errors.Is(err, ErrNotFound) {
			return &View{ProductID: productID, WarehouseID: warehouseID}, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "get inventory record")
		}
		return &View{
			ProductID:   productID,
			WarehouseID: warehouseID,
			OnHand:      rec.OnHand,
			Reserved:    rec.Reserved,
			Available:   rec.Available(),
			LowStock:    rec.LowStock(),
		}, nil
	}

	onHand, reserved, err := s.records.SumByProduct(ctx, productID)
	if err != nil {
		return nil, errors.Wrap(err, "sum inventory records")
	}
	return &View{
		ProductID: productID,
		OnHand:    onHand,
		Reserved:  reserved,
		Available: onHand.Sub(reserved),
	}, nil
}

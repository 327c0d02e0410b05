package inventory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testRecord(onHand, reserved string) *Record {
	return &Record{
		ID:          1,
		ProductID:   7,
		WarehouseID: 1,
		OnHand:      dec(onHand),
		Reserved:    dec(reserved),
	}
}

func TestRecord_Available(t *testing.T) {
	assert.Equal(t, "6", testRecord("10", "4").Available().String())
	assert.True(t, testRecord("5", "5").Available().IsZero())
}

func TestRecord_Reserve(t *testing.T) {
	rec := testRecord("10", "4")

	require.NoError(t, rec.Reserve(dec("6")))
	assert.Equal(t, "10", rec.OnHand.String())
	assert.Equal(t, "10", rec.Reserved.String())
	assert.True(t, rec.Available().IsZero())
}

func TestRecord_Reserve_Insufficient(t *testing.T) {
	rec := testRecord("10", "4")

	err := rec.Reserve(dec("7"))

	var isErr *InsufficientStockError
	require.ErrorAs(t, err, &isErr)
	assert.Equal(t, int64(7), isErr.ProductID)
	assert.Equal(t, "7", isErr.Requested.String())
	assert.Equal(t, "6", isErr.Available.String())

	// Failed reserve must not mutate the record.
	assert.Equal(t, "4", rec.Reserved.String())
}

func TestRecord_Reserve_FractionalBoundary(t *testing.T) {
	rec := testRecord("10", "4")

	err := rec.Reserve(dec("6.01"))
	var isErr *InsufficientStockError
	require.ErrorAs(t, err, &isErr)
}

func TestRecord_Consume(t *testing.T) {
	rec := testRecord("10", "4")

	require.NoError(t, rec.Consume(dec("4")))
	assert.Equal(t, "6", rec.OnHand.String())
	assert.True(t, rec.Reserved.IsZero())
}

func TestRecord_Consume_ReservedShortfall(t *testing.T) {
	rec := testRecord("10", "2")

	err := rec.Consume(dec("4"))

	var sfErr *ShortfallError
	require.ErrorAs(t, err, &sfErr)
	assert.Equal(t, "reserved", sfErr.Field)
	assert.Equal(t, "2", sfErr.Have.String())
	assert.Equal(t, "4", sfErr.Need.String())
	assert.Equal(t, "10", rec.OnHand.String())
}

func TestRecord_Consume_OnHandShortfall(t *testing.T) {
	// Drifted record: more reserved than on hand. The check constraint makes
	// this unreachable in postgres, Consume still refuses to go negative.
	rec := testRecord("3", "4")

	err := rec.Consume(dec("4"))

	var sfErr *ShortfallError
	require.ErrorAs(t, err, &sfErr)
	assert.Equal(t, "on_hand", sfErr.Field)
}

func TestRecord_Release(t *testing.T) {
	rec := testRecord("10", "4")

	rec.Release(dec("3"))
	assert.Equal(t, "1", rec.Reserved.String())
	assert.Equal(t, "10", rec.OnHand.String())
}

func TestRecord_Release_ClampedAtZero(t *testing.T) {
	rec := testRecord("10", "2")

	rec.Release(dec("5"))
	assert.True(t, rec.Reserved.IsZero())
}

func TestRecord_LowStock(t *testing.T) {
	rec := testRecord("10", "0")
	rec.ReorderPoint = dec("10")
	assert.True(t, rec.LowStock())

	rec.OnHand = dec("10.5")
	assert.False(t, rec.LowStock())
}

// --- QueryService ---

type stubReader struct {
	records map[[2]int64]*Record
}

func (r *stubReader) Get(_ context.Context, productID, warehouseID int64) (*Record, error) {
	rec, ok := r.records[[2]int64{productID, warehouseID}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *stubReader) SumByProduct(_ context.Context, productID int64) (decimal.Decimal, decimal.Decimal, error) {
	onHand, reserved := decimal.Zero, decimal.Zero
	for key, rec := range r.records {
		if key[0] == productID {
			onHand = onHand.Add(rec.OnHand)
			reserved = reserved.Add(rec.Reserved)
		}
	}
	return onHand, reserved, nil
}

func TestLevels_SingleWarehouse(t *testing.T) {
	svc := NewQueryService(&stubReader{records: map[[2]int64]*Record{
		{7, 1}: {ProductID: 7, WarehouseID: 1, OnHand: dec("10"), Reserved: dec("4"), ReorderPoint: dec("12")},
	}})

	view, err := svc.Levels(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, "10", view.OnHand.String())
	assert.Equal(t, "4", view.Reserved.String())
	assert.Equal(t, "6", view.Available.String())
	assert.True(t, view.LowStock)
}

func TestLevels_MissingRecordReadsAsZero(t *testing.T) {
	svc := NewQueryService(&stubReader{records: map[[2]int64]*Record{}})

	view, err := svc.Levels(context.Background(), 7, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(7), view.ProductID)
	assert.Equal(t, int64(3), view.WarehouseID)
	assert.True(t, view.OnHand.IsZero())
	assert.True(t, view.Available.IsZero())
	assert.False(t, view.LowStock)
}

func TestLevels_AggregatedAcrossWarehouses(t *testing.T) {
	svc := NewQueryService(&stubReader{records: map[[2]int64]*Record{
		{7, 1}: {ProductID: 7, WarehouseID: 1, OnHand: dec("10"), Reserved: dec("4")},
		{7, 2}: {ProductID: 7, WarehouseID: 2, OnHand: dec("2.5"), Reserved: dec("0.5")},
		{8, 1}: {ProductID: 8, WarehouseID: 1, OnHand: dec("99"), Reserved: dec("0")},
	}})

	view, err := svc.Levels(context.Background(), 7, 0)
	require.NoError(t, err)
	assert.Equal(t, "12.5", view.OnHand.String())
	assert.Equal(t, "4.5", view.Reserved.String())
	assert.Equal(t, "8", view.Available.String())
}

// Package memory provides an in-memory implementation of the engine's storage
// ports. It backs unit tests and keeps the engine runnable without a
// database; transactions are serialized by a single mutex and staged on a
// copy that only replaces the live state on commit.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/novadistro/backoffice/internal/domain/inventory"
	"github.com/novadistro/backoffice/internal/domain/order"
	"github.com/novadistro/backoffice/internal/domain/product"
	"github.com/novadistro/backoffice/internal/domain/warehouse"
)

type recordKey struct {
	productID   int64
	warehouseID int64
}

// state is the full snapshot guarded by Store.mu. Transactions mutate a deep
// copy of it.
type state struct {
	products   map[int64]product.Product
	warehouses map[int64]warehouse.Warehouse
	records    map[recordKey]inventory.Record
	orders     map[int64]order.Order

	nextWarehouseID int64
	nextRecordID    int64
	nextOrderID     int64
	nextLineID      int64
}

func (s *state) clone() *state {
	c := &state{
		products:        make(map[int64]product.Product, len(s.products)),
		warehouses:      make(map[int64]warehouse.Warehouse, len(s.warehouses)),
		records:         make(map[recordKey]inventory.Record, len(s.records)),
		orders:          make(map[int64]order.Order, len(s.orders)),
		nextWarehouseID: s.nextWarehouseID,
		nextRecordID:    s.nextRecordID,
		nextOrderID:     s.nextOrderID,
		nextLineID:      s.nextLineID,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.warehouses {
		c.warehouses[k] = v
	}
	for k, v := range s.records {
		c.records[k] = v
	}
	for k, v := range s.orders {
		v.Lines = append([]order.Line(nil), v.Lines...)
		c.orders[k] = v
	}
	return c
}

// Store holds the shared state. The typed views returned by Products, Orders,
// Inventory, and Warehouses satisfy the engine's read-side ports; WithinTx
// satisfies order.UnitOfWork.
type Store struct {
	mu   sync.Mutex
	live *state
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{live: &state{
		products:        make(map[int64]product.Product),
		warehouses:      make(map[int64]warehouse.Warehouse),
		records:         make(map[recordKey]inventory.Record),
		orders:          make(map[int64]order.Order),
		nextWarehouseID: 1,
		nextRecordID:    1,
		nextOrderID:     1,
		nextLineID:      1,
	}}
}

var _ order.UnitOfWork = (*Store)(nil)

// WithinTx runs fn against a staged copy of the store. The copy becomes the
// live state only when fn succeeds.
func (s *Store) WithinTx(_ context.Context, fn func(tx order.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.live.clone()
	if err := fn(&memTx{st: staged}); err != nil {
		return err
	}
	s.live = staged
	return nil
}

// Products returns the catalog view.
func (s *Store) Products() product.Repository { return &productView{s: s} }

// Orders returns the order read view.
func (s *Store) Orders() order.Reader { return &orderView{s: s} }

// Inventory returns the stock read view.
func (s *Store) Inventory() inventory.Reader { return &inventoryView{s: s} }

// Warehouses returns the warehouse repository view. Its mutations apply
// immediately, outside any unit of work, matching how warehouse management is
// exposed through the API.
func (s *Store) Warehouses() warehouse.Repository { return &warehouseView{s: s} }

// SeedProduct inserts or replaces a catalog product.
func (s *Store) SeedProduct(p product.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live.products[p.ID] = p
}

// SeedStock sets the inventory record for (productID, warehouseID), creating
// the warehouse when it does not exist yet.
func (s *Store) SeedStock(productID, warehouseID int64, onHand, reserved, reorderPoint decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live.warehouses[warehouseID]; !ok {
		s.live.warehouses[warehouseID] = warehouse.Warehouse{ID: warehouseID, Name: warehouse.DefaultName}
		if warehouseID >= s.live.nextWarehouseID {
			s.live.nextWarehouseID = warehouseID + 1
		}
	}
	key := recordKey{productID: productID, warehouseID: warehouseID}
	rec, ok := s.live.records[key]
	if !ok {
		rec = inventory.Record{ID: s.live.nextRecordID, ProductID: productID, WarehouseID: warehouseID}
		s.live.nextRecordID++
	}
	rec.OnHand = onHand
	rec.Reserved = reserved
	rec.ReorderPoint = reorderPoint
	s.live.records[key] = rec
}

// --- product view ---

type productView struct {
	s *Store
}

func (v *productView) GetByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := v.s.live.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (v *productView) GetBySKU(_ context.Context, sku string) (*product.Product, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	for _, p := range v.s.live.products {
		if p.SKU == sku {
			cp := p
			return &cp, nil
		}
	}
	return nil, product.ErrNotFound
}

func (v *productView) List(_ context.Context) ([]product.Product, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	out := make([]product.Product, 0, len(v.s.live.products))
	for _, p := range v.s.live.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- order view ---

type orderView struct {
	s *Store
}

func (v *orderView) Get(_ context.Context, id int64) (*order.Order, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	o, ok := v.s.live.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	cp := o
	cp.Lines = append([]order.Line(nil), o.Lines...)
	return &cp, nil
}

func (v *orderView) List(_ context.Context, f order.ListFilter) ([]order.Order, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	out := make([]order.Order, 0, len(v.s.live.orders))
	for _, o := range v.s.live.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.CustomerID != 0 && o.CustomerID != f.CustomerID {
			continue
		}
		cp := o
		cp.Lines = append([]order.Line(nil), o.Lines...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	start := (f.Page - 1) * f.PageSize
	if start >= len(out) {
		return nil, nil
	}
	end := min(start+f.PageSize, len(out))
	return out[start:end], nil
}

// --- inventory view ---

type inventoryView struct {
	s *Store
}

func (v *inventoryView) Get(_ context.Context, productID, warehouseID int64) (*inventory.Record, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	rec, ok := v.s.live.records[recordKey{productID: productID, warehouseID: warehouseID}]
	if !ok {
		return nil, inventory.ErrNotFound
	}
	cp := rec
	return &cp, nil
}

func (v *inventoryView) SumByProduct(_ context.Context, productID int64) (decimal.Decimal, decimal.Decimal, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	onHand, reserved := decimal.Zero, decimal.Zero
	for key, rec := range v.s.live.records {
		if key.productID == productID {
			onHand = onHand.Add(rec.OnHand)
			reserved = reserved.Add(rec.Reserved)
		}
	}
	return onHand, reserved, nil
}

// --- warehouse view ---

type warehouseView struct {
	s *Store
}

func (v *warehouseView) Create(_ context.Context, w *warehouse.Warehouse) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	w.ID = v.s.live.nextWarehouseID
	v.s.live.nextWarehouseID++
	v.s.live.warehouses[w.ID] = *w
	return nil
}

func (v *warehouseView) List(_ context.Context) ([]warehouse.Warehouse, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return sortedWarehouses(v.s.live), nil
}

func (v *warehouseView) Default(ctx context.Context) (*warehouse.Warehouse, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if all := sortedWarehouses(v.s.live); len(all) > 0 {
		cp := all[0]
		return &cp, nil
	}
	w := warehouse.Warehouse{ID: v.s.live.nextWarehouseID, Name: warehouse.DefaultName}
	v.s.live.nextWarehouseID++
	v.s.live.warehouses[w.ID] = w
	return &w, nil
}

func sortedWarehouses(st *state) []warehouse.Warehouse {
	out := make([]warehouse.Warehouse, 0, len(st.warehouses))
	for _, w := range st.warehouses {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- transactional view ---

type memTx struct {
	st *state
}

func (t *memTx) Orders() order.Repository         { return &memOrders{st: t.st} }
func (t *memTx) Inventory() inventory.Repository  { return &memInventory{st: t.st} }
func (t *memTx) Warehouses() warehouse.Repository { return &memWarehouses{st: t.st} }

type memOrders struct {
	st *state
}

func (r *memOrders) Create(_ context.Context, o *order.Order) error {
	o.ID = r.st.nextOrderID
	r.st.nextOrderID++
	for i := range o.Lines {
		o.Lines[i].ID = r.st.nextLineID
		o.Lines[i].OrderID = o.ID
		r.st.nextLineID++
	}
	cp := *o
	cp.Lines = append([]order.Line(nil), o.Lines...)
	r.st.orders[o.ID] = cp
	return nil
}

func (r *memOrders) GetForUpdate(_ context.Context, id int64) (*order.Order, error) {
	o, ok := r.st.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	cp := o
	cp.Lines = append([]order.Line(nil), o.Lines...)
	return &cp, nil
}

func (r *memOrders) UpdateStatus(_ context.Context, id int64, status order.Status) error {
	o, ok := r.st.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.Status = status
	r.st.orders[id] = o
	return nil
}

type memInventory struct {
	st *state
}

func (r *memInventory) LockOrCreate(_ context.Context, productID, warehouseID int64) (*inventory.Record, error) {
	key := recordKey{productID: productID, warehouseID: warehouseID}
	rec, ok := r.st.records[key]
	if !ok {
		rec = inventory.Record{ID: r.st.nextRecordID, ProductID: productID, WarehouseID: warehouseID}
		r.st.nextRecordID++
		r.st.records[key] = rec
	}
	cp := rec
	return &cp, nil
}

func (r *memInventory) Update(_ context.Context, rec *inventory.Record) error {
	key := recordKey{productID: rec.ProductID, warehouseID: rec.WarehouseID}
	if _, ok := r.st.records[key]; !ok {
		return inventory.ErrNotFound
	}
	r.st.records[key] = *rec
	return nil
}

type memWarehouses struct {
	st *state
}

func (r *memWarehouses) Create(_ context.Context, w *warehouse.Warehouse) error {
	w.ID = r.st.nextWarehouseID
	r.st.nextWarehouseID++
	r.st.warehouses[w.ID] = *w
	return nil
}

func (r *memWarehouses) List(_ context.Context) ([]warehouse.Warehouse, error) {
	return sortedWarehouses(r.st), nil
}

func (r *memWarehouses) Default(ctx context.Context) (*warehouse.Warehouse, error) {
	if all := sortedWarehouses(r.st); len(all) > 0 {
		cp := all[0]
		return &cp, nil
	}
	w := &warehouse.Warehouse{Name: warehouse.DefaultName}
	if err := r.Create(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

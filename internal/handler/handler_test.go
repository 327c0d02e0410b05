package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novadistro/backoffice/internal/domain/inventory"
	"github.com/novadistro/backoffice/internal/domain/order"
	"github.com/novadistro/backoffice/internal/domain/product"
	"github.com/novadistro/backoffice/internal/storage/memory"
)

// --- Helpers ---

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newTestMux wires the full handler against an in-memory store seeded with
// two products: P1 priced 1000.00 with 10 on hand, P2 priced 500.00 with 5.
func newTestMux(t *testing.T) (*http.ServeMux, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	store.SeedProduct(product.Product{ID: 1, SKU: "P1", Name: "Bag of Rice 50kg", Unit: "bag", Price: dec("1000.00")})
	store.SeedProduct(product.Product{ID: 2, SKU: "P2", Name: "Groundnut Oil 5L", Unit: "jerrycan", Price: dec("500.00")})
	store.SeedStock(1, 1, dec("10"), decimal.Zero, dec("3"))
	store.SeedStock(2, 1, dec("5"), decimal.Zero, decimal.Zero)

	svc := order.NewService(order.Config{}, store.Products(), store, store.Orders())
	h := New(svc, inventory.NewQueryService(store.Inventory()), store.Products(), store.Warehouses())

	mux := http.NewServeMux()
	h.Routes(mux)
	return mux, store
}

func do(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func placeOrder(t *testing.T, mux *http.ServeMux, items ...map[string]any) orderResponse {
	t.Helper()

	rec := do(t, mux, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": 42,
		"items":       items,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[orderResponse](t, rec)
}

func item(productID, qty int) map[string]any {
	return map[string]any{"product_id": productID, "qty": qty}
}

// --- Create ---

func TestCreateOrder(t *testing.T) {
	mux, _ := newTestMux(t)

	o := placeOrder(t, mux, item(1, 4))

	assert.Equal(t, "created", o.Status)
	assert.Equal(t, "4000.00", o.Total)
	assert.Equal(t, "NGN", o.Currency)
	assert.Equal(t, "chatbot", o.Channel)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, "1000.00", o.Lines[0].Price)
	assert.Equal(t, "4000.00", o.Lines[0].LineTotal)
}

func TestCreateOrder_MultiLine(t *testing.T) {
	mux, _ := newTestMux(t)

	o := placeOrder(t, mux, item(1, 2), item(2, 1))
	assert.Equal(t, "2500.00", o.Total)
}

func TestCreateOrder_InvalidJSON(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrder_MissingCustomer(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/orders", map[string]any{
		"items": []map[string]any{item(1, 1)},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": 42,
		"items":       []map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrder_ZeroQty(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": 42,
		"items":       []map[string]any{item(1, 0)},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": 42,
		"items":       []map[string]any{item(999, 1)},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decode[errorBody](t, rec)
	assert.Equal(t, http.StatusUnprocessableEntity, body.Code)
	assert.Contains(t, body.Message, "999")
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	mux, _ := newTestMux(t)
	placeOrder(t, mux, item(1, 4))

	rec := do(t, mux, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": 42,
		"items":       []map[string]any{item(1, 7)},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	body := decode[errorBody](t, rec)
	assert.Contains(t, body.Message, "insufficient stock")
}

// --- Transitions ---

func TestOrderLifecycle(t *testing.T) {
	mux, _ := newTestMux(t)
	placeOrder(t, mux, item(1, 4))

	rec := do(t, mux, http.MethodPost, "/api/orders/1/pay", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paid", decode[orderResponse](t, rec).Status)

	rec = do(t, mux, http.MethodPost, "/api/orders/1/fulfill", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fulfilled", decode[orderResponse](t, rec).Status)

	// Stock was consumed.
	rec = do(t, mux, http.MethodGet, "/api/inventory?product_id=1&warehouse_id=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	inv := decode[inventoryResponse](t, rec)
	assert.Equal(t, "6.00", inv.OnHand)
	assert.Equal(t, "0.00", inv.Reserved)
}

func TestFulfillTwice(t *testing.T) {
	mux, _ := newTestMux(t)
	placeOrder(t, mux, item(1, 4))

	rec := do(t, mux, http.MethodPost, "/api/orders/1/fulfill", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodPost, "/api/orders/1/fulfill", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode[errorBody](t, rec)
	assert.Contains(t, body.Message, "cannot transition")
}

func TestCancelReleasesStock(t *testing.T) {
	mux, _ := newTestMux(t)
	placeOrder(t, mux, item(1, 3))

	rec := do(t, mux, http.MethodPost, "/api/orders/1/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/inventory?product_id=1&warehouse_id=1", nil)
	inv := decode[inventoryResponse](t, rec)
	assert.Equal(t, "10.00", inv.OnHand)
	assert.Equal(t, "10.00", inv.Available)
}

func TestTransition_NotFound(t *testing.T) {
	mux, _ := newTestMux(t)

	for _, path := range []string{
		"/api/orders/99/pay",
		"/api/orders/99/fulfill",
		"/api/orders/99/cancel",
	} {
		rec := do(t, mux, http.MethodPost, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestTransition_BadID(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/orders/abc/pay", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Reads ---

func TestGetOrder(t *testing.T) {
	mux, _ := newTestMux(t)
	placeOrder(t, mux, item(1, 2))

	rec := do(t, mux, http.MethodGet, "/api/orders/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	o := decode[orderResponse](t, rec)
	assert.Equal(t, int64(1), o.ID)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, int64(1), o.Lines[0].ProductID)
}

func TestGetOrder_NotFound(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/orders/5", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrders_StatusFilter(t *testing.T) {
	mux, _ := newTestMux(t)
	placeOrder(t, mux, item(1, 1))
	placeOrder(t, mux, item(2, 1))
	do(t, mux, http.MethodPost, "/api/orders/2/cancel", nil)

	rec := do(t, mux, http.MethodGet, "/api/orders?status=cancelled", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]orderResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].ID)

	rec = do(t, mux, http.MethodGet, "/api/orders?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetInventory_BySKU(t *testing.T) {
	mux, _ := newTestMux(t)
	placeOrder(t, mux, item(1, 4))

	rec := do(t, mux, http.MethodGet, "/api/inventory?sku=P1&warehouse_id=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	inv := decode[inventoryResponse](t, rec)
	assert.Equal(t, int64(1), inv.ProductID)
	assert.Equal(t, "10.00", inv.OnHand)
	assert.Equal(t, "4.00", inv.Reserved)
	assert.Equal(t, "6.00", inv.Available)
}

func TestGetInventory_UnknownSKU(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/inventory?sku=NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetInventory_MissingSelector(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/inventory", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetInventory_LowStockFlag(t *testing.T) {
	mux, _ := newTestMux(t)
	placeOrder(t, mux, item(1, 8))
	do(t, mux, http.MethodPost, "/api/orders/1/fulfill", nil)

	// On hand dropped to 2, at or below the reorder point of 3.
	rec := do(t, mux, http.MethodGet, "/api/inventory?product_id=1&warehouse_id=1", nil)
	inv := decode[inventoryResponse](t, rec)
	assert.Equal(t, "2.00", inv.OnHand)
	assert.True(t, inv.LowStock)
}

func TestListProducts(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[[]productResponse](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "P1", list[0].SKU)
	assert.Equal(t, "1000.00", list[0].Price)
}

func TestWarehouses(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/warehouses", map[string]any{"name": "Lagos North"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/warehouses", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[[]warehouseResponse](t, rec)
	// The seeded Main warehouse plus the one just created.
	require.Len(t, list, 2)
	assert.Equal(t, "Lagos North", list[1].Name)
}

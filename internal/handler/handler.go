// Package handler exposes the engine over HTTP/JSON. Handlers translate
// transport shapes to domain requests and map the engine's error taxonomy to
// status codes: insufficient stock → 409, not found → 404, invalid
// transitions → 400, unknown products → 422.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/novadistro/backoffice/internal/domain/inventory"
	"github.com/novadistro/backoffice/internal/domain/order"
	"github.com/novadistro/backoffice/internal/domain/product"
	"github.com/novadistro/backoffice/internal/domain/warehouse"
)

// Handler carries the domain dependencies for all API routes.
type Handler struct {
	orders     *order.Service
	stock      *inventory.QueryService
	products   product.Repository
	warehouses warehouse.Repository
}

// New constructs a Handler.
func New(
	orders *order.Service,
	stock *inventory.QueryService,
	products product.Repository,
	warehouses warehouse.Repository,
) *Handler {
	return &Handler{
		orders:     orders,
		stock:      stock,
		products:   products,
		warehouses: warehouses,
	}
}

// Routes registers all API routes on the mux under /api.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", h.CreateOrder)
	mux.HandleFunc("GET /api/orders", h.ListOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	mux.HandleFunc("POST /api/orders/{id}/pay", h.PayOrder)
	mux.HandleFunc("POST /api/orders/{id}/fulfill", h.FulfillOrder)
	mux.HandleFunc("POST /api/orders/{id}/cancel", h.CancelOrder)
	mux.HandleFunc("GET /api/inventory", h.GetInventory)
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("POST /api/warehouses", h.CreateWarehouse)
	mux.HandleFunc("GET /api/warehouses", h.ListWarehouses)
}

// errorBody is the JSON error envelope shared by all endpoints.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorBody{Code: status, Message: msg})
}

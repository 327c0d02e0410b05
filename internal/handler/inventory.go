package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/novadistro/backoffice/internal/domain/product"
)

// inventoryResponse reports stock levels for one product, either in a single
// warehouse or aggregated across all of them.
type inventoryResponse struct {
	ProductID   int64  `json:"product_id"`
	WarehouseID int64  `json:"warehouse_id,omitempty"`
	OnHand      string `json:"on_hand"`
	Reserved    string `json:"reserved"`
	Available   string `json:"available"`
	LowStock    bool   `json:"low_stock"`
}

// GetInventory returns stock levels for a product. The product is addressed
// by product_id or sku; warehouse_id narrows the view to one warehouse,
// otherwise quantities are summed across warehouses.
func (h *Handler) GetInventory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	productID := queryInt(q.Get("product_id"))
	if sku := q.Get("sku"); sku != "" && productID == 0 {
		p, err := h.products.GetBySKU(r.Context(), sku)
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			zctx.From(r.Context()).Error("resolve sku", zap.Error(err))
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		productID = p.ID
	}
	if productID == 0 {
		writeError(w, r, http.StatusBadRequest, "product_id or sku is required")
		return
	}

	view, err := h.stock.Levels(r.Context(), productID, queryInt(q.Get("warehouse_id")))
	if err != nil {
		zctx.From(r.Context()).Error("inventory query failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, r, http.StatusOK, inventoryResponse{
		ProductID:   view.ProductID,
		WarehouseID: view.WarehouseID,
		OnHand:      view.OnHand.StringFixed(2),
		Reserved:    view.Reserved.StringFixed(2),
		Available:   view.Available.StringFixed(2),
		LowStock:    view.LowStock,
	})
}

// productResponse is a catalog entry as exposed by the API.
type productResponse struct {
	ID    int64  `json:"id"`
	SKU   string `json:"sku"`
	Name  string `json:"name"`
	Unit  string `json:"unit"`
	Price string `json:"price"`
}

// ListProducts returns the whole catalog ordered by ID.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.products.List(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("list products failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]productResponse, len(list))
	for i, p := range list {
		out[i] = productResponse{
			ID:    p.ID,
			SKU:   p.SKU,
			Name:  p.Name,
			Unit:  p.Unit,
			Price: p.Price.StringFixed(2),
		}
	}
	writeJSON(w, r, http.StatusOK, out)
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/novadistro/backoffice/internal/domain/warehouse"
)

type warehouseResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CreateWarehouse registers a new fulfillment location.
func (h *Handler) CreateWarehouse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	wh := &warehouse.Warehouse{Name: req.Name}
	if err := h.warehouses.Create(r.Context(), wh); err != nil {
		zctx.From(r.Context()).Error("create warehouse failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, r, http.StatusCreated, warehouseResponse{ID: wh.ID, Name: wh.Name})
}

// ListWarehouses returns all warehouses ordered by ID.
func (h *Handler) ListWarehouses(w http.ResponseWriter, r *http.Request) {
	list, err := h.warehouses.List(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("list warehouses failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]warehouseResponse, len(list))
	for i, wh := range list {
		out[i] = warehouseResponse{ID: wh.ID, Name: wh.Name}
	}
	writeJSON(w, r, http.StatusOK, out)
}

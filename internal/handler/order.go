package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/novadistro/backoffice/internal/domain/inventory"
	"github.com/novadistro/backoffice/internal/domain/order"
)

// createOrderRequest is the transport shape for order creation.
type createOrderRequest struct {
	CustomerID int64              `json:"customer_id"`
	Channel    string             `json:"channel,omitempty"`
	Items      []orderItemRequest `json:"items"`
}

type orderItemRequest struct {
	ProductID int64            `json:"product_id"`
	Qty       int              `json:"qty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

// orderResponse is the order header as returned by every order endpoint.
type orderResponse struct {
	ID         int64               `json:"id"`
	CustomerID int64               `json:"customer_id"`
	Status     string              `json:"status"`
	Currency   string              `json:"currency"`
	Total      string              `json:"total"`
	Channel    string              `json:"channel"`
	CreatedAt  time.Time           `json:"created_at"`
	Lines      []orderLineResponse `json:"lines,omitempty"`
}

type orderLineResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Qty       int    `json:"qty"`
	Price     string `json:"price"`
	LineTotal string `json:"line_total"`
}

func toOrderResponse(o *order.Order, withLines bool) orderResponse {
	resp := orderResponse{
		ID:         o.ID,
		CustomerID: o.CustomerID,
		Status:     string(o.Status),
		Currency:   o.Currency,
		Total:      o.Total.StringFixed(2),
		Channel:    o.Channel,
		CreatedAt:  o.CreatedAt,
	}
	if withLines {
		resp.Lines = make([]orderLineResponse, len(o.Lines))
		for i, l := range o.Lines {
			resp.Lines[i] = orderLineResponse{
				ID:        l.ID,
				ProductID: l.ProductID,
				Qty:       l.Qty,
				Price:     l.Price.StringFixed(2),
				LineTotal: l.LineTotal.StringFixed(2),
			}
		}
	}
	return resp
}

// CreateOrder places a new order, reserving stock for every line.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CustomerID <= 0 {
		writeError(w, r, http.StatusBadRequest, "customer_id is required")
		return
	}

	items := make([]order.ItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.ItemRequest{ProductID: it.ProductID, Qty: it.Qty, Price: it.Price}
	}

	o, err := h.orders.Create(r.Context(), order.CreateRequest{
		CustomerID: req.CustomerID,
		Channel:    req.Channel,
		Items:      items,
	})
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toOrderResponse(o, true))
}

// GetOrder returns one order with its lines.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderResponse(o, true))
}

// ListOrders returns order headers matching the query filters, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var f order.ListFilter
	if s := q.Get("status"); s != "" {
		st, err := order.ParseStatus(s)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		f.Status = st
	}
	f.CustomerID = queryInt(q.Get("customer_id"))
	f.Page = int(queryInt(q.Get("page")))
	f.PageSize = int(queryInt(q.Get("page_size")))

	list, err := h.orders.List(r.Context(), f)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	out := make([]orderResponse, len(list))
	for i := range list {
		out[i] = toOrderResponse(&list[i], false)
	}
	writeJSON(w, r, http.StatusOK, out)
}

// PayOrder transitions an order from created to paid.
func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.Pay)
}

// FulfillOrder consumes the order's reservations and marks it fulfilled.
func (h *Handler) FulfillOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.Fulfill)
}

// CancelOrder releases the order's reservations and marks it cancelled.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.Cancel)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, int64) (*order.Order, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	o, err := op(r.Context(), id)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderResponse(o, false))
}

// writeOrderError maps engine errors to HTTP statuses.
func (h *Handler) writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrEmptyItems):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		var (
			invalidQty   *order.InvalidQuantityError
			notFound     *order.ProductNotFoundError
			transition   *order.InvalidTransitionError
			insufficient *inventory.InsufficientStockError
			shortfall    *inventory.ShortfallError
		)
		switch {
		case errors.As(err, &invalidQty), errors.As(err, &notFound):
			writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		case errors.As(err, &transition):
			writeError(w, r, http.StatusBadRequest, err.Error())
		case errors.As(err, &insufficient), errors.As(err, &shortfall):
			writeError(w, r, http.StatusConflict, err.Error())
		default:
			zctx.From(r.Context()).Error("order operation failed", zap.Error(err))
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
	}
}

// pathID parses the {id} path segment, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return id, true
}

func queryInt(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	d "github.com/danirudp/lipos/domain"
	"github.com/go-chi/chi/v5"
)

type OrdersHandler struct {
	admin   CatalogAdmin
	timeout time.Duration
	log     *slog.Logger
}

func NewOrdersHandler(admin CatalogAdmin, timeout time.Duration, log *slog.Logger) *OrdersHandler {
	return &OrdersHandler{admin: admin, timeout: timeout, log: log}
}

type OrderLineDTO struct {
	LineNo    int    `json:"line_no"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type OrderResponseDTO struct {
	ID            string         `json:"id"`
	CustomerID    string         `json:"customer_id,omitempty"`
	TotalAmount   string         `json:"total_amount"`
	Status        string         `json:"status"`
	PaymentMethod string         `json:"payment_method"`
	Lines         []OrderLineDTO `json:"lines"`
	CreatedAt     string         `json:"created_at"`
}

func convertOrder(o *d.Order) OrderResponseDTO {
	lines := make([]OrderLineDTO, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, OrderLineDTO{
			LineNo:    l.LineNo,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPriceSnapshot.StringFixed(2),
			Subtotal:  l.Subtotal().StringFixed(2),
		})
	}
	return OrderResponseDTO{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		TotalAmount:   o.TotalAmount.StringFixed(2),
		Status:        o.Status.String(),
		PaymentMethod: string(o.PaymentMethod),
		Lines:         lines,
		CreatedAt:     o.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func convertOrders(orders []*d.Order) []OrderResponseDTO {
	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}
	return dtos
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	orders, err := h.admin.ListOrders(ctx, limit)
	if err != nil {
		respondStoreError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, convertOrders(orders))
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	order, err := h.admin.GetOrder(ctx, orderID)
	if err != nil {
		respondStoreError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, convertOrder(order))
}

// GET /api/v1/customers/{customer_id}/orders
func (h *OrdersHandler) ListCustomerOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customerID := chi.URLParam(r, "customer_id")
	if customerID == "" {
		respondError(w, http.StatusBadRequest, "missing_customer_id", "customer_id is required")
		return
	}

	orders, err := h.admin.ListOrdersByCustomer(ctx, customerID)
	if err != nil {
		respondStoreError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, convertOrders(orders))
}

// DELETE /api/v1/customers/{customer_id}
func (h *OrdersHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customerID := chi.URLParam(r, "customer_id")
	if err := h.admin.DeleteCustomer(ctx, customerID); err != nil {
		respondStoreError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

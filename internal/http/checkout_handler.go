package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	d "github.com/danirudp/lipos/domain"
	"github.com/danirudp/lipos/internal/service"
	"github.com/shopspring/decimal"
)

type CheckoutHandler struct {
	checkout service.CheckoutService
	timeout  time.Duration
}

func NewCheckoutHandler(checkout service.CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		timeout:  timeout,
	}
}

type CartLineDTO struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type PlaceOrderRequestDTO struct {
	Items         []CartLineDTO   `json:"items"`
	DeclaredTotal decimal.Decimal `json:"declared_total"`
	CustomerID    string          `json:"customer_id"`
	PaymentMethod string          `json:"payment_method"`
}

type PlaceOrderResponseDTO struct {
	OrderID        string `json:"order_id"`
	ConfirmedTotal string `json:"confirmed_total"`
	Replayed       bool   `json:"replayed"`
}

// POST /api/v1/orders
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req PlaceOrderRequestDTO
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	items := make([]d.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, d.CartLine{
			ProductID:         item.ProductID,
			Quantity:          item.Quantity,
			UnitPriceSnapshot: item.UnitPrice,
		})
	}

	conf, err := h.checkout.PlaceOrder(ctx, &d.PlaceOrderRequest{
		Items:          items,
		DeclaredTotal:  req.DeclaredTotal,
		CustomerID:     req.CustomerID,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		respondCheckoutError(w, err)
		return
	}

	status := http.StatusCreated
	if conf.Replayed {
		status = http.StatusOK
	}
	w.Header().Set("Location", "/api/v1/orders/"+conf.OrderID)
	respondJSON(w, status, PlaceOrderResponseDTO{
		OrderID:        conf.OrderID,
		ConfirmedTotal: conf.TotalAmount.StringFixed(2),
		Replayed:       conf.Replayed,
	})
}

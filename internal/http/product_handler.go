package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	d "github.com/danirudp/lipos/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type ProductHandler struct {
	admin   CatalogAdmin
	timeout time.Duration
	log     *slog.Logger
}

func NewProductHandler(admin CatalogAdmin, timeout time.Duration, log *slog.Logger) *ProductHandler {
	return &ProductHandler{admin: admin, timeout: timeout, log: log}
}

type ProductResponseDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	UnitPrice     string `json:"unit_price"`
	StockQuantity int    `json:"stock_quantity"`
	Category      string `json:"category"`
	ImageURL      string `json:"image_url,omitempty"`
}

type SetStockRequestDTO struct {
	StockQuantity *int `json:"stock_quantity"`
}

type SetPriceRequestDTO struct {
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

func convertProduct(p *d.Product) ProductResponseDTO {
	return ProductResponseDTO{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		UnitPrice:     p.UnitPrice.StringFixed(2),
		StockQuantity: p.StockQuantity,
		Category:      p.Category,
		ImageURL:      p.ImageURL,
	}
}

// GET /api/v1/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.admin.ListProducts(ctx)
	if err != nil {
		respondStoreError(w, h.log, err)
		return
	}
	dtos := make([]ProductResponseDTO, 0, len(products))
	for _, p := range products {
		dtos = append(dtos, convertProduct(p))
	}
	respondJSON(w, http.StatusOK, dtos)
}

// GET /api/v1/products/{product_id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.admin.GetProduct(ctx, chi.URLParam(r, "product_id"))
	if err != nil {
		respondStoreError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, convertProduct(product))
}

// PUT /api/v1/products/{product_id}/stock
func (h *ProductHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SetStockRequestDTO
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&req); err != nil || req.StockQuantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "stock_quantity is required")
		return
	}

	productID := chi.URLParam(r, "product_id")
	if err := h.admin.SetStock(ctx, productID, *req.StockQuantity); err != nil {
		respondStoreError(w, h.log, err)
		return
	}
	h.respondProduct(ctx, w, productID)
}

// PUT /api/v1/products/{product_id}/price
func (h *ProductHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SetPriceRequestDTO
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&req); err != nil || req.UnitPrice == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "unit_price is required")
		return
	}

	productID := chi.URLParam(r, "product_id")
	if err := h.admin.SetPrice(ctx, productID, *req.UnitPrice); err != nil {
		respondStoreError(w, h.log, err)
		return
	}
	h.respondProduct(ctx, w, productID)
}

// DELETE /api/v1/products/{product_id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.admin.DeleteProduct(ctx, chi.URLParam(r, "product_id")); err != nil {
		respondStoreError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) respondProduct(ctx context.Context, w http.ResponseWriter, productID string) {
	product, err := h.admin.GetProduct(ctx, productID)
	if err != nil {
		respondStoreError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, convertProduct(product))
}

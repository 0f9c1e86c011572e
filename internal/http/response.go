package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	r "github.com/danirudp/lipos/internal/repository"
	"github.com/danirudp/lipos/internal/service"
)

const maxRequestBodySize = 1 << 20 // 1MB

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	ProductID string `json:"product_id,omitempty"`
	Available *int   `json:"available,omitempty"`
	Requested *int   `json:"requested,omitempty"`
	Retryable bool   `json:"retryable"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondCheckoutError maps the checkout error taxonomy onto HTTP statuses.
func respondCheckoutError(w http.ResponseWriter, err error) {
	ce, ok := service.AsCheckoutError(err)
	if !ok {
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	resp := ErrorResponse{
		Error:     ce.Error(),
		Code:      string(ce.Kind),
		ProductID: ce.ProductID,
		Retryable: ce.Retryable(),
	}

	var status int
	switch ce.Kind {
	case service.KindEmptyCart, service.KindInvalidLine:
		status = http.StatusBadRequest
	case service.KindProductNotFound, service.KindCustomerNotFound:
		status = http.StatusUnprocessableEntity
	case service.KindInsufficientStock, service.KindCommitAborted:
		status = http.StatusConflict
		if ce.HasStockCounts() {
			resp.Available = &ce.Available
		}
		if ce.ProductID != "" {
			resp.Requested = &ce.Requested
		}
	case service.KindPersistenceUnavailable:
		status = http.StatusServiceUnavailable
		// the underlying storage error stays in the logs
		resp.Error = service.ErrPersistenceUnavailable.Error()
		w.Header().Set("Retry-After", "1")
	case service.KindCommitTimeout:
		status = http.StatusGatewayTimeout
		resp.Error = service.ErrCommitTimeout.Error()
	case service.KindCanceled:
		status = http.StatusRequestTimeout
		resp.Error = service.ErrCanceled.Error()
	default:
		status = http.StatusInternalServerError
	}
	respondJSON(w, status, resp)
}

// respondStoreError maps errors from administrative reads and writes.
func respondStoreError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case service.IsNotFound(err):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, r.ErrProductReferenced), errors.Is(err, r.ErrCustomerReferenced):
		respondError(w, http.StatusConflict, "referenced", err.Error())
	case errors.Is(err, r.ErrInvalidStock), errors.Is(err, r.ErrInvalidPrice):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	default:
		log.Error("store request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

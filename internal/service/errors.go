package service

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindEmptyCart              Kind = "EMPTY_CART"
	KindInvalidLine            Kind = "INVALID_LINE"
	KindProductNotFound        Kind = "PRODUCT_NOT_FOUND"
	KindCustomerNotFound       Kind = "CUSTOMER_NOT_FOUND"
	KindInsufficientStock      Kind = "INSUFFICIENT_STOCK"
	KindCommitAborted          Kind = "COMMIT_ABORTED"
	KindPersistenceUnavailable Kind = "PERSISTENCE_UNAVAILABLE"
	KindCommitTimeout          Kind = "COMMIT_TIMEOUT"
	KindCanceled               Kind = "CANCELED"
)

var (
	ErrEmptyCart              = errors.New("cart is empty, nothing to checkout")
	ErrInvalidLine            = errors.New("invalid cart line")
	ErrProductNotFound        = errors.New("product not found")
	ErrCustomerNotFound       = errors.New("customer not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrCommitAborted          = errors.New("commit aborted after repeated stock contention")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	ErrCommitTimeout          = errors.New("commit timed out")
	ErrCanceled               = errors.New("checkout canceled")
)

var sentinels = map[Kind]error{
	KindEmptyCart:              ErrEmptyCart,
	KindInvalidLine:            ErrInvalidLine,
	KindProductNotFound:        ErrProductNotFound,
	KindCustomerNotFound:       ErrCustomerNotFound,
	KindInsufficientStock:      ErrInsufficientStock,
	KindCommitAborted:          ErrCommitAborted,
	KindPersistenceUnavailable: ErrPersistenceUnavailable,
	KindCommitTimeout:          ErrCommitTimeout,
	KindCanceled:               ErrCanceled,
}

// CheckoutError is the only error type PlaceOrder returns.
type CheckoutError struct {
	Kind       Kind
	ProductID  string
	CustomerID string
	Available  int
	Requested  int
	Reason     string
	Err        error
}

func (e *CheckoutError) Error() string {
	switch e.Kind {
	case KindInvalidLine:
		if e.ProductID == "" {
			return fmt.Sprintf("%s: %s", ErrInvalidLine, e.Reason)
		}
		return fmt.Sprintf("%s for product %s: %s", ErrInvalidLine, e.ProductID, e.Reason)
	case KindProductNotFound:
		return fmt.Sprintf("product %s not found", e.ProductID)
	case KindCustomerNotFound:
		return fmt.Sprintf("customer %s not found", e.CustomerID)
	case KindCommitAborted:
		if e.ProductID == "" {
			return fmt.Sprintf("%s: %s", ErrCommitAborted, e.Reason)
		}
		if !e.HasStockCounts() {
			return fmt.Sprintf("%s for product %s: requested %d, %s",
				ErrCommitAborted, e.ProductID, e.Requested, e.Reason)
		}
		return fmt.Sprintf("%s for product %s: available %d, requested %d",
			ErrCommitAborted, e.ProductID, e.Available, e.Requested)
	case KindInsufficientStock:
		return fmt.Sprintf("%s for product %s: available %d, requested %d",
			sentinels[e.Kind], e.ProductID, e.Available, e.Requested)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", sentinels[e.Kind], e.Err)
	}
	return sentinels[e.Kind].Error()
}

// HasStockCounts reports whether Available and Requested describe a real stock reading.
// A commit aborted by database contention, or whose follow-up stock read failed, has none.
func (e *CheckoutError) HasStockCounts() bool {
	switch e.Kind {
	case KindInsufficientStock:
		return true
	case KindCommitAborted:
		return e.ProductID != "" && e.Reason == ""
	}
	return false
}

func (e *CheckoutError) Unwrap() error {
	return e.Err
}

// Is matches the kind's sentinel. A commit aborted by contention also reads as insufficient stock,
// which is what the caller ultimately has to deal with.
func (e *CheckoutError) Is(target error) bool {
	if sentinel, ok := sentinels[e.Kind]; ok && target == sentinel {
		return true
	}
	return e.Kind == KindCommitAborted && target == ErrInsufficientStock
}

// Retryable reports infrastructure failures the caller may retry with the same idempotency key.
func (e *CheckoutError) Retryable() bool {
	return e.Kind == KindPersistenceUnavailable || e.Kind == KindCommitTimeout
}

// AsCheckoutError unwraps err to a *CheckoutError when there is one.
func AsCheckoutError(err error) (*CheckoutError, bool) {
	var ce *CheckoutError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

func emptyCart() error {
	return &CheckoutError{Kind: KindEmptyCart}
}

func invalidLine(productID, reason string) error {
	return &CheckoutError{Kind: KindInvalidLine, ProductID: productID, Reason: reason}
}

func productNotFound(productID string) error {
	return &CheckoutError{Kind: KindProductNotFound, ProductID: productID}
}

func customerNotFound(customerID string) error {
	return &CheckoutError{Kind: KindCustomerNotFound, CustomerID: customerID}
}

func insufficientStock(productID string, available, requested int) error {
	return &CheckoutError{Kind: KindInsufficientStock, ProductID: productID, Available: available, Requested: requested}
}

func commitAborted(productID string, available, requested int) error {
	return &CheckoutError{Kind: KindCommitAborted, ProductID: productID, Available: available, Requested: requested}
}

// contentionAborted is a commit the database kept rolling back without naming a product.
func contentionAborted() error {
	return &CheckoutError{Kind: KindCommitAborted, Reason: "concurrent checkouts kept conflicting"}
}

func stockUnknownAborted(productID string, requested int) error {
	return &CheckoutError{Kind: KindCommitAborted, ProductID: productID, Requested: requested,
		Reason: "current stock unknown"}
}

func persistenceUnavailable(err error) error {
	return &CheckoutError{Kind: KindPersistenceUnavailable, Err: err}
}

func commitTimeout(err error) error {
	return &CheckoutError{Kind: KindCommitTimeout, Err: err}
}

func canceled(err error) error {
	return &CheckoutError{Kind: KindCanceled, Err: err}
}

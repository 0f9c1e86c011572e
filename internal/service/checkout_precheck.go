package service

import (
	"context"
	"errors"
	"fmt"

	d "github.com/danirudp/lipos/domain"
	r "github.com/danirudp/lipos/internal/repository"
)

// precheck validates the cart against the catalog, the stock ledger and the customer directory
// without taking locks. Anything it accepts is re-checked by the conditional decrement at commit.
func (s *CheckoutServiceImpl) precheck(ctx context.Context, req *d.PlaceOrderRequest, demand []productDemand) error {
	ctx, span := s.tracer.Start(ctx, "checkout.precheck")
	defer span.End()

	for _, dm := range demand {
		product, err := s.catalog.GetProduct(ctx, dm.productID)
		if errors.Is(err, r.ErrProductNotFound) {
			return productNotFound(dm.productID)
		}
		if err != nil {
			return storageFailure(ctx, fmt.Errorf("get product %s: %w", dm.productID, err))
		}

		for _, i := range dm.lines {
			diff := req.Items[i].UnitPriceSnapshot.Sub(product.UnitPrice).Abs()
			if diff.GreaterThan(s.policy.PriceTolerance) {
				return invalidLine(dm.productID, fmt.Sprintf("price mismatch: cart %s, catalog %s",
					req.Items[i].UnitPriceSnapshot.StringFixed(2), product.UnitPrice.StringFixed(2)))
			}
		}

		available, err := s.repo.Peek(ctx, dm.productID)
		if errors.Is(err, r.ErrProductNotFound) {
			return productNotFound(dm.productID)
		}
		if err != nil {
			return storageFailure(ctx, fmt.Errorf("peek stock %s: %w", dm.productID, err))
		}
		if dm.quantity > available {
			return insufficientStock(dm.productID, available, dm.quantity)
		}
	}

	if req.CustomerID != "" {
		_, err := s.repo.GetCustomer(ctx, req.CustomerID)
		if errors.Is(err, r.ErrCustomerNotFound) {
			return customerNotFound(req.CustomerID)
		}
		if err != nil {
			return storageFailure(ctx, fmt.Errorf("get customer %s: %w", req.CustomerID, err))
		}
	}

	return nil
}

// storageFailure tells a caller cancellation apart from a storage outage.
func storageFailure(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return canceled(err)
	}
	return persistenceUnavailable(err)
}

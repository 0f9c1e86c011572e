package service

import (
	"context"
	"errors"
	"log/slog"

	d "github.com/danirudp/lipos/domain"
	r "github.com/danirudp/lipos/internal/repository"
	"github.com/shopspring/decimal"
)

const defaultHistoryLimit = 100

// CatalogService covers the administrative side of the till: stock and price edits, guarded
// deletes and order history. Writes to products drop the cached catalog entry.
type CatalogService struct {
	repo        r.RepoInterface
	invalidator CatalogInvalidator
	log         *slog.Logger
}

func NewCatalogService(repo r.RepoInterface, invalidator CatalogInvalidator, log *slog.Logger) *CatalogService {
	if log == nil {
		log = slog.Default()
	}
	return &CatalogService{repo: repo, invalidator: invalidator, log: log}
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*d.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]*d.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *CatalogService) SetStock(ctx context.Context, productID string, quantity int) error {
	if err := s.repo.SetStock(ctx, productID, quantity); err != nil {
		return err
	}
	s.invalidate(ctx, productID)
	s.log.InfoContext(ctx, "stock updated", "product_id", productID, "stock_quantity", quantity)
	return nil
}

func (s *CatalogService) SetPrice(ctx context.Context, productID string, price decimal.Decimal) error {
	if err := s.repo.SetPrice(ctx, productID, price); err != nil {
		return err
	}
	s.invalidate(ctx, productID)
	s.log.InfoContext(ctx, "price updated", "product_id", productID, "unit_price", price.StringFixed(2))
	return nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, productID string) error {
	if err := s.repo.DeleteProduct(ctx, productID); err != nil {
		return err
	}
	s.invalidate(ctx, productID)
	s.log.InfoContext(ctx, "product deleted", "product_id", productID)
	return nil
}

func (s *CatalogService) DeleteCustomer(ctx context.Context, customerID string) error {
	if err := s.repo.DeleteCustomer(ctx, customerID); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "customer deleted", "customer_id", customerID)
	return nil
}

func (s *CatalogService) GetOrder(ctx context.Context, orderID string) (*d.Order, error) {
	return s.repo.GetOrderByID(ctx, orderID)
}

// ListOrders returns the newest orders first; limit <= 0 means the default page size.
func (s *CatalogService) ListOrders(ctx context.Context, limit int) ([]*d.Order, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.repo.ListOrders(ctx, limit)
}

// ListOrdersByCustomer returns a customer's orders newest first, or ErrCustomerNotFound.
func (s *CatalogService) ListOrdersByCustomer(ctx context.Context, customerID string) ([]*d.Order, error) {
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	orders, err := s.repo.ListOrdersByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []*d.Order{}
	}
	return orders, nil
}

func (s *CatalogService) invalidate(ctx context.Context, ids ...string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, ids...)
	}
}

// IsNotFound reports whether err is one of the store's not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, r.ErrProductNotFound) ||
		errors.Is(err, r.ErrCustomerNotFound) ||
		errors.Is(err, r.ErrOrderNotFound)
}

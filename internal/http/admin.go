package http

import (
	"context"

	d "github.com/danirudp/lipos/domain"
	"github.com/shopspring/decimal"
)

// CatalogAdmin is the administrative surface served next to checkout.
type CatalogAdmin interface {
	GetProduct(ctx context.Context, id string) (*d.Product, error)
	ListProducts(ctx context.Context) ([]*d.Product, error)
	SetStock(ctx context.Context, productID string, quantity int) error
	SetPrice(ctx context.Context, productID string, price decimal.Decimal) error
	DeleteProduct(ctx context.Context, productID string) error
	DeleteCustomer(ctx context.Context, customerID string) error
	GetOrder(ctx context.Context, orderID string) (*d.Order, error)
	ListOrders(ctx context.Context, limit int) ([]*d.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]*d.Order, error)
}

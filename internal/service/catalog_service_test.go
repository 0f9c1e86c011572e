package service

import (
	"context"
	"testing"

	d "github.com/danirudp/lipos/domain"
	r "github.com/danirudp/lipos/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogService_WritesInvalidateCache(t *testing.T) {
	repo := setupStore(t)
	addProduct(t, repo, "A", "10.00", 5)
	addProduct(t, repo, "B", "1.00", 5)
	catalog := &MockCatalog{Source: repo}
	svc := NewCatalogService(repo, catalog, quietLogger())
	ctx := context.Background()

	require.NoError(t, svc.SetStock(ctx, "A", 8))
	require.NoError(t, svc.SetPrice(ctx, "B", money("1.25")))
	require.NoError(t, svc.DeleteProduct(ctx, "B"))
	assert.Equal(t, []string{"A", "B", "B"}, catalog.invalidated())

	p, err := svc.GetProduct(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 8, p.StockQuantity)

	_, err = svc.GetProduct(ctx, "B")
	assert.True(t, IsNotFound(err))
}

func TestCatalogService_FailedWriteKeepsCache(t *testing.T) {
	repo := setupStore(t)
	catalog := &MockCatalog{Source: repo}
	svc := NewCatalogService(repo, catalog, quietLogger())

	err := svc.SetStock(context.Background(), "ghost", 1)
	assert.ErrorIs(t, err, r.ErrProductNotFound)

	addProduct(t, repo, "A", "10.00", 5)
	err = svc.SetStock(context.Background(), "A", -1)
	assert.ErrorIs(t, err, r.ErrInvalidStock)
	assert.Empty(t, catalog.invalidated())
}

func TestCatalogService_GuardedDeletes(t *testing.T) {
	repo := setupStore(t)
	addProduct(t, repo, "A", "10.00", 5)
	addProduct(t, repo, "unsold", "1.00", 5)
	require.NoError(t, repo.CreateCustomer(context.Background(), &d.Customer{ID: "c1", Name: "Alice"}))
	require.NoError(t, repo.CreateCustomer(context.Background(), &d.Customer{ID: "c2", Name: "Bob"}))

	checkout := NewCheckoutService(repo, nil, testPolicy(), quietLogger(), nil)
	req := cart(line("A", 1, "10.00"))
	req.CustomerID = "c1"
	_, err := checkout.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	svc := NewCatalogService(repo, nil, quietLogger())
	ctx := context.Background()

	assert.ErrorIs(t, svc.DeleteProduct(ctx, "A"), r.ErrProductReferenced)
	assert.ErrorIs(t, svc.DeleteCustomer(ctx, "c1"), r.ErrCustomerReferenced)
	assert.NoError(t, svc.DeleteProduct(ctx, "unsold"))
	assert.NoError(t, svc.DeleteCustomer(ctx, "c2"))
	assert.True(t, IsNotFound(svc.DeleteCustomer(ctx, "c2")))
}

func TestCatalogService_OrderHistory(t *testing.T) {
	repo := setupStore(t)
	addProduct(t, repo, "A", "10.00", 50)
	require.NoError(t, repo.CreateCustomer(context.Background(), &d.Customer{ID: "c1", Name: "Alice"}))
	require.NoError(t, repo.CreateCustomer(context.Background(), &d.Customer{ID: "c2", Name: "Bob"}))
	checkout := NewCheckoutService(repo, nil, testPolicy(), quietLogger(), nil)
	svc := NewCatalogService(repo, nil, quietLogger())
	ctx := context.Background()

	var ids []string
	for i := 1; i <= 3; i++ {
		req := cart(line("A", i, "10.00"))
		req.CustomerID = "c1"
		conf, err := checkout.PlaceOrder(ctx, req)
		require.NoError(t, err)
		ids = append(ids, conf.OrderID)
	}
	_, err := checkout.PlaceOrder(ctx, cart(line("A", 1, "10.00")))
	require.NoError(t, err)

	history, err := svc.ListOrdersByCustomer(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, ids[2], history[0].ID)
	assert.Equal(t, ids[0], history[2].ID)

	empty, err := svc.ListOrdersByCustomer(ctx, "c2")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = svc.ListOrdersByCustomer(ctx, "nobody")
	assert.ErrorIs(t, err, r.ErrCustomerNotFound)

	all, err := svc.ListOrders(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	limited, err := svc.ListOrders(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	order, err := svc.GetOrder(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "20.00", order.TotalAmount.StringFixed(2))

	_, err = svc.GetOrder(ctx, "missing")
	assert.True(t, IsNotFound(err))
}

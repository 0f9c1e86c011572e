package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danirudp/lipos/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()

	repo, err := NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations())

	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func createTestProduct(t *testing.T, repo *Repository, price string, stock int) *domain.Product {
	t.Helper()

	p := &domain.Product{
		Name:          "Product " + uuid.NewString()[:8],
		UnitPrice:     decimal.RequireFromString(price),
		StockQuantity: stock,
		Category:      "Test",
	}
	require.NoError(t, repo.CreateProduct(context.Background(), p))
	return p
}

func newTestOrder(customerID string, lines ...domain.OrderLine) *domain.Order {
	id := uuid.NewString()
	for i := range lines {
		lines[i].OrderID = id
		lines[i].LineNo = i + 1
	}
	return &domain.Order{
		ID:            id,
		CustomerID:    customerID,
		TotalAmount:   domain.OrderTotal(lines),
		Status:        domain.OrderStatusCompleted,
		PaymentMethod: domain.PaymentMethodCash,
		CreatedAt:     time.Now().UTC(),
		Lines:         lines,
	}
}

func placeOrder(t *testing.T, repo *Repository, order *domain.Order) {
	t.Helper()

	err := repo.WithinTx(context.Background(), func(uow UnitOfWork) error {
		if err := uow.CreateOrder(context.Background(), order); err != nil {
			return err
		}
		for _, l := range order.Lines {
			ok, err := uow.ConditionalDecrement(context.Background(), l.ProductID, l.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("insufficient stock")
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestSeed_LoadsDemoCatalogOnce(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Seed(ctx))
	require.NoError(t, repo.Seed(ctx))

	products, err := repo.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 6)

	walkIn, err := repo.GetCustomer(ctx, WalkInCustomerID)
	require.NoError(t, err)
	assert.Equal(t, "John Doe (Walk-in)", walkIn.Name)
}

func TestGetProduct_RoundTripsMoney(t *testing.T) {
	repo := setupTestDB(t)
	p := createTestProduct(t, repo, "129.50", 3)

	got, err := repo.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, got.UnitPrice.Equal(decimal.RequireFromString("129.5")), "got %s", got.UnitPrice)
	assert.Equal(t, 3, got.StockQuantity)
}

func TestGetProduct_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.GetProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestPeekAndSetStock(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createTestProduct(t, repo, "10.00", 5)

	stock, err := repo.Peek(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stock)

	require.NoError(t, repo.SetStock(ctx, p.ID, 12))
	stock, err = repo.Peek(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, stock)

	assert.ErrorIs(t, repo.SetStock(ctx, p.ID, -1), ErrInvalidStock)
	assert.ErrorIs(t, repo.SetStock(ctx, "missing", 1), ErrProductNotFound)

	_, err = repo.Peek(ctx, "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestConditionalDecrement(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createTestProduct(t, repo, "10.00", 3)

	var first, second bool
	err := repo.WithinTx(ctx, func(uow UnitOfWork) error {
		var err error
		first, err = uow.ConditionalDecrement(ctx, p.ID, 2)
		if err != nil {
			return err
		}
		second, err = uow.ConditionalDecrement(ctx, p.ID, 2)
		return err
	})
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second, "only one unit left")

	stock, err := repo.Peek(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stock)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createTestProduct(t, repo, "10.00", 5)
	order := newTestOrder("", domain.OrderLine{ProductID: p.ID, Quantity: 2, UnitPriceSnapshot: decimal.RequireFromString("10.00")})

	boom := errors.New("boom")
	err := repo.WithinTx(ctx, func(uow UnitOfWork) error {
		require.NoError(t, uow.CreateOrder(ctx, order))
		ok, err := uow.ConditionalDecrement(ctx, p.ID, 2)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stock, err := repo.Peek(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stock)

	_, err = repo.GetOrderByID(ctx, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCreateOrder_PersistsLinesInOrder(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	a := createTestProduct(t, repo, "10.00", 5)
	b := createTestProduct(t, repo, "2.50", 5)

	order := newTestOrder("",
		domain.OrderLine{ProductID: b.ID, Quantity: 1, UnitPriceSnapshot: decimal.RequireFromString("2.50")},
		domain.OrderLine{ProductID: a.ID, Quantity: 2, UnitPriceSnapshot: decimal.RequireFromString("10.00")},
	)
	placeOrder(t, repo, order)

	got, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("22.50")))
	assert.Equal(t, domain.OrderStatusCompleted, got.Status)
	assert.Equal(t, domain.PaymentMethodCash, got.PaymentMethod)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, b.ID, got.Lines[0].ProductID)
	assert.Equal(t, a.ID, got.Lines[1].ProductID)
	assert.Equal(t, 2, got.Lines[1].LineNo)
}

func TestCreateOrder_DuplicateIdempotencyKey(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createTestProduct(t, repo, "10.00", 5)

	first := newTestOrder("", domain.OrderLine{ProductID: p.ID, Quantity: 1, UnitPriceSnapshot: p.UnitPrice})
	first.IdempotencyKey = "key-1"
	placeOrder(t, repo, first)

	second := newTestOrder("", domain.OrderLine{ProductID: p.ID, Quantity: 1, UnitPriceSnapshot: p.UnitPrice})
	second.IdempotencyKey = "key-1"
	err := repo.WithinTx(ctx, func(uow UnitOfWork) error {
		return uow.CreateOrder(ctx, second)
	})
	assert.ErrorIs(t, err, ErrDuplicateIdempotencyKey)

	got, err := repo.GetOrderByIdempotencyKey(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestCreateOrder_UnknownCustomer(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createTestProduct(t, repo, "10.00", 5)

	order := newTestOrder("ghost", domain.OrderLine{ProductID: p.ID, Quantity: 1, UnitPriceSnapshot: p.UnitPrice})
	err := repo.WithinTx(ctx, func(uow UnitOfWork) error {
		return uow.CreateOrder(ctx, order)
	})
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestListOrdersByCustomer_NewestFirst(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createTestProduct(t, repo, "10.00", 10)
	c := &domain.Customer{Name: "Alice"}
	require.NoError(t, repo.CreateCustomer(ctx, c))

	older := newTestOrder(c.ID, domain.OrderLine{ProductID: p.ID, Quantity: 1, UnitPriceSnapshot: p.UnitPrice})
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := newTestOrder(c.ID, domain.OrderLine{ProductID: p.ID, Quantity: 2, UnitPriceSnapshot: p.UnitPrice})
	anonymous := newTestOrder("", domain.OrderLine{ProductID: p.ID, Quantity: 1, UnitPriceSnapshot: p.UnitPrice})
	placeOrder(t, repo, older)
	placeOrder(t, repo, newer)
	placeOrder(t, repo, anonymous)

	orders, err := repo.ListOrdersByCustomer(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, newer.ID, orders[0].ID)
	assert.Equal(t, older.ID, orders[1].ID)
	assert.Len(t, orders[0].Lines, 1)

	all, err := repo.ListOrders(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, older.ID, all[2].ID)

	limited, err := repo.ListOrders(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := repo.ListOrdersByCustomer(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSetPrice_KeepsOrderSnapshot(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createTestProduct(t, repo, "10.00", 5)

	order := newTestOrder("", domain.OrderLine{ProductID: p.ID, Quantity: 1, UnitPriceSnapshot: p.UnitPrice})
	placeOrder(t, repo, order)

	require.NoError(t, repo.SetPrice(ctx, p.ID, decimal.RequireFromString("15.00")))
	assert.ErrorIs(t, repo.SetPrice(ctx, p.ID, decimal.RequireFromString("-1")), ErrInvalidPrice)

	got, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.Lines[0].UnitPriceSnapshot.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("10.00")))
}

func TestDeleteProduct_Guarded(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	sold := createTestProduct(t, repo, "10.00", 5)
	unsold := createTestProduct(t, repo, "10.00", 5)
	placeOrder(t, repo, newTestOrder("", domain.OrderLine{ProductID: sold.ID, Quantity: 1, UnitPriceSnapshot: sold.UnitPrice}))

	assert.ErrorIs(t, repo.DeleteProduct(ctx, sold.ID), ErrProductReferenced)
	assert.NoError(t, repo.DeleteProduct(ctx, unsold.ID))
	assert.ErrorIs(t, repo.DeleteProduct(ctx, unsold.ID), ErrProductNotFound)

	_, err := repo.GetProduct(ctx, sold.ID)
	assert.NoError(t, err)
}

func TestDeleteCustomer_Guarded(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createTestProduct(t, repo, "10.00", 5)
	buyer := &domain.Customer{Name: "Buyer"}
	browser := &domain.Customer{Name: "Browser"}
	require.NoError(t, repo.CreateCustomer(ctx, buyer))
	require.NoError(t, repo.CreateCustomer(ctx, browser))
	placeOrder(t, repo, newTestOrder(buyer.ID, domain.OrderLine{ProductID: p.ID, Quantity: 1, UnitPriceSnapshot: p.UnitPrice}))

	assert.ErrorIs(t, repo.DeleteCustomer(ctx, buyer.ID), ErrCustomerReferenced)
	assert.NoError(t, repo.DeleteCustomer(ctx, browser.ID))
	assert.ErrorIs(t, repo.DeleteCustomer(ctx, browser.ID), ErrCustomerNotFound)

	customers, err := repo.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, buyer.ID, customers[0].ID)
}

func TestOutbox_UnprocessedThenMarked(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	event := &OutboxEvent{
		ID:          uuid.NewString(),
		AggregateID: uuid.NewString(),
		EventType:   EventTypeOrderPlaced,
		Payload:     []byte(`{"order_id":"x"}`),
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.WithinTx(ctx, func(uow UnitOfWork) error {
		return uow.InsertEvent(ctx, event)
	}))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ID, events[0].ID)
	assert.JSONEq(t, `{"order_id":"x"}`, string(events[0].Payload))

	require.NoError(t, repo.MarkEventAsProcessed(ctx, event.ID))
	assert.Error(t, repo.MarkEventAsProcessed(ctx, event.ID))

	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

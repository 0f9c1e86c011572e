package service

import (
	"context"
	"sync"
	"sync/atomic"

	d "github.com/danirudp/lipos/domain"
	r "github.com/danirudp/lipos/internal/repository"
	"github.com/danirudp/lipos/internal/store"
	"github.com/shopspring/decimal"
)

// SpyRepository counts every call that reaches the store.
type SpyRepository struct {
	r.RepoInterface
	Calls atomic.Int32
}

func (m *SpyRepository) hit() { m.Calls.Add(1) }

func (m *SpyRepository) WithinTx(ctx context.Context, fn func(uow r.UnitOfWork) error) error {
	m.hit()
	return m.RepoInterface.WithinTx(ctx, fn)
}

func (m *SpyRepository) Peek(ctx context.Context, productID string) (int, error) {
	m.hit()
	return m.RepoInterface.Peek(ctx, productID)
}

func (m *SpyRepository) SetStock(ctx context.Context, productID string, quantity int) error {
	m.hit()
	return m.RepoInterface.SetStock(ctx, productID, quantity)
}

func (m *SpyRepository) GetProduct(ctx context.Context, id string) (*d.Product, error) {
	m.hit()
	return m.RepoInterface.GetProduct(ctx, id)
}

func (m *SpyRepository) ListProducts(ctx context.Context) ([]*d.Product, error) {
	m.hit()
	return m.RepoInterface.ListProducts(ctx)
}

func (m *SpyRepository) CreateProduct(ctx context.Context, p *d.Product) error {
	m.hit()
	return m.RepoInterface.CreateProduct(ctx, p)
}

func (m *SpyRepository) SetPrice(ctx context.Context, id string, price decimal.Decimal) error {
	m.hit()
	return m.RepoInterface.SetPrice(ctx, id, price)
}

func (m *SpyRepository) DeleteProduct(ctx context.Context, id string) error {
	m.hit()
	return m.RepoInterface.DeleteProduct(ctx, id)
}

func (m *SpyRepository) CreateCustomer(ctx context.Context, c *d.Customer) error {
	m.hit()
	return m.RepoInterface.CreateCustomer(ctx, c)
}

func (m *SpyRepository) GetCustomer(ctx context.Context, id string) (*d.Customer, error) {
	m.hit()
	return m.RepoInterface.GetCustomer(ctx, id)
}

func (m *SpyRepository) ListCustomers(ctx context.Context) ([]*d.Customer, error) {
	m.hit()
	return m.RepoInterface.ListCustomers(ctx)
}

func (m *SpyRepository) DeleteCustomer(ctx context.Context, id string) error {
	m.hit()
	return m.RepoInterface.DeleteCustomer(ctx, id)
}

func (m *SpyRepository) GetOrderByID(ctx context.Context, id string) (*d.Order, error) {
	m.hit()
	return m.RepoInterface.GetOrderByID(ctx, id)
}

func (m *SpyRepository) GetOrderByIdempotencyKey(ctx context.Context, key string) (*d.Order, error) {
	m.hit()
	return m.RepoInterface.GetOrderByIdempotencyKey(ctx, key)
}

func (m *SpyRepository) ListOrders(ctx context.Context, limit int) ([]*d.Order, error) {
	m.hit()
	return m.RepoInterface.ListOrders(ctx, limit)
}

func (m *SpyRepository) ListOrdersByCustomer(ctx context.Context, customerID string) ([]*d.Order, error) {
	m.hit()
	return m.RepoInterface.ListOrdersByCustomer(ctx, customerID)
}

func (m *SpyRepository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*r.OutboxEvent, error) {
	m.hit()
	return m.RepoInterface.GetUnprocessedEvents(ctx, limit)
}

func (m *SpyRepository) MarkEventAsProcessed(ctx context.Context, id string) error {
	m.hit()
	return m.RepoInterface.MarkEventAsProcessed(ctx, id)
}

// HookedRepository runs hooks around every unit of work, to interleave other writers between
// pre-check and commit.
type HookedRepository struct {
	*store.MemoryStore
	BeforeCommit func(ctx context.Context, attempt int)
	AfterCommit  func(attempt int, err error)
	Commits      atomic.Int32

	PeekErr        error
	TxErr          error
	BlockInCommit  bool
	MissKeyLookups atomic.Int32 // GetOrderByIdempotencyKey reports not-found this many times
}

func (m *HookedRepository) WithinTx(ctx context.Context, fn func(uow r.UnitOfWork) error) error {
	attempt := int(m.Commits.Add(1))
	if m.BeforeCommit != nil {
		m.BeforeCommit(ctx, attempt)
	}
	if m.BlockInCommit {
		<-ctx.Done()
		return ctx.Err()
	}
	err := m.TxErr
	if err == nil {
		err = m.MemoryStore.WithinTx(ctx, fn)
	}
	if m.AfterCommit != nil {
		m.AfterCommit(attempt, err)
	}
	return err
}

func (m *HookedRepository) Peek(ctx context.Context, productID string) (int, error) {
	if m.PeekErr != nil {
		return 0, m.PeekErr
	}
	return m.MemoryStore.Peek(ctx, productID)
}

func (m *HookedRepository) GetOrderByIdempotencyKey(ctx context.Context, key string) (*d.Order, error) {
	if m.MissKeyLookups.Load() > 0 {
		m.MissKeyLookups.Add(-1)
		return nil, r.ErrOrderNotFound
	}
	return m.MemoryStore.GetOrderByIdempotencyKey(ctx, key)
}

// MockCatalog serves products from the store and records invalidations.
type MockCatalog struct {
	Source      CatalogReader
	mu          sync.Mutex
	Invalidated []string
}

func (m *MockCatalog) GetProduct(ctx context.Context, id string) (*d.Product, error) {
	return m.Source.GetProduct(ctx, id)
}

func (m *MockCatalog) Invalidate(_ context.Context, ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Invalidated = append(m.Invalidated, ids...)
}

func (m *MockCatalog) invalidated() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Invalidated...)
}

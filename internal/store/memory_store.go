package store

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/danirudp/lipos/domain"
	r "github.com/danirudp/lipos/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var errEventNotPending = errors.New("outbox event not found or already processed")

// MemoryStore keeps the catalog, customers, orders and outbox in process memory.
// A single mutex serializes units of work and administrative writes.
type MemoryStore struct {
	mu        sync.RWMutex
	products  map[string]*domain.Product
	customers map[string]*domain.Customer
	orders    []*domain.Order          // insertion order
	byID      map[string]*domain.Order // orderID -> order
	byKey     map[string]*domain.Order // idempotency key -> order
	events    []*r.OutboxEvent

	now func() time.Time

	stopCleanup chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		products:    make(map[string]*domain.Product),
		customers:   make(map[string]*domain.Customer),
		byID:        make(map[string]*domain.Order),
		byKey:       make(map[string]*domain.Order),
		now:         func() time.Time { return time.Now().UTC() },
		stopCleanup: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.pruneProcessedEvents(s.now().Add(-EventRetention))
		case <-s.stopCleanup:
			return
		}
	}
}

// pruneProcessedEvents drops relayed events processed before cutoff
func (s *MemoryStore) pruneProcessedEvents(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = slices.DeleteFunc(s.events, func(e *r.OutboxEvent) bool {
		return e.ProcessedAt != nil && e.ProcessedAt.Before(cutoff)
	})
}

// WithinTx runs fn against a staged view of the store and applies the staged writes only if fn
// succeeds.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(uow r.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	uow := &memoryUnitOfWork{store: s, stock: make(map[string]int)}
	if err := fn(uow); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := s.now()
	for id, qty := range uow.stock {
		p := s.products[id]
		p.StockQuantity = qty
		p.UpdatedAt = now
	}
	for _, o := range uow.orders {
		s.orders = append(s.orders, o)
		s.byID[o.ID] = o
		if o.IdempotencyKey != "" {
			s.byKey[o.IdempotencyKey] = o
		}
	}
	s.events = append(s.events, uow.events...)
	return nil
}

type memoryUnitOfWork struct {
	store  *MemoryStore
	stock  map[string]int // staged stock levels
	orders []*domain.Order
	events []*r.OutboxEvent
}

func (u *memoryUnitOfWork) CreateOrder(_ context.Context, order *domain.Order) error {
	if order.IdempotencyKey != "" {
		if _, exists := u.store.byKey[order.IdempotencyKey]; exists {
			return ErrDuplicateIdempotencyKey
		}
		for _, o := range u.orders {
			if o.IdempotencyKey == order.IdempotencyKey {
				return ErrDuplicateIdempotencyKey
			}
		}
	}
	if order.CustomerID != "" {
		if _, exists := u.store.customers[order.CustomerID]; !exists {
			return ErrCustomerNotFound
		}
	}
	for _, l := range order.Lines {
		if _, exists := u.store.products[l.ProductID]; !exists {
			return ErrProductNotFound
		}
	}

	u.orders = append(u.orders, cloneOrder(order))
	return nil
}

func (u *memoryUnitOfWork) ConditionalDecrement(_ context.Context, productID string, quantity int) (bool, error) {
	current, staged := u.stock[productID]
	if !staged {
		p, exists := u.store.products[productID]
		if !exists {
			return false, nil
		}
		current = p.StockQuantity
	}
	if current < quantity {
		return false, nil
	}
	u.stock[productID] = current - quantity
	return true, nil
}

func (u *memoryUnitOfWork) InsertEvent(_ context.Context, event *r.OutboxEvent) error {
	e := *event
	e.Payload = slices.Clone(event.Payload)
	u.events = append(u.events, &e)
	return nil
}

func (s *MemoryStore) Peek(_ context.Context, productID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.products[productID]
	if !exists {
		return 0, ErrProductNotFound
	}
	return p.StockQuantity, nil
}

func (s *MemoryStore) SetStock(_ context.Context, productID string, quantity int) error {
	if quantity < 0 {
		return ErrInvalidStock
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.products[productID]
	if !exists {
		return ErrProductNotFound
	}
	p.StockQuantity = quantity
	p.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.products[id]
	if !exists {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListProducts(_ context.Context) ([]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Product, 0, len(s.products))
	for _, p := range s.products {
		cp := *p
		result = append(result, &cp)
	}
	slices.SortFunc(result, func(a, b *domain.Product) int {
		if a.Category != b.Category {
			return cmp.Compare(a.Category, b.Category)
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return result, nil
}

func (s *MemoryStore) CreateProduct(_ context.Context, p *domain.Product) error {
	if p.StockQuantity < 0 {
		return ErrInvalidStock
	}
	if p.UnitPrice.IsNegative() {
		return ErrInvalidPrice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, exists := s.products[p.ID]; exists {
		return ErrDuplicateProduct
	}
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *MemoryStore) SetPrice(_ context.Context, id string, price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrInvalidPrice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.products[id]
	if !exists {
		return ErrProductNotFound
	}
	p.UnitPrice = price
	p.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return ErrProductNotFound
	}
	for _, o := range s.orders {
		for _, l := range o.Lines {
			if l.ProductID == id {
				return ErrProductReferenced
			}
		}
	}
	delete(s.products, id)
	return nil
}

func (s *MemoryStore) CreateCustomer(_ context.Context, c *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, exists := s.customers[c.ID]; exists {
		return ErrDuplicateCustomer
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	cp := *c
	s.customers[c.ID] = &cp
	return nil
}

func (s *MemoryStore) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.customers[id]
	if !exists {
		return nil, ErrCustomerNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) ListCustomers(_ context.Context) ([]*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		cp := *c
		result = append(result, &cp)
	}
	slices.SortFunc(result, func(a, b *domain.Customer) int { return cmp.Compare(a.Name, b.Name) })
	return result, nil
}

func (s *MemoryStore) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[id]; !exists {
		return ErrCustomerNotFound
	}
	for _, o := range s.orders {
		if o.CustomerID == id {
			return ErrCustomerReferenced
		}
	}
	delete(s.customers, id)
	return nil
}

func (s *MemoryStore) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.byID[id]
	if !exists {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *MemoryStore) GetOrderByIdempotencyKey(_ context.Context, key string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.byKey[key]
	if !exists {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *MemoryStore) ListOrders(_ context.Context, limit int) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.newestFirst(limit, func(*domain.Order) bool { return true }), nil
}

func (s *MemoryStore) ListOrdersByCustomer(_ context.Context, customerID string) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.newestFirst(0, func(o *domain.Order) bool { return o.CustomerID == customerID }), nil
}

// newestFirst must be called with mu held. Orders with equal timestamps keep reverse insertion order.
func (s *MemoryStore) newestFirst(limit int, keep func(*domain.Order) bool) []*domain.Order {
	result := make([]*domain.Order, 0)
	for i := len(s.orders) - 1; i >= 0; i-- {
		if keep(s.orders[i]) {
			result = append(result, cloneOrder(s.orders[i]))
		}
	}
	slices.SortStableFunc(result, func(a, b *domain.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func (s *MemoryStore) GetUnprocessedEvents(_ context.Context, limit int) ([]*r.OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*r.OutboxEvent
	for _, e := range s.events {
		if e.ProcessedAt != nil {
			continue
		}
		cp := *e
		result = append(result, &cp)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *MemoryStore) MarkEventAsProcessed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.events {
		if e.ID == id && e.ProcessedAt == nil {
			at := s.now()
			e.ProcessedAt = &at
			return nil
		}
	}
	return errEventNotPending
}

// Seed loads the demo catalog and the walk-in customer into an empty store.
func (s *MemoryStore) Seed(ctx context.Context) error {
	s.mu.RLock()
	empty := len(s.products) == 0
	s.mu.RUnlock()
	if !empty {
		return nil
	}

	for _, p := range r.DemoProducts() {
		if err := s.CreateProduct(ctx, p); err != nil {
			return err
		}
	}
	if err := s.CreateCustomer(ctx, r.WalkInCustomer()); err != nil && !errors.Is(err, ErrDuplicateCustomer) {
		return err
	}
	return nil
}

// Close stops the background cleanup and waits for it to finish
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
	s.wg.Wait()
	return nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Lines = slices.Clone(o.Lines)
	return &cp
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danirudp/lipos/domain"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

type Credentials struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	MaxOpenConns int
}

// UnitOfWork is the write side of a checkout commit. Every call made through it lands in the same
// transaction.
type UnitOfWork interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	// ConditionalDecrement subtracts quantity only if enough stock remains and reports whether it did.
	ConditionalDecrement(ctx context.Context, productID string, quantity int) (bool, error)
	InsertEvent(ctx context.Context, event *OutboxEvent) error
}

type TxManager interface {
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}

type StockLedger interface {
	Peek(ctx context.Context, productID string) (int, error)
	SetStock(ctx context.Context, productID string, quantity int) error
}

type CatalogRepository interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	SetPrice(ctx context.Context, id string, price decimal.Decimal) error
	DeleteProduct(ctx context.Context, id string) error
}

type CustomerRepository interface {
	CreateCustomer(ctx context.Context, c *domain.Customer) error
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
}

type OrderRepository interface {
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)
	ListOrders(ctx context.Context, limit int) ([]*domain.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error)
}

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id string) error
}

type RepoInterface interface {
	TxManager
	StockLedger
	CatalogRepository
	CustomerRepository
	OrderRepository
	OutboxRepository
	Close() error
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ RepoInterface = (*Repository)(nil)

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	maxOpen := cred.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 100
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(10)
	return newRepository(db, DialectPostgres), nil
}

// NewSQLiteRepository opens an embedded database. A single connection is kept so that units of work
// serialize and ":memory:" databases stay shared across calls.
func NewSQLiteRepository(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return newRepository(db, DialectSQLite), nil
}

func newRepository(db *sql.DB, dialect Dialect) *Repository {
	return &Repository{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *Repository) Dialect() Dialect {
	return r.dialect
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&txUnitOfWork{tx: tx, now: r.now}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type txUnitOfWork struct {
	tx  *sql.Tx
	now func() time.Time
}

func (u *txUnitOfWork) CreateOrder(ctx context.Context, order *domain.Order) error {
	return insertOrder(ctx, u.tx, order)
}

func (u *txUnitOfWork) ConditionalDecrement(ctx context.Context, productID string, quantity int) (bool, error) {
	return conditionalDecrement(ctx, u.tx, productID, quantity, u.now())
}

func (u *txUnitOfWork) InsertEvent(ctx context.Context, event *OutboxEvent) error {
	return insertEvent(ctx, u.tx, event)
}

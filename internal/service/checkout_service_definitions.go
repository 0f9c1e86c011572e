package service

import (
	"context"
	"log/slog"
	"time"

	d "github.com/danirudp/lipos/domain"
	r "github.com/danirudp/lipos/internal/repository"
	"github.com/danirudp/lipos/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/danirudp/lipos/internal/service"

type CheckoutService interface {
	PlaceOrder(ctx context.Context, req *d.PlaceOrderRequest) (*d.OrderConfirmation, error)
}

// CatalogReader is a possibly stale product lookup.
type CatalogReader interface {
	GetProduct(ctx context.Context, id string) (*d.Product, error)
}

// CatalogInvalidator is implemented by catalog readers that cache.
type CatalogInvalidator interface {
	Invalidate(ctx context.Context, ids ...string)
}

type Policy struct {
	// MaxRetries is how many times pre-check and commit are repeated after losing a stock race.
	MaxRetries     int
	RetryBaseDelay time.Duration
	CommitTimeout  time.Duration
	PriceTolerance decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     2,
		RetryBaseDelay: 20 * time.Millisecond,
		CommitTimeout:  10 * time.Second,
		PriceTolerance: decimal.Zero,
	}
}

type CheckoutServiceImpl struct {
	repo    r.RepoInterface
	catalog CatalogReader
	policy  Policy
	log     *slog.Logger
	metrics *metrics.CheckoutMetrics
	tracer  trace.Tracer

	now   func() time.Time
	newID func() string
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCheckoutService wires the engine. A nil catalog reads products straight from repo.
func NewCheckoutService(
	repo r.RepoInterface,
	catalog CatalogReader,
	policy Policy,
	log *slog.Logger,
	m *metrics.CheckoutMetrics,
) *CheckoutServiceImpl {
	if catalog == nil {
		catalog = repo
	}
	if log == nil {
		log = slog.Default()
	}
	if policy.CommitTimeout <= 0 {
		policy.CommitTimeout = DefaultPolicy().CommitTimeout
	}
	return &CheckoutServiceImpl{
		repo:    repo,
		catalog: catalog,
		policy:  policy,
		log:     log,
		metrics: m,
		tracer:  otel.Tracer(tracerName),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
		sleep:   sleepContext,
	}
}

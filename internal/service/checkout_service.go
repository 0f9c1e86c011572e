package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	d "github.com/danirudp/lipos/domain"
	r "github.com/danirudp/lipos/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PlaceOrder turns a cart into a durable order. It runs a lock-free pre-check, then an atomic
// commit that decrements stock only where enough remains. A commit that loses a stock race is
// retried up to Policy.MaxRetries times. Every failure is a *CheckoutError.
func (s *CheckoutServiceImpl) PlaceOrder(ctx context.Context, req *d.PlaceOrderRequest) (*d.OrderConfirmation, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.PlaceOrder")
	defer span.End()

	conf, err := s.placeOrder(ctx, req)
	s.record(ctx, span, req, conf, err)
	return conf, err
}

func (s *CheckoutServiceImpl) placeOrder(ctx context.Context, req *d.PlaceOrderRequest) (*d.OrderConfirmation, error) {
	method, err := validate(req)
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		conf, err := s.replay(ctx, req.IdempotencyKey)
		if err != nil || conf != nil {
			return conf, err
		}
	}

	demand := aggregate(req.Items)
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, canceled(err)
		}
		if err := s.precheck(ctx, req, demand); err != nil {
			return nil, err
		}
		// last point at which the caller can still back out
		if err := ctx.Err(); err != nil {
			return nil, canceled(err)
		}

		order := s.buildOrder(req, method)
		conflict, err := s.commit(ctx, order, demand)
		if errors.Is(err, r.ErrDuplicateIdempotencyKey) {
			// a concurrent request with the same key won
			return s.replayAfterDuplicate(ctx, req.IdempotencyKey)
		}
		if err != nil {
			return nil, err
		}
		if conflict == nil {
			s.afterCommit(ctx, req, order)
			return &d.OrderConfirmation{OrderID: order.ID, TotalAmount: order.TotalAmount}, nil
		}

		if attempt >= s.policy.MaxRetries {
			return nil, s.aborted(ctx, conflict)
		}
		s.metrics.Retry()
		s.log.DebugContext(ctx, "checkout commit lost stock race, retrying",
			"attempt", attempt+1, "product_id", conflict.productID)
		if err := s.sleep(ctx, backoff(s.policy.RetryBaseDelay, attempt)); err != nil {
			return nil, canceled(err)
		}
	}
}

func (s *CheckoutServiceImpl) replay(ctx context.Context, key string) (*d.OrderConfirmation, error) {
	order, err := s.repo.GetOrderByIdempotencyKey(ctx, key)
	if errors.Is(err, r.ErrOrderNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageFailure(ctx, fmt.Errorf("failed to check idempotency: %w", err))
	}

	s.log.InfoContext(ctx, "duplicate checkout request replayed",
		"idempotency_key", key, "order_id", order.ID)
	return &d.OrderConfirmation{OrderID: order.ID, TotalAmount: order.TotalAmount, Replayed: true}, nil
}

func (s *CheckoutServiceImpl) replayAfterDuplicate(ctx context.Context, key string) (*d.OrderConfirmation, error) {
	conf, err := s.replay(context.WithoutCancel(ctx), key)
	if err != nil {
		return nil, err
	}
	if conf == nil {
		return nil, persistenceUnavailable(fmt.Errorf("order for idempotency key %q vanished", key))
	}
	return conf, nil
}

// aborted builds the error for a commit that kept losing races, with a fresh stock reading.
func (s *CheckoutServiceImpl) aborted(ctx context.Context, c *stockConflict) error {
	if c.productID == "" {
		return contentionAborted()
	}
	available, err := s.repo.Peek(context.WithoutCancel(ctx), c.productID)
	if err != nil {
		s.log.WarnContext(ctx, "failed to read stock after aborted commit",
			"product_id", c.productID, "error", err)
		return stockUnknownAborted(c.productID, c.requested)
	}
	return commitAborted(c.productID, available, c.requested)
}

func (s *CheckoutServiceImpl) afterCommit(ctx context.Context, req *d.PlaceOrderRequest, order *d.Order) {
	if inv, ok := s.catalog.(CatalogInvalidator); ok {
		ids := make([]string, 0, len(order.Lines))
		for _, l := range order.Lines {
			ids = append(ids, l.ProductID)
		}
		inv.Invalidate(ctx, ids...)
	}

	if !req.DeclaredTotal.IsZero() && !req.DeclaredTotal.Equal(order.TotalAmount) {
		s.log.WarnContext(ctx, "declared total differs from computed total",
			"order_id", order.ID,
			"declared_total", req.DeclaredTotal.StringFixed(2),
			"computed_total", order.TotalAmount.StringFixed(2))
	}
}

func (s *CheckoutServiceImpl) record(
	ctx context.Context,
	span trace.Span,
	req *d.PlaceOrderRequest,
	conf *d.OrderConfirmation,
	err error,
) {
	if err == nil {
		outcome := "success"
		if conf.Replayed {
			outcome = "replayed"
		}
		s.metrics.Outcome(outcome)
		span.SetAttributes(attribute.String("order.id", conf.OrderID), attribute.Bool("order.replayed", conf.Replayed))
		if !conf.Replayed {
			s.log.InfoContext(ctx, "order placed",
				"order_id", conf.OrderID,
				"total", conf.TotalAmount.StringFixed(2),
				"lines", len(req.Items))
		}
		return
	}

	ce, ok := AsCheckoutError(err)
	if !ok {
		ce = &CheckoutError{Kind: KindPersistenceUnavailable, Err: err}
	}
	s.metrics.Outcome(strings.ToLower(string(ce.Kind)))
	span.SetAttributes(attribute.String("checkout.error_kind", string(ce.Kind)))

	if ce.Retryable() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.ErrorContext(ctx, "checkout failed", "kind", ce.Kind, "error", err)
		return
	}
	s.log.WarnContext(ctx, "checkout rejected",
		"kind", ce.Kind,
		"product_id", ce.ProductID,
		"available", ce.Available,
		"requested", ce.Requested,
		"error", err)
}

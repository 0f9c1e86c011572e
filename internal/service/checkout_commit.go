package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	d "github.com/danirudp/lipos/domain"
	r "github.com/danirudp/lipos/internal/repository"
)

var errStockRace = errors.New("conditional decrement not applied")

// stockConflict describes a commit that lost a race. productID is empty when the database itself
// reported contention (deadlock, serialization failure, busy) or a product vanished mid-commit.
type stockConflict struct {
	productID string
	requested int
}

func (s *CheckoutServiceImpl) buildOrder(req *d.PlaceOrderRequest, method d.PaymentMethod) *d.Order {
	orderID := s.newID()
	lines := make([]d.OrderLine, len(req.Items))
	for i, item := range req.Items {
		lines[i] = d.OrderLine{
			OrderID:           orderID,
			LineNo:            i + 1,
			ProductID:         item.ProductID,
			Quantity:          item.Quantity,
			UnitPriceSnapshot: item.UnitPriceSnapshot,
		}
	}
	return &d.Order{
		ID:             orderID,
		CustomerID:     req.CustomerID,
		TotalAmount:    d.OrderTotal(lines),
		Status:         d.OrderStatusCompleted,
		PaymentMethod:  method,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      s.now(),
		Lines:          lines,
	}
}

func (s *CheckoutServiceImpl) placedEvent(order *d.Order) (*r.OutboxEvent, error) {
	payload, err := json.Marshal(d.OrderPlacedEvent{
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: order.PaymentMethod,
		Lines:         order.Lines,
		PlacedAt:      order.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order payload: %w", err)
	}
	return &r.OutboxEvent{
		ID:          s.newID(),
		AggregateID: order.ID,
		EventType:   r.EventTypeOrderPlaced,
		Payload:     payload,
		CreatedAt:   order.CreatedAt,
	}, nil
}

// commit writes the order, its lines, the stock decrements and the outbox event in one unit of work.
// Caller cancellation no longer applies once it starts; only CommitTimeout can stop it.
// A non-nil conflict means the unit of work was rolled back because of contention and may be retried.
func (s *CheckoutServiceImpl) commit(ctx context.Context, order *d.Order, demand []productDemand) (*stockConflict, error) {
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.policy.CommitTimeout)
	defer cancel()
	commitCtx, span := s.tracer.Start(commitCtx, "checkout.commit")
	defer span.End()

	event, err := s.placedEvent(order)
	if err != nil {
		return nil, persistenceUnavailable(err)
	}

	start := s.now()
	var conflict *stockConflict
	err = s.repo.WithinTx(commitCtx, func(uow r.UnitOfWork) error {
		if err := uow.CreateOrder(commitCtx, order); err != nil {
			return err
		}
		for _, dm := range lockOrder(demand) {
			applied, err := uow.ConditionalDecrement(commitCtx, dm.productID, dm.quantity)
			if err != nil {
				return err
			}
			if !applied {
				conflict = &stockConflict{productID: dm.productID, requested: dm.quantity}
				return errStockRace
			}
		}
		return uow.InsertEvent(commitCtx, event)
	})
	s.metrics.ObserveCommit(float64(s.now().Sub(start).Microseconds()) / 1000)

	switch {
	case err == nil:
		return nil, nil
	case conflict != nil:
		return conflict, nil
	case commitCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded):
		return nil, commitTimeout(err)
	case r.IsContention(err):
		return &stockConflict{}, nil
	case errors.Is(err, r.ErrDuplicateIdempotencyKey):
		return nil, err
	case errors.Is(err, r.ErrCustomerNotFound):
		return nil, customerNotFound(order.CustomerID)
	case errors.Is(err, r.ErrProductNotFound):
		// deleted after pre-check; the next pre-check reports it properly
		return &stockConflict{}, nil
	default:
		return nil, persistenceUnavailable(fmt.Errorf("commit order: %w", err))
	}
}

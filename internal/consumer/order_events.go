package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/danirudp/lipos/domain"
	r "github.com/danirudp/lipos/internal/repository"
	"github.com/segmentio/kafka-go"
)

const readErrorBackoff = time.Second

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Invalidator interface {
	Invalidate(ctx context.Context, ids ...string)
}

// CatalogInvalidator drops cached products again when their order.placed event comes back from
// Kafka. A read that raced the commit can re-populate the cache with pre-commit stock; this second
// delete bounds that staleness to the relay delay instead of the cache TTL.
type CatalogInvalidator struct {
	reader      MessageReader
	invalidator Invalidator
	log         *slog.Logger
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewCatalogInvalidator(reader MessageReader, invalidator Invalidator, log *slog.Logger) *CatalogInvalidator {
	if log == nil {
		log = slog.Default()
	}
	return &CatalogInvalidator{reader: reader, invalidator: invalidator, log: log}
}

func (c *CatalogInvalidator) Run(ctx context.Context) {
	for ctx.Err() == nil {
		if err := c.handleNext(ctx); err != nil && ctx.Err() == nil {
			c.log.WarnContext(ctx, "failed to read order event", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(readErrorBackoff):
			}
		}
	}
}

func (c *CatalogInvalidator) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Error("error closing kafka reader", "error", err)
	}
}

// handleNext returns an error only when reading fails; bad payloads are logged and skipped.
func (c *CatalogInvalidator) handleNext(ctx context.Context) error {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return err
	}

	if eventType(m) != r.EventTypeOrderPlaced {
		return nil
	}

	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		c.log.WarnContext(ctx, "skipping malformed order event", "offset", m.Offset, "error", err)
		return nil
	}
	if len(event.Lines) == 0 {
		c.log.WarnContext(ctx, "skipping order event without lines", "order_id", event.OrderID)
		return nil
	}

	ids := make([]string, 0, len(event.Lines))
	for _, l := range event.Lines {
		ids = append(ids, l.ProductID)
	}
	c.invalidator.Invalidate(ctx, ids...)
	c.log.DebugContext(ctx, "catalog entries invalidated from order event",
		"order_id", event.OrderID, "products", len(ids))
	return nil
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}

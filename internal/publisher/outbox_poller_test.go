package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	r "github.com/danirudp/lipos/internal/repository"
	"github.com/danirudp/lipos/internal/store"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/goleak"
)

type MockWriter struct {
	mu       sync.Mutex
	Messages []kafkaGo.Message
	FailOn   map[string]error // keyed by order id
	Closed   bool
}

func (m *MockWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		if err := m.FailOn[string(msg.Key)]; err != nil {
			return err
		}
		m.Messages = append(m.Messages, msg)
	}
	return nil
}

func (m *MockWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

func (m *MockWriter) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.Messages))
	for _, msg := range m.Messages {
		keys = append(keys, string(msg.Key))
	}
	return keys
}

type MockOutbox struct {
	Events   []*r.OutboxEvent
	FetchErr error
	MarkErr  error
	Marked   []string
}

func (m *MockOutbox) GetUnprocessedEvents(context.Context, int) ([]*r.OutboxEvent, error) {
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	return m.Events, nil
}

func (m *MockOutbox) MarkEventAsProcessed(_ context.Context, id string) error {
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.Marked = append(m.Marked, id)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func event(id, orderID string) *r.OutboxEvent {
	return &r.OutboxEvent{
		ID:          id,
		AggregateID: orderID,
		EventType:   r.EventTypeOrderPlaced,
		Payload:     json.RawMessage(`{"order_id":"` + orderID + `"}`),
		CreatedAt:   time.Now().UTC(),
	}
}

func TestOutboxPoller_PublishesAndMarks(t *testing.T) {
	repo := &MockOutbox{Events: []*r.OutboxEvent{event("e1", "o1"), event("e2", "o2")}}
	writer := &MockWriter{}
	poller := NewOutboxPoller(repo, writer, time.Second, quietLogger())

	n := poller.processUnpublishedEvents(context.Background())

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"o1", "o2"}, writer.keys())
	assert.Equal(t, []string{"e1", "e2"}, repo.Marked)

	msg := writer.Messages[0]
	assert.JSONEq(t, `{"order_id":"o1"}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, r.EventTypeOrderPlaced, string(msg.Headers[0].Value))
}

func TestOutboxPoller_StopsBatchOnPublishFailure(t *testing.T) {
	repo := &MockOutbox{Events: []*r.OutboxEvent{event("e1", "o1"), event("e2", "o2"), event("e3", "o3")}}
	writer := &MockWriter{FailOn: map[string]error{"o2": errors.New("broker down")}}
	poller := NewOutboxPoller(repo, writer, time.Second, quietLogger())

	n := poller.processUnpublishedEvents(context.Background())

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"e1"}, repo.Marked, "failed and later events stay pending")
}

func TestOutboxPoller_FetchError(t *testing.T) {
	writer := &MockWriter{}
	poller := NewOutboxPoller(&MockOutbox{FetchErr: errors.New("database connection error")}, writer, time.Second, quietLogger())

	assert.Zero(t, poller.processUnpublishedEvents(context.Background()))
	assert.Empty(t, writer.keys())
}

func TestOutboxPoller_MarkErrorIsNotCounted(t *testing.T) {
	repo := &MockOutbox{Events: []*r.OutboxEvent{event("e1", "o1")}, MarkErr: errors.New("deadlock")}
	writer := &MockWriter{}
	poller := NewOutboxPoller(repo, writer, time.Second, quietLogger())

	assert.Zero(t, poller.processUnpublishedEvents(context.Background()))
	assert.Len(t, writer.keys(), 1, "published again next tick; consumers dedupe on event_id")
}

func TestOutboxPoller_RunRelaysFromStoreAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	mem := store.NewMemoryStore()
	defer mem.Close()

	ctx := context.Background()
	err := mem.WithinTx(ctx, func(uow r.UnitOfWork) error {
		return uow.InsertEvent(ctx, event("e1", "o1"))
	})
	require.NoError(t, err)

	writer := &MockWriter{}
	poller := NewOutboxPoller(mem, writer, 5*time.Millisecond, quietLogger())

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		poller.Run(runCtx)
	}()

	require.Eventually(t, func() bool {
		pending, err := mem.GetUnprocessedEvents(ctx, 10)
		return err == nil && len(pending) == 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, []string{"o1"}, writer.keys())
	assert.False(t, writer.Closed)
}

func TestOutboxPoller_PublishesToKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka container test in short mode")
	}
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)
	defer func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}()

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	const topic = "pos-orders-test"
	writer := NewKafkaWriter(topic, brokers...)
	defer writer.Close()

	repo := &MockOutbox{Events: []*r.OutboxEvent{event("e1", "order-123")}}
	poller := NewOutboxPoller(repo, writer, time.Second, quietLogger())
	poller.timeout = 30 * time.Second

	require.Eventually(t, func() bool {
		return poller.processUnpublishedEvents(ctx) == 1
	}, time.Minute, time.Second)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  "lipos-test-consumer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	msg, err := reader.ReadMessage(readCtx)
	require.NoError(t, err)

	assert.Equal(t, "order-123", string(msg.Key))
	assert.JSONEq(t, `{"order_id":"order-123"}`, string(msg.Value))
	assert.Contains(t, repo.Marked, "e1")
}

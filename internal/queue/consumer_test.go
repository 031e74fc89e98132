package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/flash-sale/internal/config"
	"github.com/iliyamo/flash-sale/internal/waitroom"
)

type ackCall struct {
	ack     bool
	requeue bool
}

type fakeAcker struct{ calls []ackCall }

func (f *fakeAcker) Ack(uint64, bool) error {
	f.calls = append(f.calls, ackCall{ack: true})
	return nil
}

func (f *fakeAcker) Nack(_ uint64, _ bool, requeue bool) error {
	f.calls = append(f.calls, ackCall{requeue: requeue})
	return nil
}

func (f *fakeAcker) Reject(_ uint64, requeue bool) error {
	f.calls = append(f.calls, ackCall{requeue: requeue})
	return nil
}

type failingStore struct{ err error }

func (f failingStore) Insert(context.Context, string, int64) error { return f.err }

func delivery(t *testing.T, acker *fakeAcker, v any) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: acker, DeliveryTag: 1, Body: body}
}

func newTestConsumer(store Inserter) *Consumer {
	c := NewConsumer(config.RabbitConfig{Partitions: 1}, store, zap.NewNop())
	c.retryDelay = 0
	return c
}

func TestConsumer_InsertsThenAcks(t *testing.T) {
	store := waitroom.NewMemoryStore()
	c := newTestConsumer(store)
	acker := &fakeAcker{}
	msg := EntryMessage{SessionID: "s1", ResourceID: 7, Token: "tok", Timestamp: 1000}

	c.handle(context.Background(), delivery(t, acker, msg))

	assert.Equal(t, []ackCall{{ack: true}}, acker.calls)
	rank, err := store.Rank(context.Background(), "s1:7:tok")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rank)
}

func TestConsumer_RedeliveryIsIdempotent(t *testing.T) {
	store := waitroom.NewMemoryStore()
	c := newTestConsumer(store)
	acker := &fakeAcker{}
	msg := EntryMessage{SessionID: "s1", ResourceID: 7, Token: "tok", Timestamp: 1000}

	c.handle(context.Background(), delivery(t, acker, msg))
	c.handle(context.Background(), delivery(t, acker, msg))

	size, err := store.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
	assert.Len(t, acker.calls, 2)
}

func TestConsumer_PreservesPartitionOrder(t *testing.T) {
	store := waitroom.NewMemoryStore()
	c := newTestConsumer(store)
	acker := &fakeAcker{}
	tokens := []string{"t3", "t1", "t2"}
	for _, tok := range tokens {
		c.handle(context.Background(), delivery(t, acker, EntryMessage{SessionID: "s", ResourceID: 1, Token: tok, Timestamp: 5000}))
	}

	head, err := store.TakeHead(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"s:1:t3", "s:1:t1", "s:1:t2"}, head)
}

func TestConsumer_StoreFailureRequeues(t *testing.T) {
	c := newTestConsumer(failingStore{err: errors.New("redis down")})
	acker := &fakeAcker{}

	c.handle(context.Background(), delivery(t, acker, EntryMessage{SessionID: "s", ResourceID: 1, Token: "t", Timestamp: 1}))

	assert.Equal(t, []ackCall{{requeue: true}}, acker.calls)
}

func TestConsumer_PoisonMessagesAreDropped(t *testing.T) {
	c := newTestConsumer(waitroom.NewMemoryStore())

	acker := &fakeAcker{}
	c.handle(context.Background(), amqp.Delivery{Acknowledger: acker, DeliveryTag: 1, Body: []byte("{not json")})
	assert.Equal(t, []ackCall{{requeue: false}}, acker.calls)

	acker = &fakeAcker{}
	c.handle(context.Background(), delivery(t, acker, EntryMessage{SessionID: "", ResourceID: 1, Token: "t", Timestamp: 1}))
	assert.Equal(t, []ackCall{{requeue: false}}, acker.calls)
}

package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/storefront-checkout/pkg/logging"
)

type memStore struct {
	mu       sync.Mutex
	events   []Event
	sent     []int64
	failed   map[int64]string
	extended int
}

func (s *memStore) LockBatch(_ context.Context, relayID string, batchSize int, _ time.Duration) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for i := range s.events {
		if s.events[i].Status != StatusPending || len(out) == batchSize {
			continue
		}
		s.events[i].Status = StatusInProgress
		s.events[i].RelayID = relayID
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *memStore) MarkSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, ids...)
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed == nil {
		s.failed = map[int64]string{}
	}
	s.failed[id] = errMsg
	return nil
}

func (s *memStore) ExtendLease(context.Context, string, []int64, time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extended++
	return nil
}

type fakeProducer struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	failOn string
}

func (p *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		if string(m.Key) == p.failOn {
			return errors.New("broker down")
		}
	}
	p.msgs = append(p.msgs, msgs...)
	return nil
}

type countingObserver struct{ outcomes []string }

func (o *countingObserver) OutboxDispatched(_, outcome string) { o.outcomes = append(o.outcomes, outcome) }

func TestRelayRunOnce(t *testing.T) {
	store := &memStore{events: []Event{
		{ID: 1, AggregateID: "TRX-1", Type: "TransactionCreated", Payload: []byte(`{}`), Status: StatusPending, Traceparent: "00-abc-def-01"},
		{ID: 2, AggregateID: "TRX-2", Type: "TransactionSettled", Payload: []byte(`{}`), Status: StatusPending, Headers: map[string]string{"source": "checkout"}},
		{ID: 3, AggregateID: "TRX-3", Type: "TransactionSettled", Payload: []byte(`{}`), Status: StatusPending},
	}}
	producer := &fakeProducer{failOn: "TRX-3"}
	obs := &countingObserver{}
	d := NewDispatcher(logging.Discard(), producer, "transaction.events").WithObserver(obs)
	r := NewRelay(logging.Discard(), store, d, "relay-test")

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 2}, store.sent)
	assert.Contains(t, store.failed, int64(3))
	assert.Equal(t, []string{"sent", "sent", "error"}, obs.outcomes)

	require.Len(t, producer.msgs, 2)
	first := producer.msgs[0]
	assert.Equal(t, "transaction.events", first.Topic)
	assert.Equal(t, "TRX-1", string(first.Key))
	assert.Equal(t, "TransactionCreated", header(first.Headers, HeaderEventType))
	assert.Equal(t, "00-abc-def-01", header(first.Headers, "traceparent"))
	assert.Equal(t, "checkout", header(producer.msgs[1].Headers, "source"))

	n, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRelayRunStopsOnCancel(t *testing.T) {
	store := &memStore{events: []Event{{ID: 7, AggregateID: "TRX-7", Type: "TransactionCreated", Status: StatusPending}}}
	producer := &fakeProducer{}
	r := NewRelay(logging.Discard(), store, NewDispatcher(logging.Discard(), producer, "t"), "relay-test").
		WithInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.sent) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func header(hs []kafka.Header, key string) string {
	for _, h := range hs {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

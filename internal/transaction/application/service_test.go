package application_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/storefront-checkout/internal/transaction/application"
	"github.com/dmehra2102/storefront-checkout/internal/transaction/domain"
	"github.com/dmehra2102/storefront-checkout/internal/transaction/infrastructure/memory"
	"github.com/dmehra2102/storefront-checkout/pkg/logging"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string]domain.Transaction
	hits int
}

func (c *mapCache) Get(_ context.Context, number string) (domain.Transaction, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.data[number]
	if ok {
		c.hits++
	}
	return t, ok, nil
}

func (c *mapCache) Put(_ context.Context, t domain.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string]domain.Transaction{}
	}
	c.data[t.Number] = t
	return nil
}

func newStore(t *testing.T) (*application.Store, *memory.Repository, *mapCache) {
	t.Helper()
	repo := memory.NewRepository()
	cache := &mapCache{}
	return application.NewStore(logging.Discard(), repo, cache), repo, cache
}

func TestCreateAndFind(t *testing.T) {
	ctx := context.Background()
	s, repo, _ := newStore(t)

	created, err := s.Create(ctx, application.NewTransaction{ProductID: 1, Quantity: 2, AmountCents: 20000, PaymentMethod: "CARD"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, created.Status)
	assert.Regexp(t, `^TRX-\d+-\d{1,3}$`, created.Number)

	byNumber, err := s.FindByNumber(ctx, created.Number)
	require.NoError(t, err)
	assert.Equal(t, created, byNumber)

	byID, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, byID)

	msgs := repo.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.EventTransactionCreated, msgs[0].Type)
	assert.Equal(t, created.Number, msgs[0].AggregateID)

	_, err = s.FindByNumber(ctx, "TRX-0-0")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.FindByID(ctx, 999)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateRetriesCollisions(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	var calls atomic.Int64
	// First three numbers collide with the seeded row, the fourth is fresh.
	gen := domain.NewFixedNumberGenerator(
		func() time.Time { return time.UnixMilli(1000) },
		func(int) int {
			if calls.Add(1) <= 3 {
				return 7
			}
			return 8
		},
	)
	repo.Seed(domain.Transaction{Number: "TRX-1000-7", Status: domain.StatusPending})
	s := application.NewStore(logging.Discard(), repo, nil).WithNumberGenerator(gen)

	created, err := s.Create(ctx, application.NewTransaction{ProductID: 1, Quantity: 1, AmountCents: 100, PaymentMethod: "CARD"})
	require.NoError(t, err)
	assert.Equal(t, "TRX-1000-8", created.Number)
	assert.Equal(t, int64(4), calls.Load())
}

func TestCreateGivesUpAfterBoundedAttempts(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	repo.Seed(domain.Transaction{Number: "TRX-1000-7", Status: domain.StatusPending})
	var calls atomic.Int64
	gen := domain.NewFixedNumberGenerator(
		func() time.Time { return time.UnixMilli(1000) },
		func(int) int { calls.Add(1); return 7 },
	)
	s := application.NewStore(logging.Discard(), repo, nil).WithNumberGenerator(gen)

	_, err := s.Create(ctx, application.NewTransaction{ProductID: 1, Quantity: 1, AmountCents: 100, PaymentMethod: "CARD"})
	require.ErrorIs(t, err, domain.ErrDuplicateReference)
	assert.Equal(t, int64(application.MaxNumberAttempts), calls.Load())
}

func TestUpdateStatusIsOneShot(t *testing.T) {
	ctx := context.Background()
	s, repo, cache := newStore(t)
	created, err := s.Create(ctx, application.NewTransaction{ProductID: 1, Quantity: 1, AmountCents: 100, PaymentMethod: "CARD"})
	require.NoError(t, err)

	details := json.RawMessage(`{"gateway_transaction_id":"gw-1","gateway_status":"APPROVED"}`)
	settled, err := s.UpdateStatus(ctx, created.Number, domain.StatusCompleted, details)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, settled.Status)
	assert.JSONEq(t, string(details), string(settled.PaymentDetails))

	_, err = s.UpdateStatus(ctx, created.Number, domain.StatusFailed, nil)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = s.UpdateStatus(ctx, created.Number, domain.StatusCompleted, nil)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := s.FindByNumber(ctx, created.Number)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, 1, cache.hits)

	msgs := repo.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.EventTransactionSettled, msgs[1].Type)
}

func TestUpdateStatusRejects(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newStore(t)
	created, err := s.Create(ctx, application.NewTransaction{ProductID: 1, Quantity: 1, AmountCents: 100, PaymentMethod: "CARD"})
	require.NoError(t, err)

	_, err = s.UpdateStatus(ctx, created.Number, domain.StatusPending, nil)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = s.UpdateStatus(ctx, "TRX-missing", domain.StatusFailed, nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentSettleHasOneWinner(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newStore(t)
	created, err := s.Create(ctx, application.NewTransaction{ProductID: 1, Quantity: 1, AmountCents: 100, PaymentMethod: "CARD"})
	require.NoError(t, err)

	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := domain.StatusCompleted
			if i%2 == 0 {
				to = domain.StatusFailed
			}
			if _, err := s.UpdateStatus(ctx, created.Number, to, nil); err == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int64(1), wins.Load())
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newStore(t)
	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, application.NewTransaction{ProductID: int64(i%2 + 1), Quantity: 1, AmountCents: 100, PaymentMethod: "CARD"})
		require.NoError(t, err)
	}
	all, err := s.List(ctx, domain.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Greater(t, all[0].ID, all[1].ID)

	p1, err := s.List(ctx, domain.Filter{ProductID: 1})
	require.NoError(t, err)
	assert.Len(t, p1, 2)

	done, err := s.List(ctx, domain.Filter{Status: domain.StatusCompleted})
	require.NoError(t, err)
	assert.Empty(t, done)
}

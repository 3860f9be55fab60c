package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	invdomain "github.com/dmehra2102/storefront-checkout/internal/inventory/domain"
	txapp "github.com/dmehra2102/storefront-checkout/internal/transaction/application"
	txdomain "github.com/dmehra2102/storefront-checkout/internal/transaction/domain"
	txmemory "github.com/dmehra2102/storefront-checkout/internal/transaction/infrastructure/memory"
	"github.com/dmehra2102/storefront-checkout/pkg/logging"
)

type scriptedReleaser struct {
	errs  []error
	calls int
}

func (r *scriptedReleaser) ReleaseStock(_ context.Context, id int64, qty int) (invdomain.Product, error) {
	r.calls++
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		if err != nil {
			return invdomain.Product{}, err
		}
	}
	return invdomain.Product{ID: id, Stock: qty}, nil
}

type outcomes []string

func (o *outcomes) Reconciled(outcome string) { *o = append(*o, outcome) }

var event = invdomain.StockReleaseFailed{EventID: "ev-1", TransactionNumber: "TRX-1-1", ProductID: 1, Quantity: 2}

func TestHandleRetriesUntilReleased(t *testing.T) {
	rel := &scriptedReleaser{errs: []error{errors.New("timeout"), nil}}
	var got outcomes
	s := NewService(logging.Discard(), rel, nil, &got).WithRetry(3, time.Millisecond)

	require.NoError(t, s.Handle(context.Background(), event))
	assert.Equal(t, 2, rel.calls)
	assert.Equal(t, outcomes{"released"}, got)
}

func TestHandleGivesUp(t *testing.T) {
	boom := errors.New("ledger down")
	rel := &scriptedReleaser{errs: []error{boom, boom, boom}}
	var got outcomes
	s := NewService(logging.Discard(), rel, nil, &got).WithRetry(3, time.Millisecond)

	require.ErrorIs(t, s.Handle(context.Background(), event), boom)
	assert.Equal(t, 3, rel.calls)
	assert.Equal(t, outcomes{"failed"}, got)
}

func TestHandleUnknownProduct(t *testing.T) {
	rel := &scriptedReleaser{errs: []error{invdomain.ErrNotFound}}
	var got outcomes
	s := NewService(logging.Discard(), rel, nil, &got).WithRetry(3, time.Millisecond)

	require.ErrorIs(t, s.Handle(context.Background(), event), invdomain.ErrNotFound)
	assert.Equal(t, 1, rel.calls)
	assert.Equal(t, outcomes{"unrecoverable"}, got)
}

func pendingTransaction(t *testing.T) (*txapp.Store, invdomain.StockReleaseFailed) {
	t.Helper()
	store := txapp.NewStore(logging.Discard(), txmemory.NewRepository(1), nil)
	tx, err := store.Create(context.Background(), txapp.NewTransaction{ProductID: 1, Quantity: 2, AmountCents: 200, PaymentMethod: "CARD"})
	require.NoError(t, err)
	return store, invdomain.StockReleaseFailed{
		EventID: "ev-2", TransactionNumber: tx.Number, ProductID: 1, Quantity: 2, SettlePending: true,
	}
}

func TestHandleFailsPendingTransactionBeforeRelease(t *testing.T) {
	store, ev := pendingTransaction(t)
	rel := &scriptedReleaser{}
	var got outcomes
	s := NewService(logging.Discard(), rel, store, &got).WithRetry(3, time.Millisecond)

	require.NoError(t, s.Handle(context.Background(), ev))
	tx, err := store.FindByNumber(context.Background(), ev.TransactionNumber)
	require.NoError(t, err)
	assert.Equal(t, txdomain.StatusFailed, tx.Status)
	assert.Contains(t, string(tx.PaymentDetails), `"source":"reconciliation"`)
	assert.Equal(t, 1, rel.calls)
	assert.Equal(t, outcomes{"released"}, got)
}

func TestHandleLeavesStockToTheOtherSettler(t *testing.T) {
	for _, status := range []txdomain.Status{txdomain.StatusFailed, txdomain.StatusCompleted} {
		t.Run(string(status), func(t *testing.T) {
			store, ev := pendingTransaction(t)
			_, err := store.UpdateStatus(context.Background(), ev.TransactionNumber, status, json.RawMessage(`{"source":"gateway_callback"}`))
			require.NoError(t, err)

			rel := &scriptedReleaser{}
			var got outcomes
			s := NewService(logging.Discard(), rel, store, &got).WithRetry(3, time.Millisecond)

			require.NoError(t, s.Handle(context.Background(), ev))
			assert.Zero(t, rel.calls)
			assert.Equal(t, outcomes{"settled_elsewhere"}, got)
		})
	}
}

func TestHandleRedeliveryReleasesWhatItFailed(t *testing.T) {
	store, ev := pendingTransaction(t)
	boom := errors.New("ledger down")
	rel := &scriptedReleaser{errs: []error{boom}}
	s := NewService(logging.Discard(), rel, store, nil).WithRetry(1, time.Millisecond)

	require.ErrorIs(t, s.Handle(context.Background(), ev), boom)
	require.NoError(t, s.Handle(context.Background(), ev))
	assert.Equal(t, 2, rel.calls)
}

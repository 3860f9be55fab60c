// Package memory is an in-process transaction repository with an attached
// outbox log, used by tests and local runs.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmehra2102/storefront-checkout/internal/transaction/domain"
	"github.com/dmehra2102/storefront-checkout/pkg/outbox"
)

type Repository struct {
	mu       sync.Mutex
	nextID   int64
	byNumber map[string]domain.Transaction
	byID     map[int64]string
	products map[int64]bool
	messages []outbox.Message
}

// NewRepository accepts the ids of existing products; an empty list disables
// the product reference check.
func NewRepository(productIDs ...int64) *Repository {
	r := &Repository{
		byNumber: map[string]domain.Transaction{},
		byID:     map[int64]string{},
	}
	if len(productIDs) > 0 {
		r.products = map[int64]bool{}
		for _, id := range productIDs {
			r.products[id] = true
		}
	}
	return r
}

func (r *Repository) InsertWithOutbox(_ context.Context, t domain.Transaction, msg outbox.Message) (domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byNumber[t.Number]; ok {
		return domain.Transaction{}, domain.ErrDuplicateReference
	}
	if r.products != nil && !r.products[t.ProductID] {
		return domain.Transaction{}, domain.ErrUnknownProduct
	}
	r.nextID++
	t.ID = r.nextID
	r.byNumber[t.Number] = t
	r.byID[t.ID] = t.Number
	r.messages = append(r.messages, msg)
	return t, nil
}

func (r *Repository) FindByNumber(_ context.Context, number string) (domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byNumber[number]
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}
	return t, nil
}

func (r *Repository) FindByID(_ context.Context, id int64) (domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	number, ok := r.byID[id]
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}
	return r.byNumber[number], nil
}

func (r *Repository) SettleWithOutbox(_ context.Context, number string, to domain.Status, details json.RawMessage, msg outbox.Message) (domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byNumber[number]
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}
	if err := t.Settle(to, details, time.Now().UTC()); err != nil {
		return domain.Transaction{}, err
	}
	r.byNumber[number] = t
	r.messages = append(r.messages, msg)
	return t, nil
}

func (r *Repository) List(_ context.Context, f domain.Filter) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Transaction, 0, len(r.byNumber))
	for _, t := range r.byNumber {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit := f.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Messages returns a copy of every outbox message written so far.
func (r *Repository) Messages() []outbox.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]outbox.Message(nil), r.messages...)
}

// Seed stores t as-is, for tests that need a pre-existing row.
func (r *Repository) Seed(t domain.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == 0 {
		r.nextID++
		t.ID = r.nextID
	}
	if t.Number == "" {
		t.Number = fmt.Sprintf("TRX-0-%d", t.ID)
	}
	r.byNumber[t.Number] = t
	r.byID[t.ID] = t.Number
}

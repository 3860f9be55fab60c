package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmehra2102/storefront-checkout/internal/transaction/domain"
	"github.com/dmehra2102/storefront-checkout/pkg/outbox"
	"github.com/dmehra2102/storefront-checkout/pkg/tracing"
)

// MaxNumberAttempts bounds how many fresh numbers Create tries on collision.
const MaxNumberAttempts = 5

type NewTransaction struct {
	ProductID     int64
	Quantity      int
	AmountCents   int64
	PaymentMethod string
}

type Store struct {
	log     *slog.Logger
	repo    Repository
	cache   Cache
	numbers *domain.NumberGenerator
	now     func() time.Time
}

// NewStore builds a Store. cache may be nil.
func NewStore(log *slog.Logger, repo Repository, cache Cache) *Store {
	return &Store{
		log:     log,
		repo:    repo,
		cache:   cache,
		numbers: domain.NewNumberGenerator(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithNumberGenerator replaces the reference generator.
func (s *Store) WithNumberGenerator(g *domain.NumberGenerator) *Store {
	s.numbers = g
	return s
}

// Create inserts a PENDING transaction under a freshly generated number.
func (s *Store) Create(ctx context.Context, in NewTransaction) (domain.Transaction, error) {
	now := s.now()
	for attempt := 1; attempt <= MaxNumberAttempts; attempt++ {
		t := domain.Transaction{
			Number:        s.numbers.Next(),
			AmountCents:   in.AmountCents,
			Quantity:      in.Quantity,
			Status:        domain.StatusPending,
			PaymentMethod: in.PaymentMethod,
			ProductID:     in.ProductID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		msg, err := s.message(ctx, t.Number, domain.EventTransactionCreated, domain.TransactionCreated{
			TransactionNumber: t.Number,
			ProductID:         t.ProductID,
			Quantity:          t.Quantity,
			AmountCents:       t.AmountCents,
			PaymentMethod:     t.PaymentMethod,
			CreatedAt:         now,
		})
		if err != nil {
			return domain.Transaction{}, err
		}

		created, err := s.repo.InsertWithOutbox(ctx, t, msg)
		if errors.Is(err, domain.ErrDuplicateReference) {
			s.log.Warn("transaction number collision", "transaction_number", t.Number, "attempt", attempt)
			continue
		}
		if err != nil {
			return domain.Transaction{}, err
		}
		s.log.Info("transaction created", "transaction_number", created.Number, "amount_cents", created.AmountCents)
		return created, nil
	}
	return domain.Transaction{}, fmt.Errorf("%w after %d attempts", domain.ErrDuplicateReference, MaxNumberAttempts)
}

func (s *Store) FindByNumber(ctx context.Context, number string) (domain.Transaction, error) {
	if s.cache != nil {
		t, ok, err := s.cache.Get(ctx, number)
		if err != nil {
			s.log.Warn("transaction cache read failed", "transaction_number", number, "err", err)
		} else if ok {
			return t, nil
		}
	}
	t, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return domain.Transaction{}, err
	}
	s.remember(ctx, t)
	return t, nil
}

func (s *Store) FindByID(ctx context.Context, id int64) (domain.Transaction, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateStatus settles a PENDING transaction. Calling it on a terminal
// transaction fails with domain.ErrInvalidTransition and changes nothing.
func (s *Store) UpdateStatus(ctx context.Context, number string, to domain.Status, details json.RawMessage) (domain.Transaction, error) {
	if !to.IsTerminal() {
		return domain.Transaction{}, fmt.Errorf("%w: cannot move to %q", domain.ErrInvalidTransition, to)
	}
	msg, err := s.message(ctx, number, domain.EventTransactionSettled, domain.TransactionSettled{
		TransactionNumber: number,
		Status:            to,
		SettledAt:         s.now(),
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	t, err := s.repo.SettleWithOutbox(ctx, number, to, details, msg)
	if err != nil {
		return domain.Transaction{}, err
	}
	s.log.Info("transaction settled", "transaction_number", number, "status", to)
	s.remember(ctx, t)
	return t, nil
}

func (s *Store) List(ctx context.Context, f domain.Filter) ([]domain.Transaction, error) {
	return s.repo.List(ctx, f)
}

func (s *Store) remember(ctx context.Context, t domain.Transaction) {
	if s.cache == nil || !t.Status.IsTerminal() {
		return
	}
	if err := s.cache.Put(ctx, t); err != nil {
		s.log.Warn("transaction cache write failed", "transaction_number", t.Number, "err", err)
	}
}

func (s *Store) message(ctx context.Context, number, eventType string, event any) (outbox.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return outbox.Message{}, err
	}
	return outbox.Message{
		AggregateType: domain.AggregateType,
		AggregateID:   number,
		Type:          eventType,
		Payload:       payload,
		Headers:       map[string]string{"source": "checkout-service"},
		Traceparent:   tracing.Traceparent(ctx),
	}, nil
}

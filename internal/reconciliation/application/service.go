package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	invdomain "github.com/dmehra2102/storefront-checkout/internal/inventory/domain"
	txdomain "github.com/dmehra2102/storefront-checkout/internal/transaction/domain"
)

type Releaser interface {
	ReleaseStock(ctx context.Context, id int64, qty int) (invdomain.Product, error)
}

// Settler fails transactions that checkout could not settle itself.
type Settler interface {
	UpdateStatus(ctx context.Context, number string, to txdomain.Status, details json.RawMessage) (txdomain.Transaction, error)
	FindByNumber(ctx context.Context, number string) (txdomain.Transaction, error)
}

const sourceReconciliation = "reconciliation"

type settlementNote struct {
	GatewayStatus string `json:"gateway_status,omitempty"`
	Source        string `json:"source"`
}

type Recorder interface {
	Reconciled(outcome string)
}

// Service retries stock releases that failed during checkout compensation.
type Service struct {
	log      *slog.Logger
	inv      Releaser
	txs      Settler
	rec      Recorder
	attempts int
	backoff  time.Duration
}

func NewService(log *slog.Logger, inv Releaser, txs Settler, rec Recorder) *Service {
	return &Service{log: log, inv: inv, txs: txs, rec: rec, attempts: 3, backoff: time.Second}
}

// WithRetry overrides how many times and how far apart a release is tried.
func (s *Service) WithRetry(attempts int, backoff time.Duration) *Service {
	s.attempts = attempts
	s.backoff = backoff
	return s
}

// Handle releases the stock described by ev. A product that no longer
// exists cannot be reconciled and is reported without retrying. For a
// transaction that was left PENDING the stock is released only after this
// service has moved it to FAILED.
func (s *Service) Handle(ctx context.Context, ev invdomain.StockReleaseFailed) error {
	log := s.log.With("event_id", ev.EventID, "transaction_number", ev.TransactionNumber, "product_id", ev.ProductID, "quantity", ev.Quantity)

	if ev.SettlePending {
		owns, err := s.failPending(ctx, log, ev.TransactionNumber)
		if err != nil {
			return err
		}
		if !owns {
			s.record("settled_elsewhere")
			return nil
		}
	}
	return s.release(ctx, log, ev)
}

// failPending moves the transaction to FAILED. It reports whether the stock
// is now this service's to release: either it won the transition just now
// or it won it on an earlier delivery of the same event.
func (s *Service) failPending(ctx context.Context, log *slog.Logger, number string) (bool, error) {
	note, err := json.Marshal(settlementNote{GatewayStatus: "ERROR", Source: sourceReconciliation})
	if err != nil {
		return false, err
	}

	for attempt := 1; ; attempt++ {
		_, err = s.txs.UpdateStatus(ctx, number, txdomain.StatusFailed, note)
		if err == nil {
			log.Info("pending transaction failed by reconciler")
			return true, nil
		}
		if errors.Is(err, txdomain.ErrInvalidTransition) {
			return s.failedByUs(ctx, log, number)
		}
		if errors.Is(err, txdomain.ErrNotFound) {
			s.record("unrecoverable")
			log.Error("pending transaction not found", "err", err)
			return false, err
		}
		log.Warn("failing pending transaction did not succeed", "attempt", attempt, "err", err)
		if attempt == s.attempts {
			s.record("failed")
			return false, err
		}
		if err := s.wait(ctx, attempt); err != nil {
			return false, err
		}
	}
}

func (s *Service) failedByUs(ctx context.Context, log *slog.Logger, number string) (bool, error) {
	current, err := s.txs.FindByNumber(ctx, number)
	if err != nil {
		return false, err
	}
	var note settlementNote
	_ = json.Unmarshal(current.PaymentDetails, &note)
	if current.Status == txdomain.StatusFailed && note.Source == sourceReconciliation {
		return true, nil
	}
	log.Info("transaction settled elsewhere, stock left to its settler", "status", current.Status)
	return false, nil
}

func (s *Service) release(ctx context.Context, log *slog.Logger, ev invdomain.StockReleaseFailed) error {
	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		_, err = s.inv.ReleaseStock(ctx, ev.ProductID, ev.Quantity)
		if err == nil {
			s.record("released")
			log.Info("stock reconciled", "attempt", attempt)
			return nil
		}
		if errors.Is(err, invdomain.ErrNotFound) || errors.Is(err, invdomain.ErrInvalidQuantity) {
			s.record("unrecoverable")
			log.Error("stock reconciliation impossible", "err", err)
			return err
		}
		log.Warn("stock reconciliation attempt failed", "attempt", attempt, "err", err)
		if attempt == s.attempts {
			break
		}
		if err := s.wait(ctx, attempt); err != nil {
			return err
		}
	}
	s.record("failed")
	log.Error("stock reconciliation exhausted, manual action required", "err", err)
	return err
}

func (s *Service) wait(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		s.record("aborted")
		return ctx.Err()
	case <-time.After(s.backoff * time.Duration(attempt)):
		return nil
	}
}

func (s *Service) record(outcome string) {
	if s.rec != nil {
		s.rec.Reconciled(outcome)
	}
}

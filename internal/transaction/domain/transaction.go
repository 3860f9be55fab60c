package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound           = errors.New("transaction not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidStatus      = errors.New("invalid transaction status")
	ErrDuplicateReference = errors.New("could not allocate a unique transaction number")
	ErrUnknownProduct     = errors.New("transaction references an unknown product")
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusCompleted, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition allows exactly PENDING -> COMPLETED and PENDING -> FAILED.
func (s Status) CanTransition(to Status) bool {
	return s == StatusPending && to.IsTerminal()
}

// Transaction is one payment attempt for a quantity of a single product.
// Number and AmountCents never change after creation.
type Transaction struct {
	ID             int64
	Number         string
	AmountCents    int64
	Quantity       int
	Status         Status
	PaymentMethod  string
	PaymentDetails json.RawMessage
	ProductID      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Settle moves a pending transaction to a terminal status.
func (t *Transaction) Settle(to Status, details json.RawMessage, at time.Time) error {
	if !t.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	t.Status = to
	if len(details) > 0 {
		t.PaymentDetails = details
	}
	t.UpdatedAt = at
	return nil
}

// Filter narrows List results. Zero values mean "any".
type Filter struct {
	Status    Status
	ProductID int64
	Limit     int
}

const DefaultListLimit = 100

func (f Filter) EffectiveLimit() int {
	if f.Limit <= 0 || f.Limit > DefaultListLimit*10 {
		return DefaultListLimit
	}
	return f.Limit
}

// Matches reports whether t passes the filter, ignoring Limit.
func (f Filter) Matches(t Transaction) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.ProductID != 0 && t.ProductID != f.ProductID {
		return false
	}
	return true
}

package domain

import (
	"errors"
	"fmt"

	txdomain "github.com/dmehra2102/storefront-checkout/internal/transaction/domain"
)

type Stage string

const (
	StageInitiated     Stage = "INITIATED"
	StageStockReserved Stage = "STOCK_RESERVED"
	StageAuthorizing   Stage = "AUTHORIZING"
	StageSettled       Stage = "SETTLED"
)

var stageOrder = map[Stage]int{
	StageInitiated:     0,
	StageStockReserved: 1,
	StageAuthorizing:   2,
	StageSettled:       3,
}

var ErrStageOrder = errors.New("checkout stage out of order")

// Attempt tracks one checkout through its stages. Stages only move forward
// one step at a time.
type Attempt struct {
	ProductID         int64
	Quantity          int
	Stage             Stage
	TransactionNumber string
	Outcome           txdomain.Status
}

func NewAttempt(productID int64, qty int) *Attempt {
	return &Attempt{ProductID: productID, Quantity: qty, Stage: StageInitiated}
}

func (a *Attempt) Advance(to Stage) error {
	if stageOrder[to] != stageOrder[a.Stage]+1 {
		return fmt.Errorf("%w: %s -> %s", ErrStageOrder, a.Stage, to)
	}
	a.Stage = to
	return nil
}

// Settle moves the attempt to SETTLED with a terminal outcome.
func (a *Attempt) Settle(outcome txdomain.Status) error {
	if !outcome.IsTerminal() {
		return fmt.Errorf("%w: outcome %s is not terminal", ErrStageOrder, outcome)
	}
	if err := a.Advance(StageSettled); err != nil {
		return err
	}
	a.Outcome = outcome
	return nil
}

package domain

import (
	"errors"
	"fmt"
)

var ErrReconciliationNeeded = errors.New("stock compensation failed, reconciliation needed")

// ReconciliationError reports a FAILED transaction whose reserved stock could
// not be returned. It matches both ErrReconciliationNeeded and Cause.
type ReconciliationError struct {
	TransactionNumber string
	ProductID         int64
	Quantity          int
	Cause             error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("transaction %s: releasing %d of product %d: %v", e.TransactionNumber, e.Quantity, e.ProductID, e.Cause)
}

func (e *ReconciliationError) Unwrap() []error {
	return []error{ErrReconciliationNeeded, e.Cause}
}

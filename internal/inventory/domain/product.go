package domain

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be greater than zero")
)

// Product is a catalog item. Stock is never negative; only the ledger changes it.
type Product struct {
	ID          int64
	Name        string
	PriceCents  int64
	Description string
	Stock       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CanReserve reports whether qty units can be taken from p.
func (p Product) CanReserve(qty int) bool {
	return qty > 0 && p.Stock >= qty
}

func ValidateQuantity(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// Package money does arithmetic on integer minor units and renders them as
// decimal strings for the API.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorUnitExponent is the number of decimal places in one major unit.
const MinorUnitExponent = 2

var (
	ErrNegative     = errors.New("money: amount must not be negative")
	ErrInvalidValue = errors.New("money: invalid amount")
)

// FromMinor returns the decimal representation of a minor-unit amount.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorUnitExponent)
}

// Format renders minor units with exactly two decimals, e.g. 20000 -> "200.00".
func Format(minor int64) string {
	return FromMinor(minor).StringFixed(MinorUnitExponent)
}

// Multiply returns unit * quantity, refusing results that overflow int64.
func Multiply(unit int64, quantity int) (int64, error) {
	if unit < 0 || quantity < 0 {
		return 0, ErrNegative
	}
	total := decimal.NewFromInt(unit).Mul(decimal.NewFromInt(int64(quantity)))
	if !total.IsInteger() || total.GreaterThan(decimal.NewFromInt(maxInt64)) {
		return 0, fmt.Errorf("%w: %d x %d overflows", ErrInvalidValue, unit, quantity)
	}
	return total.IntPart(), nil
}

const maxInt64 = int64(^uint64(0) >> 1)

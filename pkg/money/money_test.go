package money

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "200.00", Format(20000))
	assert.Equal(t, "0.05", Format(5))
	assert.Equal(t, "1299.99", Format(129999))
	assert.True(t, FromMinor(129999).Equal(decimal.RequireFromString("1299.99")))
}

func TestMultiply(t *testing.T) {
	got, err := Multiply(10000, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), got)

	_, err = Multiply(math.MaxInt64, 2)
	require.ErrorIs(t, err, ErrInvalidValue)

	_, err = Multiply(-1, 2)
	require.ErrorIs(t, err, ErrNegative)
}

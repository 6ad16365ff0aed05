package valueobjects

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinorUnits(t *testing.T) {
	t.Run("converts to major units only at the boundary", func(t *testing.T) {
		amount := MinorUnits(4900)

		assert.True(t, amount.Decimal().Equal(decimal.RequireFromString("49")))
		assert.Equal(t, "49.00", amount.String())
	})

	t.Run("keeps cents exact", func(t *testing.T) {
		amount := MinorUnits(1999)

		assert.Equal(t, "19.99", amount.String())
	})

	t.Run("round trips through decimal", func(t *testing.T) {
		back, err := MinorUnitsFromDecimal(decimal.RequireFromString("12.34"))

		require.NoError(t, err)
		assert.Equal(t, MinorUnits(1234), back)
	})

	t.Run("rejects sub-cent precision", func(t *testing.T) {
		_, err := MinorUnitsFromDecimal(decimal.RequireFromString("0.001"))

		require.Error(t, err)
	})

	t.Run("rejects amounts beyond int64 instead of wrapping", func(t *testing.T) {
		_, err := MinorUnitsFromDecimal(decimal.RequireFromString("92233720368547758.08"))
		require.ErrorIs(t, err, ErrAmountOutOfRange)

		_, err = MinorUnitsFromDecimal(decimal.RequireFromString("-92233720368547758.09"))
		require.ErrorIs(t, err, ErrAmountOutOfRange)
	})

	t.Run("accepts the largest representable amount", func(t *testing.T) {
		amount, err := MinorUnitsFromDecimal(decimal.RequireFromString("92233720368547758.07"))

		require.NoError(t, err)
		assert.Equal(t, MinorUnits(math.MaxInt64), amount)
		assert.True(t, amount.IsPositive())
	})
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCurrency, c)

	c, err = ParseCurrency("cad")
	require.NoError(t, err)
	assert.Equal(t, CurrencyCAD, c)

	_, err = ParseCurrency("XYZ")
	require.ErrorIs(t, err, ErrInvalidCurrency)
}

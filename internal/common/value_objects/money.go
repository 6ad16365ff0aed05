package valueobjects

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency represents a validated currency code.
type Currency string

// Supported currency codes
const (
	CurrencyUSD Currency = "USD"
	CurrencyCAD Currency = "CAD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

// DefaultCurrency is used when a request names no currency.
const DefaultCurrency = CurrencyUSD

// ErrInvalidCurrency is returned when parsing an unsupported currency code.
var ErrInvalidCurrency = errors.New("invalid or unsupported currency code")

// ErrNonPositiveAmount is returned when a positive amount is required but not provided.
var ErrNonPositiveAmount = errors.New("amount must be positive")

// ErrAmountOutOfRange is returned when a decimal amount does not fit in MinorUnits.
var ErrAmountOutOfRange = errors.New("amount out of range")

// validCurrencies is a set of supported currency codes.
var validCurrencies = map[Currency]bool{
	CurrencyUSD: true,
	CurrencyCAD: true,
	CurrencyEUR: true,
	CurrencyGBP: true,
}

// ParseCurrency validates and parses a currency code string.
// An empty string yields DefaultCurrency.
func ParseCurrency(s string) (Currency, error) {
	if s == "" {
		return DefaultCurrency, nil
	}
	c := Currency(strings.ToUpper(s))
	if !validCurrencies[c] {
		return "", fmt.Errorf("%w: %s", ErrInvalidCurrency, s)
	}
	return c, nil
}

// String returns the string representation of Currency.
func (c Currency) String() string {
	return string(c)
}

// minorUnitExponent is the number of decimal places between minor and major units.
const minorUnitExponent = -2

var (
	maxMinorUnits = decimal.NewFromInt(math.MaxInt64)
	minMinorUnits = decimal.NewFromInt(math.MinInt64)
)

// MinorUnits is an amount in the currency's smallest unit (cents).
// All internal arithmetic and comparisons stay in integers; conversion to a
// decimal major-unit amount happens only when talking to the processor.
type MinorUnits int64

// IsPositive returns true if amount > 0.
func (m MinorUnits) IsPositive() bool {
	return m > 0
}

// Decimal returns the major-unit amount, e.g. 4900 -> 49.00.
func (m MinorUnits) Decimal() decimal.Decimal {
	return decimal.New(int64(m), minorUnitExponent)
}

// String returns the major-unit amount with two decimal places.
func (m MinorUnits) String() string {
	return m.Decimal().StringFixed(2)
}

// MinorUnitsFromDecimal converts a major-unit decimal back to minor units.
// Sub-cent precision and amounts outside the int64 range are rejected rather
// than rounded or wrapped.
func MinorUnitsFromDecimal(d decimal.Decimal) (MinorUnits, error) {
	shifted := d.Shift(-minorUnitExponent)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has sub-minor-unit precision", d.String())
	}
	if shifted.GreaterThan(maxMinorUnits) || shifted.LessThan(minMinorUnits) {
		return 0, fmt.Errorf("%w: amount %s", ErrAmountOutOfRange, d.String())
	}
	return MinorUnits(shifted.IntPart()), nil
}

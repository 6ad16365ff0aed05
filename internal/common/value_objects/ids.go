package valueobjects

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrEmptyID is returned when parsing an empty string as an ID.
var ErrEmptyID = errors.New("id cannot be empty")

// MerchantAccountID identifies the merchant's customer account at the processor.
// It is a struct wrapper to prevent accidental type confusion at compile time.
type MerchantAccountID struct {
	value string
}

// ParseMerchantAccountID creates a MerchantAccountID from a string, validating it is non-empty.
func ParseMerchantAccountID(s string) (MerchantAccountID, error) {
	if s == "" {
		return MerchantAccountID{}, fmt.Errorf("merchant_account_id: %w", ErrEmptyID)
	}
	return MerchantAccountID{value: s}, nil
}

// MustParseMerchantAccountID creates a MerchantAccountID from a string, panicking on invalid input.
// Use only in tests or initialization code where panicking is acceptable.
func MustParseMerchantAccountID(s string) MerchantAccountID {
	id, err := ParseMerchantAccountID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the string representation of MerchantAccountID.
func (m MerchantAccountID) String() string {
	return m.value
}

// IsEmpty checks if the MerchantAccountID is empty.
func (m MerchantAccountID) IsEmpty() bool {
	return m.value == ""
}

// CorrelationID tracks a request across service boundaries.
// It is a struct wrapper to prevent accidental type confusion at compile time.
type CorrelationID struct {
	value string
}

// ParseCorrelationID creates a CorrelationID from a string, validating it is non-empty.
func ParseCorrelationID(s string) (CorrelationID, error) {
	if s == "" {
		return CorrelationID{}, fmt.Errorf("correlation_id: %w", ErrEmptyID)
	}
	return CorrelationID{value: s}, nil
}

// NewCorrelationID generates a new unique CorrelationID.
func NewCorrelationID() CorrelationID {
	return CorrelationID{value: uuid.NewString()}
}

// String returns the string representation of CorrelationID.
func (c CorrelationID) String() string {
	return c.value
}

// IsEmpty checks if the CorrelationID is empty.
func (c CorrelationID) IsEmpty() bool {
	return c.value == ""
}

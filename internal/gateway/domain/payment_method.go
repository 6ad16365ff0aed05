package domain

import (
	"fmt"
	"strings"
)

// Expiry is a card expiration month.
type Expiry struct {
	Year  int
	Month int
}

// Formatted returns the expiry as YYYYMM, the shape the processor expects.
func (e Expiry) Formatted() string {
	return fmt.Sprintf("%04d%02d", e.Year, e.Month)
}

// Card is raw card data for a fresh-card charge. Input validation (Luhn,
// expiry in the future) happens before the gateway is called.
type Card struct {
	Number           string
	Expiry           Expiry
	VerificationCode string
	FirstName        string
	LastName         string
}

// HolderName joins the cardholder's first and last name.
func (c Card) HolderName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// ReferenceKind selects how the processor resolves a stored reference.
type ReferenceKind string

const (
	// ReferenceByMerchantOrderID resolves the merchant-assigned order id of a prior transaction.
	ReferenceByMerchantOrderID ReferenceKind = "merchant_order_id"
	// ReferenceByRemoteRef resolves the processor's own transaction ref.
	ReferenceByRemoteRef ReferenceKind = "remote_ref"
)

// PaymentMethod is either raw card data or a stored reference, never both.
// Construct it with NewCardPaymentMethod or NewStoredPaymentMethod.
type PaymentMethod struct {
	card              *Card
	storedReference   string
	referenceKind     ReferenceKind
	merchantAccountID string
}

// NewCardPaymentMethod wraps raw card data.
func NewCardPaymentMethod(card Card) PaymentMethod {
	return PaymentMethod{card: &card}
}

// NewStoredPaymentMethod wraps a reference to a previously used payment method.
func NewStoredPaymentMethod(reference string, kind ReferenceKind, merchantAccountID string) (PaymentMethod, error) {
	if reference == "" {
		return PaymentMethod{}, ErrInvalidReference
	}
	if kind == "" {
		kind = ReferenceByMerchantOrderID
	}
	return PaymentMethod{
		storedReference:   reference,
		referenceKind:     kind,
		merchantAccountID: merchantAccountID,
	}, nil
}

// IsStored reports whether the method is a stored reference.
func (p PaymentMethod) IsStored() bool {
	return p.storedReference != ""
}

// Card returns the raw card data, if any.
func (p PaymentMethod) Card() (Card, bool) {
	if p.card == nil {
		return Card{}, false
	}
	return *p.card, true
}

// StoredReference returns the stored reference, empty for card methods.
func (p PaymentMethod) StoredReference() string {
	return p.storedReference
}

// ReferenceKind returns how the stored reference is resolved.
func (p PaymentMethod) ReferenceKind() ReferenceKind {
	return p.referenceKind
}

// MerchantAccountID returns the account the stored reference belongs to.
func (p PaymentMethod) MerchantAccountID() string {
	return p.merchantAccountID
}

// Validate checks that exactly one representation is populated.
func (p PaymentMethod) Validate() error {
	if (p.card == nil) == (p.storedReference == "") {
		return ErrInvalidPaymentMethod
	}
	return nil
}

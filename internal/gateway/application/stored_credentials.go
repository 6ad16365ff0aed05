package application

import "cardgate/internal/gateway/domain"

// StoredCredentials turns a prior order id into a reusable payment method.
// The lookup kind is fixed per gateway.
type StoredCredentials struct {
	kind domain.ReferenceKind
}

// NewStoredCredentials creates the adapter. An empty kind resolves by merchant order id.
func NewStoredCredentials(kind domain.ReferenceKind) StoredCredentials {
	if kind == "" {
		kind = domain.ReferenceByMerchantOrderID
	}
	return StoredCredentials{kind: kind}
}

// Resolve returns a stored payment method for priorOrderID owned by accountID.
// Returns domain.ErrInvalidReference when priorOrderID is empty.
func (s StoredCredentials) Resolve(priorOrderID, accountID string) (domain.PaymentMethod, error) {
	return domain.NewStoredPaymentMethod(priorOrderID, s.kind, accountID)
}

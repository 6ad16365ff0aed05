package domain

import vo "cardgate/internal/common/value_objects"

// ChargeOptions carries the per-call details of an authorize or purchase.
type ChargeOptions struct {
	// MerchantTransactionID is the merchant's order id; generated when empty.
	MerchantTransactionID string
	Currency              vo.Currency
	MerchantAccountID     string
	Email                 string
	SKU                   string
	ItemName              string
	TaxClass              string
	SourceIP              string
	CustomFields          map[string]string
	// Thresholds overrides the gateway's risk thresholds for this call only.
	Thresholds *RiskThresholds
}

// ChargeRequest is a fresh-card or already-resolved authorize/purchase request.
type ChargeRequest struct {
	Amount        vo.MinorUnits
	PaymentMethod PaymentMethod
	Address       *Address
	Options       ChargeOptions
}

// StoredChargeRequest charges a payment method reused from a prior order.
// Address is optional.
type StoredChargeRequest struct {
	Amount       vo.MinorUnits
	PriorOrderID string
	AccountID    string
	Address      *Address
	Options      ChargeOptions
}

// CaptureRequest settles a previously authorized amount.
type CaptureRequest struct {
	Amount             vo.MinorUnits
	AuthorizationToken string
}

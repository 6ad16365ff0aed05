package domain

import vo "cardgate/internal/common/value_objects"

// Address is a billing or shipping address. Absent fields are empty strings.
type Address struct {
	Line1      string
	City       string
	Region     string
	Country    string
	PostalCode string
}

// Account identifies the merchant's customer at the processor.
type Account struct {
	MerchantAccountID string
	Email             string
	Name              string
}

// LineItem is the single item billed by an authorization.
type LineItem struct {
	SKU             string
	Name            string
	PriceMinorUnits vo.MinorUnits
	Quantity        int
	TaxClass        string
}

// AuthorizationRequest is built once per authorize call and handed to the processor client.
// Address is nil when a stored-credential flow supplies none.
type AuthorizationRequest struct {
	AmountMinorUnits      vo.MinorUnits
	Currency              vo.Currency
	MerchantTransactionID string
	Account               Account
	PaymentMethod         PaymentMethod
	Address               *Address
	LineItem              LineItem
	SourceIP              string
	CustomFields          map[string]string
}

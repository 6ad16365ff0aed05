package domain

import "context"

// PaymentResult is the canonical outcome of every gateway operation.
// Succeeded and FraudReview are never both true. AuthorizationToken is empty
// when the call failed and left no capturable reference behind.
type PaymentResult struct {
	Succeeded          bool              `json:"succeeded"`
	FraudReview        bool              `json:"fraud_review"`
	Message            string            `json:"message"`
	AuthorizationToken string            `json:"authorization_token"`
	RawRemoteFields    map[string]string `json:"raw_remote_fields"`
	TestMode           bool              `json:"test_mode"`
	State              TransactionState  `json:"state"`
}

// FailedResult builds a failed result for outcomes decided before any remote call.
func FailedResult(message string, testMode bool) PaymentResult {
	return PaymentResult{
		Message:         message,
		RawRemoteFields: map[string]string{},
		TestMode:        testMode,
		State:           TransactionStateRejected,
	}
}

// PaymentGateway is the caller-facing contract every gateway implements.
type PaymentGateway interface {
	Purchase(ctx context.Context, req ChargeRequest) (PaymentResult, error)
	Authorize(ctx context.Context, req ChargeRequest) (PaymentResult, error)
	Capture(ctx context.Context, req CaptureRequest) (PaymentResult, error)
}

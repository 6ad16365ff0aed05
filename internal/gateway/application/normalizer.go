package application

import "cardgate/internal/gateway/domain"

// Normalizer maps a remote record plus the locally decided outcome onto a PaymentResult.
type Normalizer struct {
	testMode bool
}

// NewNormalizer creates a Normalizer. testMode is stamped on every result.
func NewNormalizer(testMode bool) Normalizer {
	return Normalizer{testMode: testMode}
}

// Normalize builds the canonical result for record.
//
//   - Succeeded is true only when no local failure was recorded and the processor
//     accepted the request. A fraud review is never a success.
//   - A local failure reason replaces the processor's message.
//   - The token is the processor ref whenever the processor accepted the request.
//   - Raw fields are copied so callers cannot alias the record.
func (n Normalizer) Normalize(record domain.RemoteRecord, failure domain.FailureReason, fraudReview bool) domain.PaymentResult {
	message := record.StatusMessage
	if !failure.IsEmpty() {
		message = failure.String()
	}

	var token string
	if record.OK() {
		token = record.Ref.String()
	}

	fields := make(map[string]string, len(record.Fields))
	for k, v := range record.Fields {
		fields[k] = v
	}

	return domain.PaymentResult{
		Succeeded:          failure.IsEmpty() && record.OK() && !fraudReview,
		FraudReview:        fraudReview,
		Message:            message,
		AuthorizationToken: token,
		RawRemoteFields:    fields,
		TestMode:           n.testMode,
	}
}

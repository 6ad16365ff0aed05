package domain

import "context"

// StatusOK is the processor's request status code for an accepted request.
const StatusOK = 200

// StatusAuthorized is the status-log status recorded when funds were reserved.
const StatusAuthorized = "Authorized"

// TransactionRef is the processor's opaque handle for one authorization.
// It is never parsed.
type TransactionRef string

// String returns the raw handle.
func (r TransactionRef) String() string {
	return string(r)
}

// IsEmpty reports whether the ref is unset.
func (r TransactionRef) IsEmpty() bool {
	return r == ""
}

// StatusLogEntry is one entry in a remote transaction's status history.
type StatusLogEntry struct {
	Status  string
	AVSCode string
	CVNCode string
}

// RemoteRecord is the processor's view of a transaction, populated by the transport layer.
// StatusLog is ordered newest first. Fields carries every raw field the processor
// returned, verbatim, for caller diagnostics.
type RemoteRecord struct {
	Ref                   TransactionRef
	MerchantTransactionID string
	StatusCode            int
	StatusMessage         string
	StatusLog             []StatusLogEntry
	Fields                map[string]string
}

// OK reports whether the processor accepted the request itself.
func (r RemoteRecord) OK() bool {
	return r.StatusCode == StatusOK
}

// CaptureResult is one per-ref entry in a capture acknowledgement.
type CaptureResult struct {
	Ref                   TransactionRef
	MerchantTransactionID string
	StatusCode            int
}

// CaptureAck is the processor's aggregate answer to a capture call. It may carry
// only counts and ids, not the updated transaction.
type CaptureAck struct {
	Attempted      int
	SucceededCount int
	FailedCount    int
	Results        []CaptureResult
}

// ProcessorClient is the remote payment processor. Implementations own transport,
// authentication and timeouts; calls are blocking and never retried here.
// Returned errors mean the call could not be completed; business rejections
// come back as a RemoteRecord with a non-OK StatusCode.
type ProcessorClient interface {
	// Authorize reserves funds. The processor fails the transaction itself when its
	// own risk score reaches riskScoreFail.
	Authorize(ctx context.Context, req AuthorizationRequest, riskScoreFail int) (RemoteRecord, error)
	// Capture settles the given authorizations.
	Capture(ctx context.Context, refs []TransactionRef) (CaptureAck, error)
	// Cancel voids pending authorizations.
	Cancel(ctx context.Context, refs []TransactionRef) error
	// FindByMerchantTransactionID returns the authoritative record for a transaction.
	// Returns ErrRemoteRecordNotFound when nothing matches.
	FindByMerchantTransactionID(ctx context.Context, id string) (RemoteRecord, error)
}

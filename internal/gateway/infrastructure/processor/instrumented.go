package processor

import (
	"context"
	"time"

	"cardgate/internal/common/logging"
	"cardgate/internal/common/metrics"
	"cardgate/internal/gateway/domain"
)

// Call outcomes recorded per processor operation.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Instrumented records latency and outcome of every processor call.
type Instrumented struct {
	next domain.ProcessorClient
	now  func() time.Time
}

// NewInstrumented wraps next.
func NewInstrumented(next domain.ProcessorClient) *Instrumented {
	return &Instrumented{next: next, now: time.Now}
}

func (i *Instrumented) observe(ctx context.Context, op string, start time.Time, outcome string) {
	elapsed := i.now().Sub(start)
	metrics.RecordProcessorCall(op, outcome, elapsed)
	logging.DebugContext(ctx, "Processor call finished",
		"operation", op,
		"outcome", outcome,
		"duration_ms", elapsed.Milliseconds(),
	)
}

func recordOutcome(record domain.RemoteRecord, err error) string {
	switch {
	case err != nil:
		return OutcomeError
	case !record.OK():
		return OutcomeRejected
	default:
		return OutcomeOK
	}
}

// Authorize implements domain.ProcessorClient.
func (i *Instrumented) Authorize(ctx context.Context, req domain.AuthorizationRequest, riskScoreFail int) (domain.RemoteRecord, error) {
	start := i.now()
	record, err := i.next.Authorize(ctx, req, riskScoreFail)
	i.observe(ctx, "authorize", start, recordOutcome(record, err))
	return record, err
}

// Capture implements domain.ProcessorClient.
func (i *Instrumented) Capture(ctx context.Context, refs []domain.TransactionRef) (domain.CaptureAck, error) {
	start := i.now()
	ack, err := i.next.Capture(ctx, refs)

	outcome := OutcomeOK
	switch {
	case err != nil:
		outcome = OutcomeError
	case ack.SucceededCount < len(refs):
		outcome = OutcomeRejected
	}
	i.observe(ctx, "capture", start, outcome)
	return ack, err
}

// Cancel implements domain.ProcessorClient.
func (i *Instrumented) Cancel(ctx context.Context, refs []domain.TransactionRef) error {
	start := i.now()
	err := i.next.Cancel(ctx, refs)

	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	i.observe(ctx, "cancel", start, outcome)
	return err
}

// FindByMerchantTransactionID implements domain.ProcessorClient.
func (i *Instrumented) FindByMerchantTransactionID(ctx context.Context, id string) (domain.RemoteRecord, error) {
	start := i.now()
	record, err := i.next.FindByMerchantTransactionID(ctx, id)
	i.observe(ctx, "find", start, recordOutcome(record, err))
	return record, err
}

var _ domain.ProcessorClient = (*Instrumented)(nil)

package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"cardgate/internal/common/logging"
	"cardgate/internal/common/metrics"
	"cardgate/internal/gateway/domain"
)

// BreakerSettings configures CircuitBreaker.
type BreakerSettings struct {
	Name string
	// MaxFailures is the number of consecutive connectivity failures that open the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before letting a probe through.
	OpenTimeout time.Duration
}

// CircuitBreaker stops calling an unreachable processor. Business rejections and
// lookup misses are answers, not outages, and never trip it. While open, every
// call fails fast with an error wrapping domain.ErrProcessorUnavailable.
type CircuitBreaker struct {
	next domain.ProcessorClient
	cb   *gobreaker.CircuitBreaker
}

// NewCircuitBreaker wraps next.
func NewCircuitBreaker(next domain.ProcessorClient, settings BreakerSettings) *CircuitBreaker {
	maxFailures := settings.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	name := settings.Name
	if name == "" {
		name = "processor"
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrRemoteRecordNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordBreakerTransition(to.String())
			logging.Warn("Processor circuit breaker changed state",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &CircuitBreaker{next: next, cb: cb}
}

// State reports the current breaker state, for readiness checks.
func (b *CircuitBreaker) State() gobreaker.State {
	return b.cb.State()
}

func execute[T any](b *CircuitBreaker, fn func() (T, error)) (T, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, fmt.Errorf("%w: %v", domain.ErrProcessorUnavailable, err)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return out.(T), nil
}

// Authorize implements domain.ProcessorClient.
func (b *CircuitBreaker) Authorize(ctx context.Context, req domain.AuthorizationRequest, riskScoreFail int) (domain.RemoteRecord, error) {
	return execute(b, func() (domain.RemoteRecord, error) {
		return b.next.Authorize(ctx, req, riskScoreFail)
	})
}

// Capture implements domain.ProcessorClient.
func (b *CircuitBreaker) Capture(ctx context.Context, refs []domain.TransactionRef) (domain.CaptureAck, error) {
	return execute(b, func() (domain.CaptureAck, error) {
		return b.next.Capture(ctx, refs)
	})
}

// Cancel implements domain.ProcessorClient.
func (b *CircuitBreaker) Cancel(ctx context.Context, refs []domain.TransactionRef) error {
	_, err := execute(b, func() (struct{}, error) {
		return struct{}{}, b.next.Cancel(ctx, refs)
	})
	return err
}

// FindByMerchantTransactionID implements domain.ProcessorClient.
func (b *CircuitBreaker) FindByMerchantTransactionID(ctx context.Context, id string) (domain.RemoteRecord, error) {
	return execute(b, func() (domain.RemoteRecord, error) {
		return b.next.FindByMerchantTransactionID(ctx, id)
	})
}

var _ domain.ProcessorClient = (*CircuitBreaker)(nil)

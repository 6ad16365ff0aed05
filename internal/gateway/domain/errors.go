package domain

import "errors"

// Domain errors for the gateway context.
var (
	// ErrInvalidReference is returned when a stored-credential reference is empty.
	ErrInvalidReference = errors.New("invalid stored payment reference")

	// ErrInvalidPaymentMethod is returned when a payment method carries neither or both representations.
	ErrInvalidPaymentMethod = errors.New("payment method must be either a card or a stored reference")

	// ErrInvalidStateTransition is returned when a transaction state transition is not allowed.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrMissingBillingAddress is returned when a fresh-card charge carries no billing address.
	ErrMissingBillingAddress = errors.New("billing address is required")

	// ErrProcessorUnavailable is returned when the remote processor cannot be reached.
	ErrProcessorUnavailable = errors.New("payment processor unavailable")

	// ErrRemoteRecordNotFound is returned by processor clients when a lookup matches nothing.
	ErrRemoteRecordNotFound = errors.New("remote transaction not found")

	// ErrPaymentNotFound is returned when the ledger holds no entry for a token.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrRequestInFlight is returned when a request with the same idempotency key is still running.
	ErrRequestInFlight = errors.New("request with this idempotency key is already in progress")

	// ErrIdempotencyKeyReused is returned when an idempotency key is replayed for a different operation.
	ErrIdempotencyKeyReused = errors.New("idempotency key was used for a different operation")

	// ErrUnknownRiskProfile is returned when a request names a risk profile that is not configured.
	ErrUnknownRiskProfile = errors.New("unknown risk profile")

	// ErrCorruptData is returned when data loaded from persistence is invalid.
	ErrCorruptData = errors.New("corrupt data in database")
)

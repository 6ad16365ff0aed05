package domain

import (
	"context"
	"time"

	vo "cardgate/internal/common/value_objects"
)

// Operation names a caller-facing gateway operation.
type Operation string

const (
	OperationAuthorize       Operation = "authorize"
	OperationPurchase        Operation = "purchase"
	OperationCapture         Operation = "capture"
	OperationStoredAuthorize Operation = "stored_authorize"
	OperationStoredPurchase  Operation = "stored_purchase"
)

// LedgerEntry is one recorded gateway outcome. The gateway core owns no state;
// the payment service records entries on the caller's behalf.
type LedgerEntry struct {
	ID                    string
	MerchantAccountID     vo.MerchantAccountID
	MerchantTransactionID string
	Operation             Operation
	AuthorizationToken    string
	Amount                vo.MinorUnits
	Currency              vo.Currency
	State                 TransactionState
	Succeeded             bool
	FraudReview           bool
	Message               string
	CreatedAt             time.Time
}

// LedgerRepository defines the interface for payment outcome persistence.
type LedgerRepository interface {
	// Append records an outcome.
	Append(ctx context.Context, entry *LedgerEntry) error
	// LatestByToken returns the newest entry for an authorization token recorded
	// by accountID. Returns ErrPaymentNotFound when the account has no record of it.
	LatestByToken(ctx context.Context, accountID vo.MerchantAccountID, token string) (*LedgerEntry, error)
}

// IdempotencyEntry represents a stored idempotency record.
type IdempotencyEntry struct {
	MerchantAccountID vo.MerchantAccountID
	IdempotencyKey    string
	Operation         Operation
	ResponseBody      []byte
	CreatedAt         time.Time
}

// IdempotencyStore defines the interface for idempotency key storage.
type IdempotencyStore interface {
	// Get retrieves an idempotency entry by account and key.
	// Returns (nil, nil) when no entry exists.
	Get(ctx context.Context, accountID vo.MerchantAccountID, key string) (*IdempotencyEntry, error)
	// Set stores or updates an idempotency entry for the given key.
	Set(ctx context.Context, entry *IdempotencyEntry) error
}

// InFlightGuard marks idempotency keys whose request is still running so that
// concurrent duplicates do not reach the processor twice.
// Acquire hands out an owner token; Release frees the key only while that token
// still holds it, so a request that outlived the TTL cannot free a later holder.
type InFlightGuard interface {
	// Acquire returns ErrRequestInFlight when the key is already held.
	Acquire(ctx context.Context, key string) (string, error)
	// Release frees the key if token is still its owner.
	Release(ctx context.Context, key, token string) error
}

// Repositories provides access to all repositories within a transaction.
type Repositories interface {
	Ledger() LedgerRepository
	IdempotencyStore() IdempotencyStore
}

// AtomicCallback is the function signature for atomic operations.
// Any error returned will cause the transaction to be rolled back.
type AtomicCallback func(repos Repositories) error

// AtomicExecutor runs a callback in one storage transaction; commits and
// rollbacks are left to the implementation.
type AtomicExecutor interface {
	// Atomic executes the callback within a database transaction.
	// If the callback returns nil, the transaction is committed.
	// If the callback returns an error, the transaction is rolled back.
	Atomic(ctx context.Context, fn AtomicCallback) error
}

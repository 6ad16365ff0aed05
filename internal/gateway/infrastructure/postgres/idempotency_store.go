package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	vo "cardgate/internal/common/value_objects"
	"cardgate/internal/gateway/domain"
)

// IdempotencyStore implements domain.IdempotencyStore using PostgreSQL.
type IdempotencyStore struct {
	db Executor
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(db Executor) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

// Get retrieves an idempotency entry by account and key.
// Returns (nil, nil) when no entry exists; absence is not treated as an error.
func (s *IdempotencyStore) Get(ctx context.Context, accountID vo.MerchantAccountID, key string) (*domain.IdempotencyEntry, error) {
	var (
		operation string
		body      []byte
		createdAt pgtype.Timestamptz
	)
	err := s.db.QueryRow(ctx, `
		SELECT operation, response_body, created_at
		FROM gateway.idempotency_keys
		WHERE merchant_account_id = $1 AND idempotency_key = $2`,
		accountID.String(), key,
	).Scan(&operation, &body, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	created, err := timestamptzToTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid created_at: %v", domain.ErrCorruptData, err)
	}

	return &domain.IdempotencyEntry{
		MerchantAccountID: accountID,
		IdempotencyKey:    key,
		Operation:         domain.Operation(operation),
		ResponseBody:      body,
		CreatedAt:         created,
	}, nil
}

// Set stores an idempotency entry.
// It upserts on (merchant_account_id, idempotency_key) and overwrites the stored response.
func (s *IdempotencyStore) Set(ctx context.Context, entry *domain.IdempotencyEntry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO gateway.idempotency_keys (merchant_account_id, idempotency_key, operation, response_body, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (merchant_account_id, idempotency_key)
		DO UPDATE SET operation = EXCLUDED.operation, response_body = EXCLUDED.response_body`,
		entry.MerchantAccountID.String(),
		entry.IdempotencyKey,
		string(entry.Operation),
		entry.ResponseBody,
		timeToTimestamptz(entry.CreatedAt),
	)
	return err
}

// Verify interface implementation.
var _ domain.IdempotencyStore = (*IdempotencyStore)(nil)

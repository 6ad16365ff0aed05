package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	vo "cardgate/internal/common/value_objects"
	"cardgate/internal/gateway/domain"
)

// LedgerRepository implements domain.LedgerRepository using PostgreSQL.
type LedgerRepository struct {
	db Executor
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(db Executor) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append inserts an outcome. Entries are never updated.
func (r *LedgerRepository) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	id, err := uuid.Parse(entry.ID)
	if err != nil {
		return fmt.Errorf("ledger entry id: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO gateway.payment_ledger (
			id, merchant_account_id, merchant_transaction_id, operation, authorization_token,
			amount, currency, state, succeeded, fraud_review, message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id,
		entry.MerchantAccountID.String(),
		entry.MerchantTransactionID,
		string(entry.Operation),
		entry.AuthorizationToken,
		minorUnitsToNumeric(entry.Amount),
		entry.Currency.String(),
		string(entry.State),
		entry.Succeeded,
		entry.FraudReview,
		entry.Message,
		timeToTimestamptz(entry.CreatedAt),
	)
	return err
}

// LatestByToken returns the newest entry the account recorded for a token.
// Returns ErrPaymentNotFound when missing.
func (r *LedgerRepository) LatestByToken(ctx context.Context, accountID vo.MerchantAccountID, token string) (*domain.LedgerEntry, error) {
	if token == "" || accountID.IsEmpty() {
		return nil, domain.ErrPaymentNotFound
	}

	var (
		id                                                 uuid.UUID
		storedAccount, merchantTxnID, operation, authToken string
		currency, state, message                           string
		succeeded, fraudReview                             bool
		amount                                             pgtype.Numeric
		createdAt                                          pgtype.Timestamptz
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, merchant_account_id, merchant_transaction_id, operation, authorization_token,
		       amount, currency, state, succeeded, fraud_review, message, created_at
		FROM gateway.payment_ledger
		WHERE authorization_token = $1 AND merchant_account_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, token, accountID.String(),
	).Scan(&id, &storedAccount, &merchantTxnID, &operation, &authToken,
		&amount, &currency, &state, &succeeded, &fraudReview, &message, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}

	minor, err := numericToMinorUnits(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid amount: %v", domain.ErrCorruptData, err)
	}
	parsedCurrency, err := vo.ParseCurrency(currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptData, err)
	}
	account, err := vo.ParseMerchantAccountID(storedAccount)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid merchant_account_id: %v", domain.ErrCorruptData, err)
	}
	created, err := timestamptzToTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid created_at: %v", domain.ErrCorruptData, err)
	}

	return &domain.LedgerEntry{
		ID:                    id.String(),
		MerchantAccountID:     account,
		MerchantTransactionID: merchantTxnID,
		Operation:             domain.Operation(operation),
		AuthorizationToken:    authToken,
		Amount:                minor,
		Currency:              parsedCurrency,
		State:                 domain.TransactionState(state),
		Succeeded:             succeeded,
		FraudReview:           fraudReview,
		Message:               message,
		CreatedAt:             created,
	}, nil
}

// Verify interface implementation.
var _ domain.LedgerRepository = (*LedgerRepository)(nil)

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cardgate/internal/common/metrics"
	"cardgate/internal/gateway/domain"
)

// DataStore implements domain.AtomicExecutor and domain.Repositories on PostgreSQL.
type DataStore struct {
	pool             *pgxpool.Pool
	ledgerRepo       *LedgerRepository
	idempotencyStore *IdempotencyStore
}

// NewDataStore creates a new DataStore with the given connection pool.
func NewDataStore(pool *pgxpool.Pool) *DataStore {
	return &DataStore{
		pool:             pool,
		ledgerRepo:       NewLedgerRepository(pool),
		idempotencyStore: NewIdempotencyStore(pool),
	}
}

// Ledger returns the ledger repository.
func (ds *DataStore) Ledger() domain.LedgerRepository {
	return ds.ledgerRepo
}

// IdempotencyStore returns the idempotency store.
func (ds *DataStore) IdempotencyStore() domain.IdempotencyStore {
	return ds.idempotencyStore
}

// withTx creates a DataStore whose repositories share tx.
func (ds *DataStore) withTx(tx pgx.Tx) *DataStore {
	return &DataStore{
		pool:             ds.pool,
		ledgerRepo:       NewLedgerRepository(tx),
		idempotencyStore: NewIdempotencyStore(tx),
	}
}

// Atomic executes the callback within a database transaction.
// If the callback returns nil, the transaction is committed.
// If the callback returns an error or panics, the transaction is rolled back.
func (ds *DataStore) Atomic(ctx context.Context, fn domain.AtomicCallback) (err error) {
	start := time.Now()
	tx, err := ds.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				err = fmt.Errorf("tx error: %v, rollback error: %v", err, rbErr)
			}
		} else {
			err = tx.Commit(ctx)
			if err != nil {
				err = fmt.Errorf("commit transaction: %w", err)
			}
		}
		metrics.RecordTransactionDuration("ledger", time.Since(start))
	}()

	err = fn(ds.withTx(tx))
	return
}

// Ping checks database connectivity, for readiness probes.
func (ds *DataStore) Ping(ctx context.Context) error {
	return ds.pool.Ping(ctx)
}

// Verify interface implementations.
var (
	_ domain.AtomicExecutor = (*DataStore)(nil)
	_ domain.Repositories   = (*DataStore)(nil)
)

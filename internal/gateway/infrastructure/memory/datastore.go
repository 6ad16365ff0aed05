package memory

import (
	"context"
	"sync"

	vo "cardgate/internal/common/value_objects"
	"cardgate/internal/gateway/domain"
)

// DataStore implements domain.AtomicExecutor and domain.Repositories in memory.
// It backs local runs and tests with the same Atomic semantics as Postgres.
// Concurrency: all access is guarded by a mutex.
type DataStore struct {
	mu              sync.RWMutex
	ledger          []*domain.LedgerEntry
	idempotencyKeys map[string]*domain.IdempotencyEntry

	ledgerRepo       *LedgerRepository
	idempotencyStore *IdempotencyStore
}

// NewDataStore creates a new in-memory DataStore.
func NewDataStore() *DataStore {
	ds := &DataStore{
		idempotencyKeys: make(map[string]*domain.IdempotencyEntry),
	}

	ds.ledgerRepo = &LedgerRepository{store: ds}
	ds.idempotencyStore = &IdempotencyStore{store: ds}

	return ds
}

// Ledger returns the ledger repository.
func (ds *DataStore) Ledger() domain.LedgerRepository {
	return ds.ledgerRepo
}

// IdempotencyStore returns the idempotency store.
func (ds *DataStore) IdempotencyStore() domain.IdempotencyStore {
	return ds.idempotencyStore
}

// LedgerEntries returns a copy of every committed ledger entry in append order.
func (ds *DataStore) LedgerEntries() []domain.LedgerEntry {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	out := make([]domain.LedgerEntry, len(ds.ledger))
	for i, e := range ds.ledger {
		out[i] = *e
	}
	return out
}

// Atomic executes the callback atomically.
// It locks the store, runs the callback against staged repositories,
// and commits staged changes only if the callback succeeds.
// Concurrency: the store is locked for the duration of the callback.
func (ds *DataStore) Atomic(ctx context.Context, fn domain.AtomicCallback) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	tx := &transactionalDataStore{
		parent:            ds,
		stagedIdempotency: make(map[string]*domain.IdempotencyEntry),
	}

	if err := fn(tx); err != nil {
		return err
	}

	ds.ledger = append(ds.ledger, tx.stagedLedger...)
	for k, v := range tx.stagedIdempotency {
		ds.idempotencyKeys[k] = v
	}

	return nil
}

func idempotencyKey(accountID vo.MerchantAccountID, key string) string {
	return accountID.String() + ":" + key
}

// latestByToken scans newest first. Callers hold the lock.
func latestByToken(entries []*domain.LedgerEntry, accountID vo.MerchantAccountID, token string) *domain.LedgerEntry {
	if token == "" {
		return nil
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].AuthorizationToken == token && entries[i].MerchantAccountID == accountID {
			entry := *entries[i]
			return &entry
		}
	}
	return nil
}

// transactionalDataStore provides transaction isolation for memory operations.
type transactionalDataStore struct {
	parent            *DataStore
	stagedLedger      []*domain.LedgerEntry
	stagedIdempotency map[string]*domain.IdempotencyEntry
}

func (tx *transactionalDataStore) Ledger() domain.LedgerRepository {
	return &txLedgerRepository{tx: tx}
}

func (tx *transactionalDataStore) IdempotencyStore() domain.IdempotencyStore {
	return &txIdempotencyStore{tx: tx}
}

type txLedgerRepository struct {
	tx *transactionalDataStore
}

func (r *txLedgerRepository) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	stored := *entry
	r.tx.stagedLedger = append(r.tx.stagedLedger, &stored)
	return nil
}

func (r *txLedgerRepository) LatestByToken(ctx context.Context, accountID vo.MerchantAccountID, token string) (*domain.LedgerEntry, error) {
	if entry := latestByToken(r.tx.stagedLedger, accountID, token); entry != nil {
		return entry, nil
	}
	if entry := latestByToken(r.tx.parent.ledger, accountID, token); entry != nil {
		return entry, nil
	}
	return nil, domain.ErrPaymentNotFound
}

type txIdempotencyStore struct {
	tx *transactionalDataStore
}

func (s *txIdempotencyStore) Get(ctx context.Context, accountID vo.MerchantAccountID, key string) (*domain.IdempotencyEntry, error) {
	k := idempotencyKey(accountID, key)
	if entry, ok := s.tx.stagedIdempotency[k]; ok {
		return entry, nil
	}
	if entry, ok := s.tx.parent.idempotencyKeys[k]; ok {
		return entry, nil
	}
	return nil, nil
}

func (s *txIdempotencyStore) Set(ctx context.Context, entry *domain.IdempotencyEntry) error {
	s.tx.stagedIdempotency[idempotencyKey(entry.MerchantAccountID, entry.IdempotencyKey)] = entry
	return nil
}

// LedgerRepository provides non-transactional access to the in-memory ledger.
type LedgerRepository struct {
	store *DataStore
}

// Append records an outcome.
func (r *LedgerRepository) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored := *entry
	r.store.ledger = append(r.store.ledger, &stored)
	return nil
}

// LatestByToken returns the newest entry the account recorded for a token.
// Returns ErrPaymentNotFound when missing.
func (r *LedgerRepository) LatestByToken(ctx context.Context, accountID vo.MerchantAccountID, token string) (*domain.LedgerEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if entry := latestByToken(r.store.ledger, accountID, token); entry != nil {
		return entry, nil
	}
	return nil, domain.ErrPaymentNotFound
}

// IdempotencyStore provides non-transactional access to in-memory idempotency records.
type IdempotencyStore struct {
	store *DataStore
}

// Get retrieves an idempotency entry by account and key.
// Returns (nil, nil) when no entry exists.
func (s *IdempotencyStore) Get(ctx context.Context, accountID vo.MerchantAccountID, key string) (*domain.IdempotencyEntry, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	if entry, ok := s.store.idempotencyKeys[idempotencyKey(accountID, key)]; ok {
		return entry, nil
	}
	return nil, nil
}

// Set stores or updates an idempotency entry by account and key.
func (s *IdempotencyStore) Set(ctx context.Context, entry *domain.IdempotencyEntry) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.idempotencyKeys[idempotencyKey(entry.MerchantAccountID, entry.IdempotencyKey)] = entry
	return nil
}

// Verify interface implementations
var (
	_ domain.AtomicExecutor = (*DataStore)(nil)
	_ domain.Repositories   = (*DataStore)(nil)
)

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vo "cardgate/internal/common/value_objects"
	"cardgate/internal/gateway/domain"
)

func TestDataStore_Atomic(t *testing.T) {
	ctx := context.Background()
	account := vo.MustParseMerchantAccountID("acct-1")

	t.Run("commits ledger and idempotency together", func(t *testing.T) {
		ds := NewDataStore()

		err := ds.Atomic(ctx, func(repos domain.Repositories) error {
			if err := repos.Ledger().Append(ctx, &domain.LedgerEntry{ID: "1", MerchantAccountID: account, AuthorizationToken: "ref-1", State: domain.TransactionStateCaptureEligible}); err != nil {
				return err
			}
			// Staged writes are visible inside the callback.
			if _, err := repos.Ledger().LatestByToken(ctx, account, "ref-1"); err != nil {
				return err
			}
			return repos.IdempotencyStore().Set(ctx, &domain.IdempotencyEntry{MerchantAccountID: account, IdempotencyKey: "k1"})
		})
		require.NoError(t, err)

		entry, err := ds.Ledger().LatestByToken(ctx, account, "ref-1")
		require.NoError(t, err)
		assert.Equal(t, "1", entry.ID)

		idem, err := ds.IdempotencyStore().Get(ctx, account, "k1")
		require.NoError(t, err)
		assert.NotNil(t, idem)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		ds := NewDataStore()
		boom := errors.New("boom")

		err := ds.Atomic(ctx, func(repos domain.Repositories) error {
			_ = repos.Ledger().Append(ctx, &domain.LedgerEntry{ID: "1", MerchantAccountID: account, AuthorizationToken: "ref-1"})
			return boom
		})

		require.ErrorIs(t, err, boom)
		_, err = ds.Ledger().LatestByToken(ctx, account, "ref-1")
		assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
		assert.Empty(t, ds.LedgerEntries())
	})

	t.Run("ledger entries are returned in append order", func(t *testing.T) {
		ds := NewDataStore()
		for _, id := range []string{"1", "2"} {
			require.NoError(t, ds.Ledger().Append(ctx, &domain.LedgerEntry{ID: id, AuthorizationToken: "ref-1"}))
		}

		entries := ds.LedgerEntries()

		require.Len(t, entries, 2)
		assert.Equal(t, "1", entries[0].ID)
		assert.Equal(t, "2", entries[1].ID)
	})
}

func TestLedgerRepository_LatestByToken(t *testing.T) {
	ctx := context.Background()
	account := vo.MustParseMerchantAccountID("acct-1")
	other := vo.MustParseMerchantAccountID("acct-2")
	ds := NewDataStore()

	require.NoError(t, ds.Ledger().Append(ctx, &domain.LedgerEntry{ID: "1", MerchantAccountID: account, AuthorizationToken: "ref-1", Operation: domain.OperationAuthorize}))
	require.NoError(t, ds.Ledger().Append(ctx, &domain.LedgerEntry{ID: "2", MerchantAccountID: account, AuthorizationToken: "ref-1", Operation: domain.OperationCapture}))
	require.NoError(t, ds.Ledger().Append(ctx, &domain.LedgerEntry{ID: "3", MerchantAccountID: account, Operation: domain.OperationAuthorize}))

	t.Run("newest entry wins", func(t *testing.T) {
		entry, err := ds.Ledger().LatestByToken(ctx, account, "ref-1")
		require.NoError(t, err)
		assert.Equal(t, "2", entry.ID)
	})

	t.Run("empty token is not found", func(t *testing.T) {
		_, err := ds.Ledger().LatestByToken(ctx, account, "")
		assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
	})

	t.Run("other accounts cannot read the token", func(t *testing.T) {
		_, err := ds.Ledger().LatestByToken(ctx, other, "ref-1")
		assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
	})
}

func TestInFlightGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("second acquire is rejected until release", func(t *testing.T) {
		g := NewInFlightGuard(time.Minute)

		token, err := g.Acquire(ctx, "k")
		require.NoError(t, err)
		_, err = g.Acquire(ctx, "k")
		assert.ErrorIs(t, err, domain.ErrRequestInFlight)

		require.NoError(t, g.Release(ctx, "k", token))
		_, err = g.Acquire(ctx, "k")
		assert.NoError(t, err)
	})

	t.Run("expired keys can be reacquired", func(t *testing.T) {
		g := NewInFlightGuard(time.Second)
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		g.now = func() time.Time { return now }

		_, err := g.Acquire(ctx, "k")
		require.NoError(t, err)
		now = now.Add(2 * time.Second)
		_, err = g.Acquire(ctx, "k")
		assert.NoError(t, err)
	})

	t.Run("late release does not free a newer holder", func(t *testing.T) {
		g := NewInFlightGuard(time.Second)
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		g.now = func() time.Time { return now }

		first, err := g.Acquire(ctx, "k")
		require.NoError(t, err)

		// The first request outlives its TTL and a duplicate takes the key.
		now = now.Add(2 * time.Second)
		second, err := g.Acquire(ctx, "k")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		require.NoError(t, g.Release(ctx, "k", first))

		_, err = g.Acquire(ctx, "k")
		assert.ErrorIs(t, err, domain.ErrRequestInFlight)

		require.NoError(t, g.Release(ctx, "k", second))
		_, err = g.Acquire(ctx, "k")
		assert.NoError(t, err)
	})
}

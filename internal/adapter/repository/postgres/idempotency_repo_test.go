package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/iho/verifikat/internal/domain"
)

func TestIdempotencyRepositoryFind(t *testing.T) {
	pool := newMockPool(t)
	repo := newIdempotencyRepository(pool)
	columns := []string{"hash", "entry_id", "voucher_id", "account_number", "created_at", "expires_at"}
	expires := repoNow.Add(30 * time.Second)

	pool.ExpectQuery("FROM entry_fingerprints WHERE hash = \\$1").
		WithArgs("abc123").
		WillReturnRows(pgxmock.NewRows(columns).AddRow("abc123", "e-1", "v-1", "1930", repoNow, expires))
	pool.ExpectQuery("FROM entry_fingerprints WHERE hash = \\$1").
		WithArgs("unknown").
		WillReturnRows(pgxmock.NewRows(columns))

	rec, err := repo.Find(context.Background(), nil, "abc123")
	require.NoError(t, err)
	require.Equal(t, "e-1", rec.EntryID)
	require.False(t, rec.IsExpired(repoNow))
	require.True(t, rec.IsExpired(expires))

	rec, err = repo.Find(context.Background(), nil, "unknown")
	require.NoError(t, err)
	require.Nil(t, rec)
	assertExpectations(t, pool)
}

func TestIdempotencyRepositorySaveUpserts(t *testing.T) {
	pool := newMockPool(t)
	repo := newIdempotencyRepository(pool)
	tx := beginTx(t, pool)

	rec := &domain.IdempotencyRecord{
		Hash: "abc123", EntryID: "e-2", VoucherID: "v-1", AccountNumber: "1930",
		CreatedAt: repoNow, ExpiresAt: repoNow.Add(30 * time.Second),
	}
	pool.ExpectExec("ON CONFLICT \\(hash\\) DO UPDATE").
		WithArgs("abc123", "e-2", "v-1", "1930", timeToPgTimestamptz(rec.CreatedAt), timeToPgTimestamptz(rec.ExpiresAt)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectCommit()

	require.NoError(t, repo.Save(context.Background(), tx, rec))
	require.NoError(t, tx.Commit(context.Background()))
	assertExpectations(t, pool)
}

func TestIdempotencyRepositoryDeleteExpired(t *testing.T) {
	pool := newMockPool(t)
	repo := newIdempotencyRepository(pool)

	pool.ExpectExec("DELETE FROM entry_fingerprints WHERE expires_at <= \\$1").
		WithArgs(timeToPgTimestamptz(repoNow)).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := repo.DeleteExpired(context.Background(), repoNow)
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
	assertExpectations(t, pool)
}

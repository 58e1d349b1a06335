package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/verifikat/internal/domain"
	"github.com/iho/verifikat/internal/usecase"
)

// IdempotencyRepository implements usecase.IdempotencyRepository over the
// entry_fingerprints table.
type IdempotencyRepository struct {
	db querier
}

// NewIdempotencyRepository creates a new IdempotencyRepository.
func NewIdempotencyRepository(pool *pgxpool.Pool) *IdempotencyRepository {
	return newIdempotencyRepository(pool)
}

func newIdempotencyRepository(db querier) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Find returns the fingerprint record for hash, or nil when none exists.
// Expired records are returned; the caller decides whether they still count.
func (r *IdempotencyRepository) Find(ctx context.Context, tx usecase.Transaction, hash string) (*domain.IdempotencyRecord, error) {
	var (
		rec       domain.IdempotencyRecord
		createdAt pgtype.Timestamptz
		expiresAt pgtype.Timestamptz
	)

	err := conn(r.db, tx).QueryRow(ctx, `
		SELECT hash, entry_id, voucher_id, account_number, created_at, expires_at
		FROM entry_fingerprints WHERE hash = $1`, hash).
		Scan(&rec.Hash, &rec.EntryID, &rec.VoucherID, &rec.AccountNumber, &createdAt, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rec.CreatedAt = createdAt.Time
	rec.ExpiresAt = expiresAt.Time

	return &rec, nil
}

// Save stores the record, replacing an expired one with the same hash.
func (r *IdempotencyRepository) Save(ctx context.Context, tx usecase.Transaction, rec *domain.IdempotencyRecord) error {
	_, err := conn(r.db, tx).Exec(ctx, `
		INSERT INTO entry_fingerprints (hash, entry_id, voucher_id, account_number, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (hash) DO UPDATE SET
			entry_id = EXCLUDED.entry_id,
			voucher_id = EXCLUDED.voucher_id,
			account_number = EXCLUDED.account_number,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`,
		rec.Hash,
		rec.EntryID,
		rec.VoucherID,
		rec.AccountNumber,
		timeToPgTimestamptz(rec.CreatedAt),
		timeToPgTimestamptz(rec.ExpiresAt),
	)

	return err
}

// DeleteExpired removes records that expired before the given instant.
func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM entry_fingerprints WHERE expires_at <= $1`, timeToPgTimestamptz(before))
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

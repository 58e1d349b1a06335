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

// TOTPRepository implements usecase.TOTPRepository.
type TOTPRepository struct {
	db querier
}

// NewTOTPRepository creates a new TOTPRepository.
func NewTOTPRepository(pool *pgxpool.Pool) *TOTPRepository {
	return newTOTPRepository(pool)
}

func newTOTPRepository(db querier) *TOTPRepository {
	return &TOTPRepository{db: db}
}

// GetSecret returns the user's active secret.
func (r *TOTPRepository) GetSecret(ctx context.Context, tx usecase.Transaction, userID string) (*domain.TOTPSecret, error) {
	var (
		s          domain.TOTPSecret
		lastUsedAt pgtype.Timestamptz
		createdAt  pgtype.Timestamptz
	)

	err := conn(r.db, tx).QueryRow(ctx, `
		SELECT user_id, secret, backup_code_hashes, issuer_name, is_active, last_used_at, created_at
		FROM totp_secrets WHERE user_id = $1 AND is_active`, userID).
		Scan(&s.UserID, &s.Secret, &s.BackupCodeHashes, &s.IssuerName, &s.IsActive, &lastUsedAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoTOTPConfigured
		}
		return nil, err
	}

	s.LastUsedAt = timePtr(lastUsedAt)
	s.CreatedAt = createdAt.Time

	return &s, nil
}

// SaveSecret stores a secret, replacing any previous enrolment for the user.
func (r *TOTPRepository) SaveSecret(ctx context.Context, tx usecase.Transaction, s *domain.TOTPSecret) error {
	hashes := s.BackupCodeHashes
	if hashes == nil {
		hashes = []string{}
	}

	_, err := conn(r.db, tx).Exec(ctx, `
		INSERT INTO totp_secrets (user_id, secret, backup_code_hashes, issuer_name, is_active, last_used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			secret = EXCLUDED.secret,
			backup_code_hashes = EXCLUDED.backup_code_hashes,
			issuer_name = EXCLUDED.issuer_name,
			is_active = EXCLUDED.is_active,
			last_used_at = EXCLUDED.last_used_at,
			created_at = EXCLUDED.created_at`,
		s.UserID,
		s.Secret,
		hashes,
		s.IssuerName,
		s.IsActive,
		nullableTime(s.LastUsedAt),
		timeToPgTimestamptz(s.CreatedAt),
	)

	return err
}

// ConsumeBackupCode removes codeHash from the user's set. Two concurrent
// callers presenting the same code cannot both see a removed row.
func (r *TOTPRepository) ConsumeBackupCode(ctx context.Context, tx usecase.Transaction, userID, codeHash string) (bool, error) {
	tag, err := conn(r.db, tx).Exec(ctx, `
		UPDATE totp_secrets SET backup_code_hashes = array_remove(backup_code_hashes, $2)
		WHERE user_id = $1 AND is_active AND $2 = ANY(backup_code_hashes)`,
		userID, codeHash)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() == 1, nil
}

// ReplaceBackupCodes swaps the user's whole backup code set.
func (r *TOTPRepository) ReplaceBackupCodes(ctx context.Context, tx usecase.Transaction, userID string, hashes []string) error {
	tag, err := conn(r.db, tx).Exec(ctx,
		`UPDATE totp_secrets SET backup_code_hashes = $2 WHERE user_id = $1 AND is_active`, userID, hashes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoTOTPConfigured
	}

	return nil
}

// TouchLastUsed records a successful verification time.
func (r *TOTPRepository) TouchLastUsed(ctx context.Context, tx usecase.Transaction, userID string, at time.Time) error {
	_, err := conn(r.db, tx).Exec(ctx,
		`UPDATE totp_secrets SET last_used_at = $2 WHERE user_id = $1`, userID, timeToPgTimestamptz(at))
	return err
}

// GetRateLimitForUpdate creates the user's rate-limit row if needed and
// locks it until tx ends.
func (r *TOTPRepository) GetRateLimitForUpdate(ctx context.Context, tx usecase.Transaction, userID string) (*domain.RateLimitState, error) {
	q := conn(r.db, tx)

	if _, err := q.Exec(ctx,
		`INSERT INTO totp_rate_limits (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return nil, err
	}

	var (
		s           domain.RateLimitState
		attempts    int32
		failures    int32
		windowStart pgtype.Timestamptz
		lockedUntil pgtype.Timestamptz
	)

	err := q.QueryRow(ctx, `
		SELECT user_id, attempts, window_start, total_failures, locked_until
		FROM totp_rate_limits WHERE user_id = $1 FOR UPDATE`, userID).
		Scan(&s.UserID, &attempts, &windowStart, &failures, &lockedUntil)
	if err != nil {
		return nil, err
	}

	s.Attempts = int(attempts)
	s.TotalFailures = int(failures)
	s.WindowStart = windowStart.Time
	s.LockedUntil = timePtr(lockedUntil)

	return &s, nil
}

// SaveRateLimit writes back the counters read by GetRateLimitForUpdate.
func (r *TOTPRepository) SaveRateLimit(ctx context.Context, tx usecase.Transaction, s *domain.RateLimitState) error {
	_, err := conn(r.db, tx).Exec(ctx, `
		UPDATE totp_rate_limits
		SET attempts = $2, window_start = $3, total_failures = $4, locked_until = $5
		WHERE user_id = $1`,
		s.UserID,
		int32(s.Attempts),
		timeToPgTimestamptz(s.WindowStart),
		int32(s.TotalFailures),
		nullableTime(s.LockedUntil),
	)

	return err
}

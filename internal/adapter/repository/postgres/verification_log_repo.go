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

const verificationColumns = `id, user_id, code_hash, success, failure_reason, operation_type, voucher_id,
	ip_address, user_agent, backup_code_used, consumed_at, created_at`

// VerificationLogRepository implements usecase.VerificationLogRepository.
type VerificationLogRepository struct {
	db querier
}

// NewVerificationLogRepository creates a new VerificationLogRepository.
func NewVerificationLogRepository(pool *pgxpool.Pool) *VerificationLogRepository {
	return newVerificationLogRepository(pool)
}

func newVerificationLogRepository(db querier) *VerificationLogRepository {
	return &VerificationLogRepository{db: db}
}

// Create records a verification attempt.
func (r *VerificationLogRepository) Create(ctx context.Context, tx usecase.Transaction, l *domain.VerificationLog) error {
	_, err := conn(r.db, tx).Exec(ctx, `
		INSERT INTO totp_verification_log (`+verificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		l.ID,
		l.UserID,
		l.CodeHash,
		l.Success,
		l.FailureReason,
		string(l.OperationType),
		l.VoucherID,
		l.IPAddress,
		l.UserAgent,
		l.BackupCodeUsed,
		nullableTime(l.ConsumedAt),
		timeToPgTimestamptz(l.CreatedAt),
	)

	return err
}

// GetByIDForUpdate locks a verification row for redemption.
func (r *VerificationLogRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.VerificationLog, error) {
	l, err := scanVerification(conn(r.db, tx).QueryRow(ctx,
		`SELECT `+verificationColumns+` FROM totp_verification_log WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrVerificationRequired
	}

	return l, err
}

// MarkConsumed redeems a verification. A second redemption affects no rows.
func (r *VerificationLogRepository) MarkConsumed(ctx context.Context, tx usecase.Transaction, id string, at time.Time) error {
	tag, err := conn(r.db, tx).Exec(ctx,
		`UPDATE totp_verification_log SET consumed_at = $2 WHERE id = $1 AND consumed_at IS NULL`,
		id, timeToPgTimestamptz(at))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVerificationUsed
	}

	return nil
}

// ListByUser returns the user's attempts since the given time, newest first.
func (r *VerificationLogRepository) ListByUser(ctx context.Context, userID string, since time.Time) ([]*domain.VerificationLog, error) {
	return r.list(ctx, `SELECT `+verificationColumns+` FROM totp_verification_log
		WHERE user_id = $1 AND created_at >= $2 ORDER BY created_at DESC, id DESC`,
		userID, timeToPgTimestamptz(since))
}

// ListByIDs returns the verifications with the given ids.
func (r *VerificationLogRepository) ListByIDs(ctx context.Context, ids []string) ([]*domain.VerificationLog, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	return r.list(ctx, `SELECT `+verificationColumns+` FROM totp_verification_log
		WHERE id = ANY($1) ORDER BY created_at, id`, ids)
}

// ListByVoucher returns the verifications issued for a voucher.
func (r *VerificationLogRepository) ListByVoucher(ctx context.Context, voucherID string) ([]*domain.VerificationLog, error) {
	return r.list(ctx, `SELECT `+verificationColumns+` FROM totp_verification_log
		WHERE voucher_id = $1 ORDER BY created_at, id`, voucherID)
}

// CountConsumed counts verifications that authorised an operation.
func (r *VerificationLogRepository) CountConsumed(ctx context.Context) (int, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM totp_verification_log WHERE success AND consumed_at IS NOT NULL`).Scan(&n)

	return int(n), err
}

func (r *VerificationLogRepository) list(ctx context.Context, sql string, args ...any) ([]*domain.VerificationLog, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*domain.VerificationLog
	for rows.Next() {
		l, err := scanVerification(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}

	return logs, rows.Err()
}

func scanVerification(row pgx.Row) (*domain.VerificationLog, error) {
	var (
		l          domain.VerificationLog
		op         string
		consumedAt pgtype.Timestamptz
		createdAt  pgtype.Timestamptz
	)

	if err := row.Scan(&l.ID, &l.UserID, &l.CodeHash, &l.Success, &l.FailureReason, &op, &l.VoucherID,
		&l.IPAddress, &l.UserAgent, &l.BackupCodeUsed, &consumedAt, &createdAt); err != nil {
		return nil, err
	}

	l.OperationType = domain.OperationType(op)
	l.ConsumedAt = timePtr(consumedAt)
	l.CreatedAt = createdAt.Time

	return &l, nil
}

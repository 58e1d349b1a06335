package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/verifikat/internal/domain"
	"github.com/iho/verifikat/internal/usecase"
)

const annotationColumns = `id, voucher_id, annotation_type, message, COALESCE(related_voucher_id, ''), author,
	security_verified, COALESCE(totp_verification_id, ''), created_at`

// AnnotationRepository implements usecase.AnnotationRepository. Rows are
// never updated or deleted.
type AnnotationRepository struct {
	db querier
}

// NewAnnotationRepository creates a new AnnotationRepository.
func NewAnnotationRepository(pool *pgxpool.Pool) *AnnotationRepository {
	return newAnnotationRepository(pool)
}

func newAnnotationRepository(db querier) *AnnotationRepository {
	return &AnnotationRepository{db: db}
}

// Create appends an annotation built by one of the domain constructors.
func (r *AnnotationRepository) Create(ctx context.Context, tx usecase.Transaction, a *domain.Annotation) error {
	if err := a.Validate(); err != nil {
		return err
	}
	_, err := conn(r.db, tx).Exec(ctx, `
		INSERT INTO voucher_annotations (id, voucher_id, annotation_type, message, related_voucher_id, author,
			security_verified, totp_verification_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID,
		a.VoucherID,
		string(a.Type),
		a.Message,
		nullableText(a.RelatedVoucherID),
		a.Author,
		a.SecurityVerified,
		nullableText(a.TOTPVerificationID),
		timeToPgTimestamptz(a.CreatedAt),
	)

	return err
}

// ListByVoucher returns the voucher's annotations newest first.
func (r *AnnotationRepository) ListByVoucher(ctx context.Context, voucherID string) ([]*domain.Annotation, error) {
	return r.list(ctx,
		`SELECT `+annotationColumns+` FROM voucher_annotations WHERE voucher_id = $1 ORDER BY created_at DESC, id DESC`,
		voucherID)
}

// ListReferencing returns annotations on other vouchers that point at voucherID.
func (r *AnnotationRepository) ListReferencing(ctx context.Context, voucherID string) ([]*domain.Annotation, error) {
	return r.list(ctx,
		`SELECT `+annotationColumns+` FROM voucher_annotations
		WHERE related_voucher_id = $1 AND voucher_id <> $1 ORDER BY created_at DESC, id DESC`,
		voucherID)
}

func (r *AnnotationRepository) list(ctx context.Context, sql string, args ...any) ([]*domain.Annotation, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var annotations []*domain.Annotation
	for rows.Next() {
		var (
			a         domain.Annotation
			typ       string
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&a.ID, &a.VoucherID, &typ, &a.Message, &a.RelatedVoucherID, &a.Author,
			&a.SecurityVerified, &a.TOTPVerificationID, &createdAt); err != nil {
			return nil, err
		}
		a.Type = domain.AnnotationType(typ)
		a.CreatedAt = createdAt.Time
		annotations = append(annotations, &a)
	}

	return annotations, rows.Err()
}

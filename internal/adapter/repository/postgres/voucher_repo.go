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

const voucherColumns = `v.id, v.number, v.date, v.description, v.type, v.total_amount, v.source_type, v.source_id,
	v.reference, v.is_posted, v.posted_at, COALESCE(v.status, ''), COALESCE(v.superseded_by, ''), v.created_at, v.updated_at`

// VoucherRepository implements usecase.VoucherRepository.
type VoucherRepository struct {
	db querier
}

// NewVoucherRepository creates a new VoucherRepository.
func NewVoucherRepository(pool *pgxpool.Pool) *VoucherRepository {
	return newVoucherRepository(pool)
}

func newVoucherRepository(db querier) *VoucherRepository {
	return &VoucherRepository{db: db}
}

// NextNumber draws the next voucher sequence value. Numbers consumed by a
// rolled back transaction leave a gap.
func (r *VoucherRepository) NextNumber(ctx context.Context, tx usecase.Transaction) (int64, error) {
	var seq int64
	err := conn(r.db, tx).QueryRow(ctx, `SELECT nextval('voucher_number_seq')`).Scan(&seq)
	return seq, err
}

// Create inserts a voucher.
func (r *VoucherRepository) Create(ctx context.Context, tx usecase.Transaction, v *domain.Voucher) error {
	_, err := conn(r.db, tx).Exec(ctx, `
		INSERT INTO vouchers (id, number, date, description, type, total_amount, source_type, source_id,
			reference, is_posted, posted_at, status, superseded_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		v.ID,
		v.Number,
		pgtype.Date{Time: v.Date, Valid: true},
		v.Description,
		string(v.Type),
		decimalToNumeric(v.TotalAmount),
		v.SourceType,
		v.SourceID,
		v.Reference,
		v.IsPosted,
		nullableTime(v.PostedAt),
		nullableText(string(v.Status)),
		nullableText(v.SupersededBy),
		timeToPgTimestamptz(v.CreatedAt),
		timeToPgTimestamptz(v.UpdatedAt),
	)

	return err
}

// GetByID retrieves a voucher by ID.
func (r *VoucherRepository) GetByID(ctx context.Context, id string) (*domain.Voucher, error) {
	return scanVoucher(r.db.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers v WHERE v.id = $1`, id))
}

// GetByNumber retrieves a voucher by its display number.
func (r *VoucherRepository) GetByNumber(ctx context.Context, number string) (*domain.Voucher, error) {
	return scanVoucher(r.db.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers v WHERE v.number = $1`, number))
}

// GetByIDForUpdate locks the voucher row for the rest of tx.
func (r *VoucherRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Voucher, error) {
	return scanVoucher(conn(r.db, tx).QueryRow(ctx,
		`SELECT `+voucherColumns+` FROM vouchers v WHERE v.id = $1 FOR UPDATE`, id))
}

// MarkPosted flags the voucher as posted.
func (r *VoucherRepository) MarkPosted(ctx context.Context, tx usecase.Transaction, id string, postedAt time.Time) error {
	tag, err := conn(r.db, tx).Exec(ctx,
		`UPDATE vouchers SET is_posted = TRUE, posted_at = $2, updated_at = $2 WHERE id = $1 AND NOT is_posted`,
		id, timeToPgTimestamptz(postedAt))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVoucherAlreadyPosted
	}

	return nil
}

// UpdateStatus moves an active voucher to status.
func (r *VoucherRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.VoucherStatus, supersededBy string, updatedAt time.Time) error {
	tag, err := conn(r.db, tx).Exec(ctx,
		`UPDATE vouchers SET status = $2, superseded_by = $3, updated_at = $4 WHERE id = $1 AND status IS NULL`,
		id, nullableText(string(status)), nullableText(supersededBy), timeToPgTimestamptz(updatedAt))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVoucherNotActive
	}

	return nil
}

// ListSupersededBy returns the vouchers replaced by replacementID.
func (r *VoucherRepository) ListSupersededBy(ctx context.Context, replacementID string) ([]*domain.Voucher, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+voucherColumns+` FROM vouchers v WHERE v.superseded_by = $1 ORDER BY v.created_at`, replacementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vouchers []*domain.Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}

	return vouchers, rows.Err()
}

// ListByPeriod returns vouchers dated within the filter with entry totals.
func (r *VoucherRepository) ListByPeriod(ctx context.Context, filter usecase.VoucherFilter) ([]*usecase.VoucherListItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+voucherColumns+`,
			COALESCE(SUM(je.debit), 0), COALESCE(SUM(je.credit), 0), COUNT(je.id)
		FROM vouchers v
		LEFT JOIN journal_entries je ON je.voucher_id = v.id
		WHERE ($1::date IS NULL OR v.date >= $1)
		  AND ($2::date IS NULL OR v.date <= $2)
		  AND ($3 OR v.status IS DISTINCT FROM 'SUPERSEDED')
		  AND ($4 = '' OR v.type = $4)
		GROUP BY v.id
		ORDER BY v.date, v.created_at`,
		optionalDate(filter.From),
		optionalDate(filter.To),
		filter.IncludeSuperseded,
		string(filter.Type),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*usecase.VoucherListItem
	for rows.Next() {
		var (
			debit  pgtype.Numeric
			credit pgtype.Numeric
			count  int64
		)
		s := newVoucherScan(&domain.Voucher{})
		if err := rows.Scan(append(s.dest(), &debit, &credit, &count)...); err != nil {
			return nil, err
		}

		items = append(items, &usecase.VoucherListItem{
			Voucher:     s.finish(),
			TotalDebit:  numericToDecimal(debit),
			TotalCredit: numericToDecimal(credit),
			EntryCount:  int(count),
		})
	}

	return items, rows.Err()
}

// voucherScan holds the column values that need conversion after Scan.
type voucherScan struct {
	v         *domain.Voucher
	date      pgtype.Date
	typ       string
	total     pgtype.Numeric
	postedAt  pgtype.Timestamptz
	status    string
	createdAt pgtype.Timestamptz
	updatedAt pgtype.Timestamptz
}

func newVoucherScan(v *domain.Voucher) *voucherScan {
	return &voucherScan{v: v}
}

func (s *voucherScan) dest() []any {
	v := s.v
	return []any{&v.ID, &v.Number, &s.date, &v.Description, &s.typ, &s.total, &v.SourceType, &v.SourceID,
		&v.Reference, &v.IsPosted, &s.postedAt, &s.status, &v.SupersededBy, &s.createdAt, &s.updatedAt}
}

func (s *voucherScan) finish() *domain.Voucher {
	v := s.v
	v.Date = s.date.Time
	v.Type = domain.VoucherType(s.typ)
	v.TotalAmount = numericToDecimal(s.total)
	v.PostedAt = timePtr(s.postedAt)
	v.Status = domain.VoucherStatus(s.status)
	v.CreatedAt = s.createdAt.Time
	v.UpdatedAt = s.updatedAt.Time
	return v
}

func scanVoucher(row pgx.Row) (*domain.Voucher, error) {
	s := newVoucherScan(&domain.Voucher{})
	if err := row.Scan(s.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrVoucherNotFound
		}
		return nil, err
	}

	return s.finish(), nil
}

func optionalDate(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: t, Valid: true}
}

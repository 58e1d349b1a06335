package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/verifikat/internal/domain"
)

// validVouchers restricts a join to posted vouchers that are neither
// superseded nor void.
const validVouchers = `v.is_posted AND v.status IS NULL`

// ReportRepository implements usecase.ReportRepository.
type ReportRepository struct {
	db querier
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return newReportRepository(pool)
}

func newReportRepository(db querier) *ReportRepository {
	return &ReportRepository{db: db}
}

// AccountActivity returns one row per account with opening and period sums.
// Accounts without valid postings are included with zero figures.
func (r *ReportRepository) AccountActivity(ctx context.Context, from, to time.Time) ([]domain.AccountActivity, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.number, a.name, a.type,
			COALESCE(SUM(CASE WHEN v.date < $1 THEN je.debit END), 0),
			COALESCE(SUM(CASE WHEN v.date < $1 THEN je.credit END), 0),
			COALESCE(SUM(CASE WHEN v.date >= $1 THEN je.debit END), 0),
			COALESCE(SUM(CASE WHEN v.date >= $1 THEN je.credit END), 0)
		FROM accounts a
		LEFT JOIN (journal_entries je
			JOIN vouchers v ON v.id = je.voucher_id AND `+validVouchers+` AND v.date <= $2)
			ON je.account_id = a.id
		GROUP BY a.number, a.name, a.type
		ORDER BY a.number`,
		pgtype.Date{Time: from, Valid: true},
		pgtype.Date{Time: to, Valid: true},
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activity []domain.AccountActivity
	for rows.Next() {
		var (
			a                                              domain.AccountActivity
			typ                                            string
			openDebit, openCredit, periodDebit, periodCred pgtype.Numeric
		)
		if err := rows.Scan(&a.AccountNumber, &a.AccountName, &typ,
			&openDebit, &openCredit, &periodDebit, &periodCred); err != nil {
			return nil, err
		}
		a.AccountType = domain.AccountType(typ)
		a.OpeningDebits = numericToDecimal(openDebit)
		a.OpeningCredits = numericToDecimal(openCredit)
		a.PeriodDebits = numericToDecimal(periodDebit)
		a.PeriodCredits = numericToDecimal(periodCred)
		activity = append(activity, a)
	}

	return activity, rows.Err()
}

// AccountPostings lists valid postings on one account within the period.
func (r *ReportRepository) AccountPostings(ctx context.Context, accountNumber string, from, to time.Time) ([]domain.LedgerPosting, error) {
	rows, err := r.db.Query(ctx, `
		SELECT v.id, v.number, v.date, je.id, je.description, je.debit, je.credit
		FROM journal_entries je
		JOIN vouchers v ON v.id = je.voucher_id
		WHERE je.account_number = $1 AND `+validVouchers+`
		  AND v.date >= $2 AND v.date <= $3
		ORDER BY v.date, v.number, je.created_at`,
		accountNumber,
		pgtype.Date{Time: from, Valid: true},
		pgtype.Date{Time: to, Valid: true},
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var postings []domain.LedgerPosting
	for rows.Next() {
		var (
			p             domain.LedgerPosting
			date          pgtype.Date
			debit, credit pgtype.Numeric
		)
		if err := rows.Scan(&p.VoucherID, &p.VoucherNumber, &date, &p.EntryID, &p.Description, &debit, &credit); err != nil {
			return nil, err
		}
		p.VoucherDate = date.Time
		p.Debit = numericToDecimal(debit)
		p.Credit = numericToDecimal(credit)
		postings = append(postings, p)
	}

	return postings, rows.Err()
}

// VoucherCounts returns the number of vouchers and how many are superseded
// or void.
func (r *ReportRepository) VoucherCounts(ctx context.Context) (total, inactive int, err error) {
	var t, i int64
	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE status IS NOT NULL) FROM vouchers`).Scan(&t, &i)

	return int(t), int(i), err
}

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/verifikat/internal/domain"
	"github.com/iho/verifikat/internal/usecase"
)

const entryColumns = `id, voucher_id, account_id, account_number, description, debit, credit, reference, created_at`

// JournalEntryRepository implements usecase.JournalEntryRepository.
type JournalEntryRepository struct {
	db querier
}

// NewJournalEntryRepository creates a new JournalEntryRepository.
func NewJournalEntryRepository(pool *pgxpool.Pool) *JournalEntryRepository {
	return newJournalEntryRepository(pool)
}

func newJournalEntryRepository(db querier) *JournalEntryRepository {
	return &JournalEntryRepository{db: db}
}

// Create inserts a journal entry.
func (r *JournalEntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error {
	_, err := conn(r.db, tx).Exec(ctx, `
		INSERT INTO journal_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID,
		entry.VoucherID,
		entry.AccountID,
		entry.AccountNumber,
		entry.Description,
		decimalToNumeric(entry.Debit),
		decimalToNumeric(entry.Credit),
		entry.Reference,
		timeToPgTimestamptz(entry.CreatedAt),
	)

	return err
}

// ListByVoucher returns a voucher's entries in insertion order.
func (r *JournalEntryRepository) ListByVoucher(ctx context.Context, voucherID string) ([]*domain.JournalEntry, error) {
	return r.ListByVoucherTx(ctx, nil, voucherID)
}

// ListByVoucherTx is ListByVoucher inside tx.
func (r *JournalEntryRepository) ListByVoucherTx(ctx context.Context, tx usecase.Transaction, voucherID string) ([]*domain.JournalEntry, error) {
	rows, err := conn(r.db, tx).Query(ctx,
		`SELECT `+entryColumns+` FROM journal_entries WHERE voucher_id = $1 ORDER BY created_at, id`, voucherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (*domain.JournalEntry, error) {
	var (
		e         domain.JournalEntry
		debit     pgtype.Numeric
		credit    pgtype.Numeric
		createdAt pgtype.Timestamptz
	)

	err := row.Scan(&e.ID, &e.VoucherID, &e.AccountID, &e.AccountNumber, &e.Description,
		&debit, &credit, &e.Reference, &createdAt)
	if err != nil {
		return nil, err
	}

	e.Debit = numericToDecimal(debit)
	e.Credit = numericToDecimal(credit)
	e.CreatedAt = createdAt.Time

	return &e, nil
}

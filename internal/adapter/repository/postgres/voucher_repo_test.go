package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/verifikat/internal/domain"
	"github.com/iho/verifikat/internal/usecase"
)

var voucherDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func voucherRowColumns(extra ...string) []string {
	return append([]string{"id", "number", "date", "description", "type", "total_amount", "source_type",
		"source_id", "reference", "is_posted", "posted_at", "status", "superseded_by", "created_at", "updated_at"},
		extra...)
}

func TestVoucherRepositoryNextNumberAndCreate(t *testing.T) {
	pool := newMockPool(t)
	repo := newVoucherRepository(pool)
	tx := beginTx(t, pool)

	pool.ExpectQuery("SELECT nextval\\('voucher_number_seq'\\)").
		WillReturnRows(pgxmock.NewRows([]string{"nextval"}).AddRow(int64(7)))

	v := &domain.Voucher{
		ID: "v-7", Number: "V007", Date: voucherDate, Description: "Kontorsmaterial",
		Type: domain.VoucherTypePurchase, TotalAmount: decimal.RequireFromString("1006.53"),
		CreatedAt: repoNow, UpdatedAt: repoNow,
	}
	pool.ExpectExec("INSERT INTO vouchers").
		WithArgs("v-7", "V007", pgtype.Date{Time: voucherDate, Valid: true}, "Kontorsmaterial", "purchase",
			decimalToNumeric(v.TotalAmount), "", "", "", false, pgtype.Timestamptz{},
			pgtype.Text{}, pgtype.Text{}, timeToPgTimestamptz(repoNow), timeToPgTimestamptz(repoNow)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectCommit()

	seq, err := repo.NextNumber(context.Background(), tx)
	require.NoError(t, err)
	require.Equal(t, int64(7), seq)
	require.NoError(t, repo.Create(context.Background(), tx, v))
	require.NoError(t, tx.Commit(context.Background()))
	assertExpectations(t, pool)
}

func TestVoucherRepositoryGetByNumber(t *testing.T) {
	pool := newMockPool(t)
	repo := newVoucherRepository(pool)

	posted := repoNow.Add(time.Minute)
	pool.ExpectQuery("FROM vouchers v WHERE v.number = \\$1").
		WithArgs("V001").
		WillReturnRows(pgxmock.NewRows(voucherRowColumns()).AddRow(
			"v-1", "V001", voucherDate, "Försäljning", "sales_invoice", "1250.00", "invoice", "F-1001", "",
			true, posted, "SUPERSEDED", "v-2", repoNow, posted))

	v, err := repo.GetByNumber(context.Background(), "V001")
	require.NoError(t, err)
	require.Equal(t, domain.VoucherTypeSalesInvoice, v.Type)
	require.Equal(t, domain.VoucherStatusSuperseded, v.Status)
	require.Equal(t, "v-2", v.SupersededBy)
	require.NotNil(t, v.PostedAt)
	require.Equal(t, posted, *v.PostedAt)
	require.Equal(t, voucherDate, v.Date)
	require.True(t, decimal.RequireFromString("1250").Equal(v.TotalAmount))

	pool.ExpectQuery("FROM vouchers v WHERE v.number = \\$1").
		WithArgs("V404").
		WillReturnRows(pgxmock.NewRows(voucherRowColumns()))
	_, err = repo.GetByNumber(context.Background(), "V404")
	require.ErrorIs(t, err, domain.ErrVoucherNotFound)
	assertExpectations(t, pool)
}

func TestVoucherRepositoryStateTransitionsAreConditional(t *testing.T) {
	pool := newMockPool(t)
	repo := newVoucherRepository(pool)
	tx := beginTx(t, pool)
	ctx := context.Background()

	pool.ExpectExec("UPDATE vouchers SET is_posted = TRUE .* AND NOT is_posted").
		WithArgs("v-1", timeToPgTimestamptz(repoNow)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	pool.ExpectExec("UPDATE vouchers SET status = \\$2 .* AND status IS NULL").
		WithArgs("v-1", pgtype.Text{String: "SUPERSEDED", Valid: true}, pgtype.Text{String: "v-2", Valid: true},
			timeToPgTimestamptz(repoNow)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec("UPDATE vouchers SET status = \\$2 .* AND status IS NULL").
		WithArgs("v-1", pgtype.Text{String: "VOID", Valid: true}, pgtype.Text{}, timeToPgTimestamptz(repoNow)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	pool.ExpectRollback()

	require.ErrorIs(t, repo.MarkPosted(ctx, tx, "v-1", repoNow), domain.ErrVoucherAlreadyPosted)
	require.NoError(t, repo.UpdateStatus(ctx, tx, "v-1", domain.VoucherStatusSuperseded, "v-2", repoNow))
	require.ErrorIs(t, repo.UpdateStatus(ctx, tx, "v-1", domain.VoucherStatusVoid, "", repoNow), domain.ErrVoucherNotActive)
	require.NoError(t, tx.Rollback(ctx))
	assertExpectations(t, pool)
}

func TestVoucherRepositoryListByPeriod(t *testing.T) {
	pool := newMockPool(t)
	repo := newVoucherRepository(pool)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pool.ExpectQuery("LEFT JOIN journal_entries je").
		WithArgs(pgtype.Date{Time: from, Valid: true}, pgtype.Date{}, false, "").
		WillReturnRows(pgxmock.NewRows(voucherRowColumns("debit", "credit", "count")).
			AddRow("v-1", "V001", voucherDate, "Försäljning", "sales_invoice", "1250.00", "", "", "",
				true, repoNow, "", "", repoNow, repoNow, "1250.00", "1250.00", int64(3)).
			AddRow("v-3", "V003", voucherDate, "Utkast", "adjustment", "0", "", "", "",
				false, nil, "", "", repoNow, repoNow, "100.00", "0", int64(1)))

	items, err := repo.ListByPeriod(context.Background(), usecase.VoucherFilter{From: from})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, 3, items[0].EntryCount)
	require.True(t, items[0].TotalDebit.Equal(items[0].TotalCredit))
	require.Nil(t, items[1].Voucher.PostedAt)
	require.Equal(t, domain.VoucherStatusActive, items[1].Voucher.Status)
	require.True(t, decimal.NewFromInt(100).Equal(items[1].TotalDebit))
	assertExpectations(t, pool)
}

func TestVoucherRepositoryListByPeriodKeepsVoided(t *testing.T) {
	pool := newMockPool(t)
	repo := newVoucherRepository(pool)

	pool.ExpectQuery(`\$3 OR v.status IS DISTINCT FROM 'SUPERSEDED'`).
		WithArgs(pgtype.Date{}, pgtype.Date{}, false, "").
		WillReturnRows(pgxmock.NewRows(voucherRowColumns("debit", "credit", "count")).
			AddRow("v-4", "V004", voucherDate, "Felbokning", "adjustment", "0", "", "", "",
				false, nil, "VOID", "", repoNow, repoNow, "0", "0", int64(0)))

	items, err := repo.ListByPeriod(context.Background(), usecase.VoucherFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, domain.VoucherStatusVoid, items[0].Voucher.Status)
	assertExpectations(t, pool)
}

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/verifikat/internal/adapter/service"
	"github.com/iho/verifikat/internal/app"
	"github.com/iho/verifikat/internal/domain"
	"github.com/iho/verifikat/internal/infrastructure/config"
	"github.com/iho/verifikat/tests/testutil"
)

func setup(t *testing.T) (*service.Service, context.Context) {
	t.Helper()

	db := testutil.NewTestDB(t)
	ctx := context.Background()
	db.TruncateAll(ctx)

	t.Setenv("IDEMPOTENCY_CACHE", "false")
	cfg, err := config.Load()
	require.NoError(t, err)

	a, err := app.New(ctx, cfg, zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	return a.Service, ctx
}

func data[T any](t *testing.T, res service.Result) T {
	t.Helper()
	require.True(t, res.Success, "%s: %s", res.ErrorCode, res.ErrorMessage)
	v, ok := res.Data.(T)
	require.True(t, ok, "unexpected result type %T", res.Data)
	return v
}

func purchase(t *testing.T, ctx context.Context, svc *service.Service, today string) *service.VoucherView {
	t.Helper()

	v := data[*service.VoucherView](t, svc.CreateVoucher(ctx, service.CreateVoucherRequest{
		Date:        today,
		Description: "Kontorsmaterial",
		Type:        "purchase",
		TotalAmount: "1250",
	}))

	vat := data[*service.VATResultView](t, svc.AddVATEntries(ctx, service.VATEntriesRequest{
		Voucher:         v.Number,
		GrossAmount:     "1250,00",
		VATRate:         "0.25",
		NetAccount:      "6110",
		VATAccount:      "2640",
		TransactionType: "expense",
	}))
	assert.Equal(t, "1000.00", vat.NetAmount)
	assert.Equal(t, "250.00", vat.VATAmount)
	assert.False(t, vat.HasRounding)

	data[service.EntryResultView](t, svc.AddJournalEntry(ctx, service.JournalEntryRequest{
		Voucher:     v.Number,
		Account:     "2440",
		Description: "Leverantörsskuld",
		Credit:      "1250",
	}))
	return v
}

func TestLedgerFlow(t *testing.T) {
	svc, ctx := setup(t)
	today := time.Now().Format(service.DateLayout)

	v1 := purchase(t, ctx, svc, today)

	t.Run("repeated entry is detected", func(t *testing.T) {
		res := svc.AddJournalEntry(ctx, service.JournalEntryRequest{
			Voucher:     v1.Number,
			Account:     "2440",
			Description: "Leverantörsskuld",
			Credit:      "1250",
		})
		entry := data[service.EntryResultView](t, res)
		assert.True(t, entry.Duplicate)

		balance := data[service.BalanceView](t, svc.ValidateVoucherBalance(ctx, v1.Number))
		assert.True(t, balance.IsBalanced)
		assert.Equal(t, 3, balance.EntryCount)
	})

	posted := data[*service.VoucherView](t, svc.PostVoucher(ctx, v1.Number))
	require.True(t, posted.IsPosted)
	assert.Equal(t, domain.PostingStatusPosted, posted.PostingStatus)

	t.Run("posting moves balances", func(t *testing.T) {
		expense := data[*service.AccountView](t, svc.GetAccount(ctx, "6110"))
		payable := data[*service.AccountView](t, svc.GetAccount(ctx, "2440"))
		assert.Equal(t, "1000.00", expense.Balance)
		assert.Equal(t, "1250.00", payable.Balance)

		res := svc.AddJournalEntry(ctx, service.JournalEntryRequest{
			Voucher: v1.Number, Account: "1930", Description: "late", Debit: "1",
		})
		assert.False(t, res.Success)
		assert.Equal(t, domain.ErrorCode(domain.ErrVoucherAlreadyPosted), res.ErrorCode)
	})

	t.Run("trial balance", func(t *testing.T) {
		tb := data[*service.TrialBalanceView](t, svc.TrialBalance(ctx, service.PeriodRequest{From: today, To: today}))
		assert.True(t, tb.IsBalanced)
		assert.Equal(t, "1250.00", tb.TotalPeriodDebit)
		assert.Equal(t, "1250.00", tb.TotalPeriodCredit)
	})

	enrollment := data[service.EnrollmentView](t, svc.SetupTOTP(ctx, "anna"))
	require.NotEmpty(t, enrollment.Secret)
	require.NotEmpty(t, enrollment.BackupCodes)

	t.Run("supersede requires verification", func(t *testing.T) {
		v2 := purchase(t, ctx, svc, today)

		res := svc.Supersede(ctx, service.SupersedeRequest{
			Original: v1.Number, Replacement: v2.Number, Reason: "fel leverantör",
		})
		require.False(t, res.Success)
		assert.Equal(t, domain.ErrorCode(domain.ErrVerificationRequired), res.ErrorCode)

		code, err := totp.GenerateCode(enrollment.Secret, time.Now())
		require.NoError(t, err)

		superseded := data[*service.VoucherView](t, svc.Supersede(ctx, service.SupersedeRequest{
			Original:    v1.Number,
			Replacement: v2.Number,
			Reason:      "fel leverantör",
			Author:      "anna",
			Credentials: &service.Credentials{UserID: "anna", Code: code, ClientIP: "127.0.0.1"},
		}))
		assert.Equal(t, domain.PostingStatusSuperseded, superseded.PostingStatus)
		assert.Equal(t, v2.ID, superseded.SupersededBy)

		expense := data[*service.AccountView](t, svc.GetAccount(ctx, "6110"))
		assert.Equal(t, "0.00", expense.Balance, "superseded posting is reversed")

		history := data[*service.HistoryView](t, svc.VoucherHistory(ctx, v1.Number))
		require.NotNil(t, history.SupersededBy)
		assert.Equal(t, v2.Number, history.SupersededBy.Number)
		require.NotEmpty(t, history.Annotations)
		assert.True(t, history.Annotations[0].SecurityVerified)
		require.NotEmpty(t, history.SecurityAudit)

		// v2 is unposted and can still be voided.
		voided := data[*service.VoucherView](t, svc.Void(ctx, service.VoidRequest{
			Voucher:     v2.Number,
			Reason:      "dubblett",
			Credentials: &service.Credentials{UserID: "anna", Code: enrollment.BackupCodes[0]},
		}))
		assert.Equal(t, domain.PostingStatusVoided, voided.PostingStatus)
	})

	t.Run("backup code is single use", func(t *testing.T) {
		res := svc.VerifyTOTP(ctx, service.VerifyRequest{
			UserID: "anna", Code: enrollment.BackupCodes[0], Operation: "ADD_ANNOTATION",
		})
		require.False(t, res.Success)
		assert.Equal(t, domain.ErrorCode(domain.ErrTOTPInvalid), res.ErrorCode)
		require.NotNil(t, res.AttemptsRemaining)
	})

	t.Run("ledger reconciles", func(t *testing.T) {
		report := data[*service.ReconciliationView](t, svc.Reconcile(ctx))
		assert.True(t, report.LedgerConsistent)
		assert.Empty(t, report.Discrepancies)
		assert.Equal(t, report.TotalAccounts, report.ReconciledAccounts)
	})
}

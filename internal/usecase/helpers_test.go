package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/verifikat/internal/domain"
	"github.com/iho/verifikat/internal/infrastructure/metrics"
	"github.com/iho/verifikat/internal/usecase"
	"github.com/iho/verifikat/internal/usecase/mocks"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	accounts    *mocks.MockAccountRepository
	vouchers    *mocks.MockVoucherRepository
	entries     *mocks.MockJournalEntryRepository
	annotations *mocks.MockAnnotationRepository
	idempotency *mocks.MockIdempotencyRepository
	totpRepo    *mocks.MockTOTPRepository
	logs        *mocks.MockVerificationLogRepository
	txManager   *mocks.MockTransactionManager
	idGen       *mocks.MockIDGenerator
	clock       *testClock
	metrics     *metrics.Metrics

	guard     *usecase.IdempotencyGuard
	ledger    *usecase.LedgerUseCase
	gate      *usecase.TOTPUseCase
	lifecycle *usecase.LifecycleUseCase
	secure    *usecase.SecureVoucherUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		accounts:    mocks.NewMockAccountRepository(),
		vouchers:    mocks.NewMockVoucherRepository(),
		entries:     mocks.NewMockJournalEntryRepository(),
		annotations: mocks.NewMockAnnotationRepository(),
		idempotency: mocks.NewMockIdempotencyRepository(),
		totpRepo:    mocks.NewMockTOTPRepository(),
		logs:        mocks.NewMockVerificationLogRepository(),
		txManager:   mocks.NewMockTransactionManager(),
		idGen:       mocks.NewMockIDGenerator(),
		clock:       newTestClock(),
		metrics:     metrics.NewWithRegisterer(prometheus.NewRegistry()),
	}

	for _, a := range []struct {
		number string
		name   string
		typ    domain.AccountType
	}{
		{"1910", "Kassa", domain.AccountTypeAsset},
		{"1930", "Företagskonto", domain.AccountTypeAsset},
		{"2081", "Aktiekapital", domain.AccountTypeEquity},
		{"2440", "Leverantörsskulder", domain.AccountTypeLiability},
		{"2610", "Utgående moms 25%", domain.AccountTypeLiability},
		{"2640", "Ingående moms", domain.AccountTypeAsset},
		{"2650", "Redovisningskonto för moms", domain.AccountTypeLiability},
		{"3001", "Försäljning 25%", domain.AccountTypeIncome},
		{"3740", "Öres- och kronutjämning", domain.AccountTypeIncome},
		{"6110", "Kontorsmateriel", domain.AccountTypeExpense},
	} {
		f.accounts.Add(a.number, a.name, a.typ)
	}

	logger := zerolog.Nop()

	f.guard = usecase.NewIdempotencyGuard(f.idempotency, nil, usecase.DefaultIdempotencyWindow, logger)
	f.guard.SetClock(f.clock.Now)

	f.ledger = usecase.NewLedgerUseCase(f.txManager, f.accounts, f.vouchers, f.entries, f.guard, nil, f.idGen,
		usecase.DefaultLedgerConfig(), logger, f.metrics)
	f.ledger.SetClock(f.clock.Now)

	f.gate = usecase.NewTOTPUseCase(f.txManager, f.totpRepo, f.logs, f.idGen, domain.DefaultTOTPPolicy(), "Verifikat", logger, f.metrics)
	f.gate.SetClock(f.clock.Now)

	f.lifecycle = usecase.NewLifecycleUseCase(f.txManager, f.accounts, f.vouchers, f.entries, f.annotations, f.logs,
		f.gate, nil, f.idGen, logger, f.metrics)
	f.lifecycle.SetClock(f.clock.Now)

	f.secure = usecase.NewSecureVoucherUseCase(f.gate, f.lifecycle)

	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) createVoucher(t *testing.T, description string) *domain.Voucher {
	t.Helper()
	v, err := f.ledger.CreateVoucher(context.Background(), usecase.CreateVoucherInput{
		Description: description,
		Type:        domain.VoucherTypePurchase,
	})
	if err != nil {
		t.Fatalf("create voucher: %v", err)
	}
	return v
}

func (f *fixture) addEntry(t *testing.T, voucherID, account, debit, credit string) string {
	t.Helper()
	res, err := f.ledger.AddJournalEntry(context.Background(), usecase.AddJournalEntryInput{
		VoucherID:     voucherID,
		AccountNumber: account,
		Description:   "line " + account,
		Debit:         dec(debit),
		Credit:        dec(credit),
	})
	if err != nil {
		t.Fatalf("add entry %s: %v", account, err)
	}
	return res.EntryID
}

// postedVoucher creates a voucher debiting 6110 and crediting 1930 by amount
// and posts it.
func (f *fixture) postedVoucher(t *testing.T, amount string) *domain.Voucher {
	t.Helper()
	v := f.createVoucher(t, "Office supplies")
	f.addEntry(t, v.ID, "6110", amount, "0")
	f.addEntry(t, v.ID, "1930", "0", amount)
	posted, err := f.ledger.PostVoucher(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("post voucher: %v", err)
	}
	return posted
}

// enrol sets up TOTP for userID and returns the secret and backup codes.
func (f *fixture) enrol(t *testing.T, userID string) *usecase.Enrollment {
	t.Helper()
	e, err := f.gate.Setup(context.Background(), userID, "")
	if err != nil {
		t.Fatalf("setup totp: %v", err)
	}
	return e
}

// verification returns a fresh successful verification for op using a
// backup code.
func (f *fixture) verification(t *testing.T, userID string, e *usecase.Enrollment, op domain.OperationType, voucherID string) string {
	t.Helper()
	if len(e.BackupCodes) == 0 {
		t.Fatal("no backup codes left")
	}
	code := e.BackupCodes[0]
	e.BackupCodes = e.BackupCodes[1:]
	v, err := f.gate.Verify(context.Background(), usecase.VerifyInput{
		UserID:    userID,
		Code:      code,
		Operation: op,
		VoucherID: voucherID,
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	return v.ID
}

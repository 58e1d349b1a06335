package service

import (
	"context"
	"errors"
	"time"

	"github.com/iho/verifikat/internal/domain"
	"github.com/iho/verifikat/internal/usecase"
)

var errUnexpectedCall = errors.New("unexpected call")

type accountStub struct {
	createFn func(ctx context.Context, input usecase.CreateAccountInput) (*domain.Account, error)
	getFn    func(ctx context.Context, number string) (*domain.Account, error)
	listFn   func(ctx context.Context, includeInactive bool) ([]*domain.Account, error)
	activeFn func(ctx context.Context, number string, active bool) (*domain.Account, error)
}

func (s *accountStub) CreateAccount(ctx context.Context, input usecase.CreateAccountInput) (*domain.Account, error) {
	if s.createFn == nil {
		return nil, errUnexpectedCall
	}
	return s.createFn(ctx, input)
}

func (s *accountStub) GetAccount(ctx context.Context, number string) (*domain.Account, error) {
	if s.getFn == nil {
		return nil, errUnexpectedCall
	}
	return s.getFn(ctx, number)
}

func (s *accountStub) ListAccounts(ctx context.Context, includeInactive bool) ([]*domain.Account, error) {
	if s.listFn == nil {
		return nil, errUnexpectedCall
	}
	return s.listFn(ctx, includeInactive)
}

func (s *accountStub) DeactivateAccount(ctx context.Context, number string) (*domain.Account, error) {
	if s.activeFn == nil {
		return nil, errUnexpectedCall
	}
	return s.activeFn(ctx, number, false)
}

func (s *accountStub) ReactivateAccount(ctx context.Context, number string) (*domain.Account, error) {
	if s.activeFn == nil {
		return nil, errUnexpectedCall
	}
	return s.activeFn(ctx, number, true)
}

type ledgerStub struct {
	vouchers  map[string]*domain.Voucher
	createFn  func(ctx context.Context, input usecase.CreateVoucherInput) (*domain.Voucher, error)
	entryFn   func(ctx context.Context, input usecase.AddJournalEntryInput) (*usecase.EntryResult, error)
	vatFn     func(ctx context.Context, input usecase.AddVATEntriesInput) (*usecase.VATResult, error)
	postFn    func(ctx context.Context, voucherID string) (*domain.Voucher, error)
	balanceFn func(ctx context.Context, voucherID string) (*domain.BalanceCheck, error)
}

func (s *ledgerStub) CreateVoucher(ctx context.Context, input usecase.CreateVoucherInput) (*domain.Voucher, error) {
	if s.createFn == nil {
		return nil, errUnexpectedCall
	}
	return s.createFn(ctx, input)
}

func (s *ledgerStub) AddJournalEntry(ctx context.Context, input usecase.AddJournalEntryInput) (*usecase.EntryResult, error) {
	if s.entryFn == nil {
		return nil, errUnexpectedCall
	}
	return s.entryFn(ctx, input)
}

func (s *ledgerStub) AddVATEntries(ctx context.Context, input usecase.AddVATEntriesInput) (*usecase.VATResult, error) {
	if s.vatFn == nil {
		return nil, errUnexpectedCall
	}
	return s.vatFn(ctx, input)
}

func (s *ledgerStub) PostVoucher(ctx context.Context, voucherID string) (*domain.Voucher, error) {
	if s.postFn == nil {
		return nil, errUnexpectedCall
	}
	return s.postFn(ctx, voucherID)
}

func (s *ledgerStub) ValidateVoucherBalance(ctx context.Context, voucherID string) (*domain.BalanceCheck, error) {
	if s.balanceFn == nil {
		return nil, errUnexpectedCall
	}
	return s.balanceFn(ctx, voucherID)
}

// GetVoucher looks vouchers up by number or ID.
func (s *ledgerStub) GetVoucher(_ context.Context, ref string) (*domain.Voucher, error) {
	for _, v := range s.vouchers {
		if v.ID == ref || v.Number == ref {
			return v, nil
		}
	}
	return nil, domain.ErrVoucherNotFound
}

type lifecycleStub struct {
	annotateFn  func(ctx context.Context, input usecase.AddAnnotationInput) (*domain.Annotation, error)
	supersedeFn func(ctx context.Context, input usecase.SupersedeInput) (*domain.Voucher, error)
	voidFn      func(ctx context.Context, input usecase.VoidInput) (*domain.Voucher, error)
	historyFn   func(ctx context.Context, ref string) (*usecase.VoucherHistory, error)
	listFn      func(ctx context.Context, filter usecase.VoucherFilter) (*usecase.PeriodListing, error)
}

func (s *lifecycleStub) AddAnnotation(ctx context.Context, input usecase.AddAnnotationInput) (*domain.Annotation, error) {
	if s.annotateFn == nil {
		return nil, errUnexpectedCall
	}
	return s.annotateFn(ctx, input)
}

func (s *lifecycleStub) Supersede(ctx context.Context, input usecase.SupersedeInput) (*domain.Voucher, error) {
	if s.supersedeFn == nil {
		return nil, errUnexpectedCall
	}
	return s.supersedeFn(ctx, input)
}

func (s *lifecycleStub) Void(ctx context.Context, input usecase.VoidInput) (*domain.Voucher, error) {
	if s.voidFn == nil {
		return nil, errUnexpectedCall
	}
	return s.voidFn(ctx, input)
}

func (s *lifecycleStub) History(ctx context.Context, ref string) (*usecase.VoucherHistory, error) {
	if s.historyFn == nil {
		return nil, errUnexpectedCall
	}
	return s.historyFn(ctx, ref)
}

func (s *lifecycleStub) ListByPeriod(ctx context.Context, filter usecase.VoucherFilter) (*usecase.PeriodListing, error) {
	if s.listFn == nil {
		return nil, errUnexpectedCall
	}
	return s.listFn(ctx, filter)
}

type secureStub struct {
	creds       usecase.Credentials
	supersedeFn func(input usecase.SupersedeInput) (*domain.Voucher, error)
	voidFn      func(input usecase.VoidInput) (*domain.Voucher, error)
	annotateFn  func(input usecase.AddAnnotationInput) (*domain.Annotation, error)
}

func (s *secureStub) SecureSupersede(_ context.Context, creds usecase.Credentials, input usecase.SupersedeInput) (*domain.Voucher, error) {
	s.creds = creds
	if s.supersedeFn == nil {
		return nil, errUnexpectedCall
	}
	return s.supersedeFn(input)
}

func (s *secureStub) SecureVoid(_ context.Context, creds usecase.Credentials, input usecase.VoidInput) (*domain.Voucher, error) {
	s.creds = creds
	if s.voidFn == nil {
		return nil, errUnexpectedCall
	}
	return s.voidFn(input)
}

func (s *secureStub) SecureAnnotate(_ context.Context, creds usecase.Credentials, input usecase.AddAnnotationInput) (*domain.Annotation, error) {
	s.creds = creds
	if s.annotateFn == nil {
		return nil, errUnexpectedCall
	}
	return s.annotateFn(input)
}

type gateStub struct {
	verifyFn     func(ctx context.Context, input usecase.VerifyInput) (*domain.Verification, error)
	setupFn      func(ctx context.Context, userID, issuer string) (*usecase.Enrollment, error)
	regenerateFn func(ctx context.Context, userID string) ([]string, error)
	auditFn      func(ctx context.Context, userID string, days int) ([]*domain.VerificationLog, error)
}

func (s *gateStub) Verify(ctx context.Context, input usecase.VerifyInput) (*domain.Verification, error) {
	if s.verifyFn == nil {
		return nil, errUnexpectedCall
	}
	return s.verifyFn(ctx, input)
}

func (s *gateStub) Setup(ctx context.Context, userID, issuer string) (*usecase.Enrollment, error) {
	if s.setupFn == nil {
		return nil, errUnexpectedCall
	}
	return s.setupFn(ctx, userID, issuer)
}

func (s *gateStub) RegenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	if s.regenerateFn == nil {
		return nil, errUnexpectedCall
	}
	return s.regenerateFn(ctx, userID)
}

func (s *gateStub) SecurityAudit(ctx context.Context, userID string, days int) ([]*domain.VerificationLog, error) {
	if s.auditFn == nil {
		return nil, errUnexpectedCall
	}
	return s.auditFn(ctx, userID, days)
}

type reportStub struct {
	trialFn     func(from, to time.Time) (*domain.TrialBalance, error)
	incomeFn    func(from, to time.Time) (*domain.IncomeStatement, error)
	balanceFn   func(asOf time.Time) (*domain.BalanceSheet, error)
	vatFn       func(from, to time.Time) (*domain.VATReport, error)
	statementFn func(number string, from, to time.Time) (*domain.AccountStatement, error)
	reconcileFn func() (*usecase.ReconciliationReport, error)
}

func (s *reportStub) TrialBalance(_ context.Context, from, to time.Time) (*domain.TrialBalance, error) {
	if s.trialFn == nil {
		return nil, errUnexpectedCall
	}
	return s.trialFn(from, to)
}

func (s *reportStub) IncomeStatement(_ context.Context, from, to time.Time) (*domain.IncomeStatement, error) {
	if s.incomeFn == nil {
		return nil, errUnexpectedCall
	}
	return s.incomeFn(from, to)
}

func (s *reportStub) BalanceSheet(_ context.Context, asOf time.Time) (*domain.BalanceSheet, error) {
	if s.balanceFn == nil {
		return nil, errUnexpectedCall
	}
	return s.balanceFn(asOf)
}

func (s *reportStub) VATReport(_ context.Context, from, to time.Time) (*domain.VATReport, error) {
	if s.vatFn == nil {
		return nil, errUnexpectedCall
	}
	return s.vatFn(from, to)
}

func (s *reportStub) AccountStatement(_ context.Context, number string, from, to time.Time) (*domain.AccountStatement, error) {
	if s.statementFn == nil {
		return nil, errUnexpectedCall
	}
	return s.statementFn(number, from, to)
}

func (s *reportStub) GenerateReconciliationReport(context.Context) (*usecase.ReconciliationReport, error) {
	if s.reconcileFn == nil {
		return nil, errUnexpectedCall
	}
	return s.reconcileFn()
}

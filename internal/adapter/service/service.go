// Package service is the boundary every front end calls. It parses string
// input, resolves voucher references, runs the use case and folds the outcome
// into a Result.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/verifikat/internal/domain"
	"github.com/iho/verifikat/internal/usecase"
)

// AccountService manages the chart of accounts.
type AccountService interface {
	CreateAccount(ctx context.Context, input usecase.CreateAccountInput) (*domain.Account, error)
	GetAccount(ctx context.Context, number string) (*domain.Account, error)
	ListAccounts(ctx context.Context, includeInactive bool) ([]*domain.Account, error)
	DeactivateAccount(ctx context.Context, number string) (*domain.Account, error)
	ReactivateAccount(ctx context.Context, number string) (*domain.Account, error)
}

// LedgerService records vouchers and entries.
type LedgerService interface {
	CreateVoucher(ctx context.Context, input usecase.CreateVoucherInput) (*domain.Voucher, error)
	AddJournalEntry(ctx context.Context, input usecase.AddJournalEntryInput) (*usecase.EntryResult, error)
	AddVATEntries(ctx context.Context, input usecase.AddVATEntriesInput) (*usecase.VATResult, error)
	PostVoucher(ctx context.Context, voucherID string) (*domain.Voucher, error)
	ValidateVoucherBalance(ctx context.Context, voucherID string) (*domain.BalanceCheck, error)
	GetVoucher(ctx context.Context, ref string) (*domain.Voucher, error)
}

// LifecycleService annotates, supersedes and voids vouchers.
type LifecycleService interface {
	AddAnnotation(ctx context.Context, input usecase.AddAnnotationInput) (*domain.Annotation, error)
	Supersede(ctx context.Context, input usecase.SupersedeInput) (*domain.Voucher, error)
	Void(ctx context.Context, input usecase.VoidInput) (*domain.Voucher, error)
	History(ctx context.Context, ref string) (*usecase.VoucherHistory, error)
	ListByPeriod(ctx context.Context, filter usecase.VoucherFilter) (*usecase.PeriodListing, error)
}

// SecureService verifies credentials and runs a lifecycle operation in one call.
type SecureService interface {
	SecureSupersede(ctx context.Context, creds usecase.Credentials, input usecase.SupersedeInput) (*domain.Voucher, error)
	SecureVoid(ctx context.Context, creds usecase.Credentials, input usecase.VoidInput) (*domain.Voucher, error)
	SecureAnnotate(ctx context.Context, creds usecase.Credentials, input usecase.AddAnnotationInput) (*domain.Annotation, error)
}

// GateService is the TOTP security gate.
type GateService interface {
	Verify(ctx context.Context, input usecase.VerifyInput) (*domain.Verification, error)
	Setup(ctx context.Context, userID, issuer string) (*usecase.Enrollment, error)
	RegenerateBackupCodes(ctx context.Context, userID string) ([]string, error)
	SecurityAudit(ctx context.Context, userID string, days int) ([]*domain.VerificationLog, error)
}

// ReportService builds financial statements.
type ReportService interface {
	TrialBalance(ctx context.Context, from, to time.Time) (*domain.TrialBalance, error)
	IncomeStatement(ctx context.Context, from, to time.Time) (*domain.IncomeStatement, error)
	BalanceSheet(ctx context.Context, asOf time.Time) (*domain.BalanceSheet, error)
	VATReport(ctx context.Context, from, to time.Time) (*domain.VATReport, error)
}

// StatementService builds per-account ledgers.
type StatementService interface {
	AccountStatement(ctx context.Context, number string, from, to time.Time) (*domain.AccountStatement, error)
}

// ReconciliationService checks stored balances against postings.
type ReconciliationService interface {
	GenerateReconciliationReport(ctx context.Context) (*usecase.ReconciliationReport, error)
}

// Deps wires the service.
type Deps struct {
	Accounts       AccountService
	Ledger         LedgerService
	Lifecycle      LifecycleService
	Secure         SecureService
	Gate           GateService
	Reports        ReportService
	Statements     StatementService
	Reconciliation ReconciliationService
	Issuer         string
	Logger         zerolog.Logger
}

// Service is the ledger boundary.
type Service struct {
	accounts       AccountService
	ledger         LedgerService
	lifecycle      LifecycleService
	secure         SecureService
	gate           GateService
	reports        ReportService
	statements     StatementService
	reconciliation ReconciliationService
	issuer         string
	logger         zerolog.Logger
}

// New creates a Service.
func New(d Deps) *Service {
	return &Service{
		accounts:       d.Accounts,
		ledger:         d.Ledger,
		lifecycle:      d.Lifecycle,
		secure:         d.Secure,
		gate:           d.Gate,
		reports:        d.Reports,
		statements:     d.Statements,
		reconciliation: d.Reconciliation,
		issuer:         d.Issuer,
		logger:         d.Logger.With().Str("component", "service").Logger(),
	}
}

// resolve turns a voucher number or ID into the voucher's ID.
func (s *Service) resolve(ctx context.Context, ref string) (string, error) {
	v, err := s.ledger.GetVoucher(ctx, ref)
	if err != nil {
		return "", err
	}
	return v.ID, nil
}

// resolveOptional leaves an empty reference empty.
func (s *Service) resolveOptional(ctx context.Context, ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", nil
	}
	return s.resolve(ctx, ref)
}

// CreateAccount adds an account to the chart.
func (s *Service) CreateAccount(ctx context.Context, req CreateAccountRequest) Result {
	const op = "create_account"
	typ, err := domain.ParseAccountType(req.Type)
	if err != nil {
		return failure(s.logger, op, err)
	}
	account, err := s.accounts.CreateAccount(ctx, usecase.CreateAccountInput{
		Number: req.Number,
		Name:   req.Name,
		Type:   typ,
	})
	if err != nil {
		return failure(s.logger, op, err)
	}
	return ok(AccountFromDomain(account))
}

// GetAccount returns one account with its balance.
func (s *Service) GetAccount(ctx context.Context, number string) Result {
	account, err := s.accounts.GetAccount(ctx, number)
	if err != nil {
		return failure(s.logger, "get_account", err)
	}
	return ok(AccountFromDomain(account))
}

// ListAccounts returns the chart of accounts.
func (s *Service) ListAccounts(ctx context.Context, includeInactive bool) Result {
	accounts, err := s.accounts.ListAccounts(ctx, includeInactive)
	if err != nil {
		return failure(s.logger, "list_accounts", err)
	}
	return ok(AccountsFromDomain(accounts))
}

// DeactivateAccount blocks new postings to an account.
func (s *Service) DeactivateAccount(ctx context.Context, number string) Result {
	account, err := s.accounts.DeactivateAccount(ctx, number)
	if err != nil {
		return failure(s.logger, "deactivate_account", err)
	}
	return ok(AccountFromDomain(account))
}

// ReactivateAccount reopens an account for postings.
func (s *Service) ReactivateAccount(ctx context.Context, number string) Result {
	account, err := s.accounts.ReactivateAccount(ctx, number)
	if err != nil {
		return failure(s.logger, "reactivate_account", err)
	}
	return ok(AccountFromDomain(account))
}

// CreateVoucher opens a new voucher with the next sequential number.
func (s *Service) CreateVoucher(ctx context.Context, req CreateVoucherRequest) Result {
	const op = "create_voucher"
	input := usecase.CreateVoucherInput{
		Description: req.Description,
		Type:        domain.VoucherType(req.Type),
		SourceType:  req.SourceType,
		SourceID:    req.SourceID,
		Reference:   req.Reference,
	}
	d, err := parseDate("date", req.Date)
	if err != nil {
		return failure(s.logger, op, err)
	}
	if !d.IsZero() {
		input.Date = &d
	}
	if input.TotalAmount, err = parseAmount("total_amount", req.TotalAmount); err != nil {
		return failure(s.logger, op, err)
	}

	voucher, err := s.ledger.CreateVoucher(ctx, input)
	if err != nil {
		return failure(s.logger, op, err)
	}
	return ok(VoucherFromDomain(voucher))
}

// AddJournalEntry appends a debit or credit line to a voucher.
func (s *Service) AddJournalEntry(ctx context.Context, req JournalEntryRequest) Result {
	const op = "add_journal_entry"
	debit, err := parseAmount("debit", req.Debit)
	if err != nil {
		return failure(s.logger, op, err)
	}
	credit, err := parseAmount("credit", req.Credit)
	if err != nil {
		return failure(s.logger, op, err)
	}
	voucherID, err := s.resolve(ctx, req.Voucher)
	if err != nil {
		return failure(s.logger, op, err)
	}

	res, err := s.ledger.AddJournalEntry(ctx, usecase.AddJournalEntryInput{
		VoucherID:     voucherID,
		AccountNumber: req.Account,
		Description:   req.Description,
		Debit:         debit,
		Credit:        credit,
		Reference:     req.Reference,
	})
	if err != nil {
		return failure(s.logger, op, err)
	}
	return ok(EntryResultView{EntryID: res.EntryID, Duplicate: res.Duplicate})
}

// AddVATEntries splits a VAT-inclusive amount onto a voucher.
func (s *Service) AddVATEntries(ctx context.Context, req VATEntriesRequest) Result {
	const op = "add_vat_entries"
	gross, err := parseAmount("gross_amount", req.GrossAmount)
	if err != nil {
		return failure(s.logger, op, err)
	}
	rate, err := parseRate(req.VATRate)
	if err != nil {
		return failure(s.logger, op, err)
	}
	var txType domain.TransactionType
	if strings.TrimSpace(req.TransactionType) != "" {
		if txType, err = domain.ParseTransactionType(req.TransactionType); err != nil {
			return failure(s.logger, op, err)
		}
	}
	voucherID, err := s.resolve(ctx, req.Voucher)
	if err != nil {
		return failure(s.logger, op, err)
	}

	res, err := s.ledger.AddVATEntries(ctx, usecase.AddVATEntriesInput{
		VoucherID:       voucherID,
		GrossAmount:     gross,
		VATRate:         rate,
		NetAccount:      req.NetAccount,
		VATAccount:      req.VATAccount,
		NetDescription:  req.NetDescription,
		VATDescription:  req.VATDescription,
		TransactionType: txType,
		Reference:       req.Reference,
	})
	if err != nil {
		return failure(s.logger, op, err)
	}
	return ok(VATResultFromUseCase(res))
}

// PostVoucher posts a balanced voucher to the accounts.
func (s *Service) PostVoucher(ctx context.Context, ref string) Result {
	const op = "post_voucher"
	voucherID, err := s.resolve(ctx, ref)
	if err != nil {
		return failure(s.logger, op, err)
	}
	voucher, err := s.ledger.PostVoucher(ctx, voucherID)
	if err != nil {
		return failure(s.logger, op, err)
	}
	return ok(VoucherFromDomain(voucher))
}

// ValidateVoucherBalance reports a voucher's totals. An unbalanced voucher
// fails with UNBALANCED_VOUCHER.
func (s *Service) ValidateVoucherBalance(ctx context.Context, ref string) Result {
	const op = "validate_voucher_balance"
	voucherID, err := s.resolve(ctx, ref)
	if err != nil {
		return failure(s.logger, op, err)
	}
	check, err := s.ledger.ValidateVoucherBalance(ctx, voucherID)
	if err != nil {
		return failure(s.logger, op, err)
	}
	return ok(BalanceFromDomain(*check))
}

// VoucherHistory returns a voucher with its entries, relationships,
// annotations and security audit trail.
func (s *Service) VoucherHistory(ctx context.Context, ref string) Result {
	history, err := s.lifecycle.History(ctx, ref)
	if err != nil {
		return failure(s.logger, "voucher_history", err)
	}
	return ok(HistoryFromUseCase(history))
}

// ListVouchers lists the vouchers dated within a period.
func (s *Service) ListVouchers(ctx context.Context, req ListVouchersRequest) Result {
	const op = "list_vouchers"
	from, to, err := parsePeriod(PeriodRequest{From: req.From, To: req.To})
	if err != nil {
		return failure(s.logger, op, err)
	}
	listing, err := s.lifecycle.ListByPeriod(ctx, usecase.VoucherFilter{
		From:              from,
		To:                to,
		IncludeSuperseded: req.IncludeSuperseded,
		Type:              domain.VoucherType(strings.ToLower(strings.TrimSpace(req.Type))),
	})
	if err != nil {
		return failure(s.logger, op, err)
	}
	return ok(ListingFromUseCase(listing))
}

func (c *Credentials) toUseCase() usecase.Credentials {
	return usecase.Credentials{UserID: c.UserID, Code: c.Code, ClientIP: c.ClientIP, UserAgent: c.UserAgent}
}

// AddAnnotation appends a user annotation. It needs either a prior
// verification or credentials.
func (s *Service) AddAnnotation(ctx context.Context, req AnnotationRequest) Result {
	const op = "add_annotation"
	typ, err := domain.ParsePublicAnnotationType(req.Type)
	if err != nil {
		return failure(s.logger, op, err)
	}
	voucherID, err := s.resolve(ctx, req.Voucher)
	if err != nil {
		return failure(s.logger, op, err)
	}
	relatedID, err := s.resolveOptional(ctx, req.RelatedVoucher)
	if err != nil {
		return failure(s.logger, op, fmt.Errorf("related voucher: %w", err))
	}

	input := usecase.AddAnnotationInput{
		VoucherID:        voucherID,
		Type:             typ,
		Message:          req.Message,
		RelatedVoucherID: relatedID,
		Author:           req.Author,
		VerificationID:   req.VerificationID,
	}
	var annotation *domain.Annotation
	if req.Credentials != nil {
		annotation, err = s.secure.SecureAnnotate(ctx, req.Credentials.toUseCase(), input)
	} else {
		annotation, err = s.lifecycle.AddAnnotation(ctx, input)
	}
	if err != nil {
		return failure(s.logger, op, err)
	}
	return ok(AnnotationFromDomain(annotation))
}

// Supersede replaces one voucher with another.
func (s *Service) Supersede(ctx context.Context, req SupersedeRequest) Result {
	const op = "supersede_voucher"
	originalID, err := s.resolve(ctx, req.Original)
	if err != nil {
		return failure(s.logger, op, err)
	}
	replacementID, err := s.resolve(ctx, req.Replacement)
	if err != nil {
		return failure(s.logger, op, fmt.Errorf("replacement: %w", err))
	}

	input := usecase.SupersedeInput{
		OriginalID:     originalID,
		ReplacementID:  replacementID,
		Reason:         req.Reason,
		Author:         req.Author,
		VerificationID: req.VerificationID,
	}
	var voucher *domain.Voucher
	if req.Credentials != nil {
		voucher, err = s.secure.SecureSupersede(ctx, req.Credentials.toUseCase(), input)
	} else {
		voucher, err = s.lifecycle.Supersede(ctx, input)
	}
	if err != nil {
		return failure(s.logger, op, err)
	}
	return ok(VoucherFromDomain(voucher))
}

// Void cancels a voucher that was never posted.
func (s *Service) Void(ctx context.Context, req VoidRequest) Result {
	const op = "void_voucher"
	voucherID, err := s.resolve(ctx, req.Voucher)
	if err != nil {
		return failure(s.logger, op, err)
	}

	input := usecase.VoidInput{
		VoucherID:      voucherID,
		Reason:         req.Reason,
		Author:         req.Author,
		VerificationID: req.VerificationID,
	}
	var voucher *domain.Voucher
	if req.Credentials != nil {
		voucher, err = s.secure.SecureVoid(ctx, req.Credentials.toUseCase(), input)
	} else {
		voucher, err = s.lifecycle.Void(ctx, input)
	}
	if err != nil {
		return failure(s.logger, op, err)
	}
	return ok(VoucherFromDomain(voucher))
}

// SetupTOTP enrolls a user. The secret and backup codes are shown once.
func (s *Service) SetupTOTP(ctx context.Context, userID string) Result {
	enrollment, err := s.gate.Setup(ctx, userID, s.issuer)
	if err != nil {
		return failure(s.logger, "setup_totp", err)
	}
	return ok(EnrollmentView{
		Secret:          enrollment.Secret,
		ProvisioningURI: enrollment.ProvisioningURI,
		BackupCodes:     enrollment.BackupCodes,
	})
}

// VerifyTOTP checks a code for an operation and returns a single-use
// verification on success.
func (s *Service) VerifyTOTP(ctx context.Context, req VerifyRequest) Result {
	const op = "verify_totp"
	operation, err := domain.ParseOperationType(req.Operation)
	if err != nil {
		return failure(s.logger, op, err)
	}
	// An unknown voucher still costs an attempt. The raw reference is bound
	// instead, so the verification can never be consumed against another voucher.
	voucherID, resolveErr := s.resolveOptional(ctx, req.Voucher)
	if resolveErr != nil {
		if !errors.Is(resolveErr, domain.ErrVoucherNotFound) {
			return failure(s.logger, op, resolveErr)
		}
		voucherID = strings.TrimSpace(req.Voucher)
	}

	v, err := s.gate.Verify(ctx, usecase.VerifyInput{
		UserID:    req.UserID,
		Code:      req.Code,
		Operation: operation,
		VoucherID: voucherID,
		ClientIP:  req.ClientIP,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		return failure(s.logger, op, err)
	}
	if resolveErr != nil {
		return failure(s.logger, op, resolveErr)
	}
	return ok(VerificationView{
		VerificationID: v.ID,
		Operation:      string(v.Operation),
		VoucherID:      v.VoucherID,
		ExpiresAt:      v.ExpiresAt,
		BackupCodeUsed: v.BackupCodeUsed,
	})
}

// RegenerateBackupCodes replaces a user's backup codes.
func (s *Service) RegenerateBackupCodes(ctx context.Context, userID string) Result {
	codes, err := s.gate.RegenerateBackupCodes(ctx, userID)
	if err != nil {
		return failure(s.logger, "regenerate_backup_codes", err)
	}
	return ok(codes)
}

// SecurityAudit lists a user's verification attempts over the last days.
func (s *Service) SecurityAudit(ctx context.Context, userID string, days int) Result {
	logs, err := s.gate.SecurityAudit(ctx, userID, days)
	if err != nil {
		return failure(s.logger, "security_audit", err)
	}
	return ok(VerificationLogsFromDomain(logs))
}

// TrialBalance reports opening, period and closing totals per account.
func (s *Service) TrialBalance(ctx context.Context, req PeriodRequest) Result {
	const op = "trial_balance"
	from, to, err := parsePeriod(req)
	if err != nil {
		return failure(s.logger, op, err)
	}
	tb, err := s.reports.TrialBalance(ctx, from, to)
	if err != nil {
		return failure(s.logger, op, err)
	}
	return ok(TrialBalanceFromDomain(tb))
}

// IncomeStatement reports revenue and expenses for a period.
func (s *Service) IncomeStatement(ctx context.Context, req PeriodRequest) Result {
	const op = "income_statement"
	from, to, err := parsePeriod(req)
	if err != nil {
		return failure(s.logger, op, err)
	}
	is, err := s.reports.IncomeStatement(ctx, from, to)
	if err != nil {
		return failure(s.logger, op, err)
	}
	return ok(IncomeStatementFromDomain(is))
}

// BalanceSheet reports closing balances as of a date.
func (s *Service) BalanceSheet(ctx context.Context, asOf string) Result {
	const op = "balance_sheet"
	d, err := parseDate("as_of", asOf)
	if err != nil {
		return failure(s.logger, op, err)
	}
	if d.IsZero() {
		d = time.Now().UTC()
	}
	bs, err := s.reports.BalanceSheet(ctx, d)
	if err != nil {
		return failure(s.logger, op, err)
	}
	return ok(BalanceSheetFromDomain(bs))
}

// VATReport summarises VAT for a period.
func (s *Service) VATReport(ctx context.Context, req PeriodRequest) Result {
	const op = "vat_report"
	from, to, err := parsePeriod(req)
	if err != nil {
		return failure(s.logger, op, err)
	}
	r, err := s.reports.VATReport(ctx, from, to)
	if err != nil {
		return failure(s.logger, op, err)
	}
	return ok(VATReportFromDomain(r))
}

// AccountStatement lists one account's postings with a running balance.
func (s *Service) AccountStatement(ctx context.Context, number string, req PeriodRequest) Result {
	const op = "account_statement"
	from, to, err := parsePeriod(req)
	if err != nil {
		return failure(s.logger, op, err)
	}
	st, err := s.statements.AccountStatement(ctx, number, from, to)
	if err != nil {
		return failure(s.logger, op, err)
	}
	return ok(AccountStatementFromDomain(st))
}

// Reconcile compares every stored balance with the sum of its postings.
func (s *Service) Reconcile(ctx context.Context) Result {
	report, err := s.reconciliation.GenerateReconciliationReport(ctx)
	if err != nil {
		return failure(s.logger, "reconcile", err)
	}
	return ok(ReconciliationFromUseCase(report))
}

package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/verifikat/internal/domain"
)

// ReportUseCase builds read-only financial reports. Only posted vouchers
// that are neither superseded nor void contribute.
type ReportUseCase struct {
	reportRepo  ReportRepository
	accountRepo AccountRepository
	logRepo     VerificationLogRepository
	outputVAT   map[string]bool
	inputVAT    map[string]bool
	now         func() time.Time
}

// NewReportUseCase creates a new ReportUseCase.
func NewReportUseCase(reportRepo ReportRepository, accountRepo AccountRepository, logRepo VerificationLogRepository) *ReportUseCase {
	return &ReportUseCase{
		reportRepo:  reportRepo,
		accountRepo: accountRepo,
		logRepo:     logRepo,
		outputVAT:   toSet(OutputVATAccounts),
		inputVAT:    toSet(InputVATAccounts),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// TrialBalance lists opening, period and closing figures for every account
// with activity up to to.
func (uc *ReportUseCase) TrialBalance(ctx context.Context, from, to time.Time) (*domain.TrialBalance, error) {
	if err := validatePeriod(from, to); err != nil {
		return nil, err
	}

	activity, err := uc.reportRepo.AccountActivity(ctx, from, to)
	if err != nil {
		return nil, err
	}

	tb := &domain.TrialBalance{From: from, To: to}
	for _, a := range sortedActivity(activity) {
		row := domain.TrialBalanceRow{
			AccountNumber: a.AccountNumber,
			AccountName:   a.AccountName,
			AccountType:   a.AccountType,
			PeriodDebit:   a.PeriodDebits,
			PeriodCredit:  a.PeriodCredits,
		}
		row.OpeningDebit, row.OpeningCredit = domain.NaturalAmounts(a.OpeningNet())
		row.ClosingDebit, row.ClosingCredit = domain.NaturalAmounts(a.ClosingNet())

		tb.Rows = append(tb.Rows, row)
		tb.TotalOpeningDebit = tb.TotalOpeningDebit.Add(row.OpeningDebit)
		tb.TotalOpeningCredit = tb.TotalOpeningCredit.Add(row.OpeningCredit)
		tb.TotalPeriodDebit = tb.TotalPeriodDebit.Add(row.PeriodDebit)
		tb.TotalPeriodCredit = tb.TotalPeriodCredit.Add(row.PeriodCredit)
		tb.TotalClosingDebit = tb.TotalClosingDebit.Add(row.ClosingDebit)
		tb.TotalClosingCredit = tb.TotalClosingCredit.Add(row.ClosingCredit)
	}

	meta, err := uc.metadata(ctx)
	if err != nil {
		return nil, err
	}
	tb.Metadata = meta

	return tb, nil
}

// IncomeStatement lists income and expense accounts with movement in the
// period and the net result.
func (uc *ReportUseCase) IncomeStatement(ctx context.Context, from, to time.Time) (*domain.IncomeStatement, error) {
	if err := validatePeriod(from, to); err != nil {
		return nil, err
	}

	activity, err := uc.reportRepo.AccountActivity(ctx, from, to)
	if err != nil {
		return nil, err
	}

	is := &domain.IncomeStatement{From: from, To: to}
	for _, a := range sortedActivity(activity) {
		amount := a.PeriodChange()
		if amount.IsZero() {
			continue
		}
		line := domain.StatementLine{AccountNumber: a.AccountNumber, AccountName: a.AccountName, Amount: amount}
		switch a.AccountType {
		case domain.AccountTypeIncome:
			is.Revenue = append(is.Revenue, line)
			is.TotalRevenue = is.TotalRevenue.Add(amount)
		case domain.AccountTypeExpense:
			is.Expenses = append(is.Expenses, line)
			is.TotalExpenses = is.TotalExpenses.Add(amount)
		}
	}
	is.NetResult = is.TotalRevenue.Sub(is.TotalExpenses)

	return is, nil
}

// BalanceSheet shows asset, liability and equity balances at asOf. Income
// and expense accounts not yet closed to equity are carried as the result.
func (uc *ReportUseCase) BalanceSheet(ctx context.Context, asOf time.Time) (*domain.BalanceSheet, error) {
	activity, err := uc.reportRepo.AccountActivity(ctx, asOf, asOf)
	if err != nil {
		return nil, err
	}

	bs := &domain.BalanceSheet{AsOf: asOf}
	for _, a := range sortedActivity(activity) {
		amount := a.NaturalBalance()
		line := domain.StatementLine{AccountNumber: a.AccountNumber, AccountName: a.AccountName, Amount: amount}
		switch a.AccountType {
		case domain.AccountTypeAsset:
			if !amount.IsZero() {
				bs.Assets = append(bs.Assets, line)
			}
			bs.TotalAssets = bs.TotalAssets.Add(amount)
		case domain.AccountTypeLiability:
			if !amount.IsZero() {
				bs.Liabilities = append(bs.Liabilities, line)
			}
			bs.TotalLiabilities = bs.TotalLiabilities.Add(amount)
		case domain.AccountTypeEquity:
			if !amount.IsZero() {
				bs.Equity = append(bs.Equity, line)
			}
			bs.TotalEquity = bs.TotalEquity.Add(amount)
		case domain.AccountTypeIncome:
			bs.YearResult = bs.YearResult.Add(amount)
		case domain.AccountTypeExpense:
			bs.YearResult = bs.YearResult.Sub(amount)
		}
	}

	return bs, nil
}

// VATReport sums output VAT (credit minus debit) and input VAT (debit minus
// credit) for the period. A positive VATPayable is owed to the tax agency.
func (uc *ReportUseCase) VATReport(ctx context.Context, from, to time.Time) (*domain.VATReport, error) {
	if err := validatePeriod(from, to); err != nil {
		return nil, err
	}

	activity, err := uc.reportRepo.AccountActivity(ctx, from, to)
	if err != nil {
		return nil, err
	}

	r := &domain.VATReport{From: from, To: to}
	for _, a := range sortedActivity(activity) {
		switch {
		case uc.outputVAT[a.AccountNumber]:
			amount := a.PeriodCredits.Sub(a.PeriodDebits)
			r.OutputVAT = append(r.OutputVAT, domain.StatementLine{AccountNumber: a.AccountNumber, AccountName: a.AccountName, Amount: amount})
			r.TotalOut = r.TotalOut.Add(amount)
		case uc.inputVAT[a.AccountNumber]:
			amount := a.PeriodDebits.Sub(a.PeriodCredits)
			r.InputVAT = append(r.InputVAT, domain.StatementLine{AccountNumber: a.AccountNumber, AccountName: a.AccountName, Amount: amount})
			r.TotalIn = r.TotalIn.Add(amount)
		}
	}
	r.VATPayable = r.TotalOut.Sub(r.TotalIn)

	return r, nil
}

// AccountBalance returns the stored running balance of an account.
func (uc *ReportUseCase) AccountBalance(ctx context.Context, number string) (decimal.Decimal, error) {
	account, err := uc.accountRepo.GetByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

func (uc *ReportUseCase) metadata(ctx context.Context) (domain.ReportMetadata, error) {
	total, inactive, err := uc.reportRepo.VoucherCounts(ctx)
	if err != nil {
		return domain.ReportMetadata{}, err
	}

	meta := domain.ReportMetadata{
		TotalVouchers:      total,
		ActiveVouchers:     total - inactive,
		SupersededVouchers: inactive,
		GeneratedAt:        uc.now(),
	}

	if uc.logRepo != nil {
		n, err := uc.logRepo.CountConsumed(ctx)
		if err != nil {
			return domain.ReportMetadata{}, err
		}
		meta.SecurityProtectedOperations = n
	}

	return meta, nil
}

func validatePeriod(from, to time.Time) error {
	if to.Before(from) {
		return fmt.Errorf("%w: period end %s before start %s",
			domain.ErrInvalidEntry, to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	return nil
}

func sortedActivity(activity []domain.AccountActivity) []domain.AccountActivity {
	sort.Slice(activity, func(i, j int) bool {
		return activity[i].AccountNumber < activity[j].AccountNumber
	})
	return activity
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

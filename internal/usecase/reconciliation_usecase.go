package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/verifikat/internal/domain"
)

// ReconciliationUseCase compares stored running balances with balances
// recomputed from valid postings.
type ReconciliationUseCase struct {
	accountRepo AccountRepository
	reportRepo  ReportRepository
	now         func() time.Time
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(accountRepo AccountRepository, reportRepo ReportRepository) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		accountRepo: accountRepo,
		reportRepo:  reportRepo,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	AccountNumber     string
	RecordedBalance   decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	IsReconciled      bool
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalAccounts      int
	ReconciledAccounts int
	Discrepancies      []*ReconciliationResult
	TotalDebits        decimal.Decimal
	TotalCredits       decimal.Decimal
	LedgerConsistent   bool
	CheckedAt          time.Time
}

// GenerateReconciliationReport checks every account and the ledger-wide
// debit/credit equality.
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context) (*ReconciliationReport, error) {
	now := uc.now()

	accounts, err := uc.accountRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	activity, err := uc.reportRepo.AccountActivity(ctx, now, now)
	if err != nil {
		return nil, err
	}
	calculated := make(map[string]decimal.Decimal, len(activity))

	report := &ReconciliationReport{
		TotalAccounts: len(accounts),
		Discrepancies: make([]*ReconciliationResult, 0),
		CheckedAt:     now,
	}
	for _, a := range activity {
		calculated[a.AccountNumber] = a.NaturalBalance()
		report.TotalDebits = report.TotalDebits.Add(a.OpeningDebits).Add(a.PeriodDebits)
		report.TotalCredits = report.TotalCredits.Add(a.OpeningCredits).Add(a.PeriodCredits)
	}

	for _, account := range accounts {
		result := reconcile(account, calculated[account.Number])
		if result.IsReconciled {
			report.ReconciledAccounts++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}

	report.LedgerConsistent = report.TotalDebits.Sub(report.TotalCredits).Abs().LessThanOrEqual(domain.BalanceTolerance)

	return report, nil
}

// CheckLedgerConsistency returns an error when the report shows any drift.
func (uc *ReconciliationUseCase) CheckLedgerConsistency(ctx context.Context) error {
	report, err := uc.GenerateReconciliationReport(ctx)
	if err != nil {
		return err
	}

	if !report.LedgerConsistent {
		return fmt.Errorf(
			"ledger inconsistency detected: debits=%s credits=%s difference=%s",
			report.TotalDebits.String(),
			report.TotalCredits.String(),
			report.TotalDebits.Sub(report.TotalCredits).String(),
		)
	}
	if n := len(report.Discrepancies); n > 0 {
		return fmt.Errorf("balance drift on %d accounts, first %s: recorded=%s calculated=%s",
			n, report.Discrepancies[0].AccountNumber,
			report.Discrepancies[0].RecordedBalance, report.Discrepancies[0].CalculatedBalance)
	}

	return nil
}

func reconcile(account *domain.Account, calculated decimal.Decimal) *ReconciliationResult {
	diff := account.Balance.Sub(calculated)
	return &ReconciliationResult{
		AccountNumber:     account.Number,
		RecordedBalance:   account.Balance,
		CalculatedBalance: calculated,
		Difference:        diff,
		IsReconciled:      diff.IsZero(),
	}
}

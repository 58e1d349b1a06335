package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/iho/verifikat/internal/domain"
)

// EntryUseCase serves per-account views of valid postings.
type EntryUseCase struct {
	accountRepo AccountRepository
	reportRepo  ReportRepository
}

// NewEntryUseCase creates a new EntryUseCase.
func NewEntryUseCase(accountRepo AccountRepository, reportRepo ReportRepository) *EntryUseCase {
	return &EntryUseCase{
		accountRepo: accountRepo,
		reportRepo:  reportRepo,
	}
}

// AccountStatement returns the opening balance at from, every posting in the
// period with a running balance, and the closing balance at to.
func (uc *EntryUseCase) AccountStatement(ctx context.Context, number string, from, to time.Time) (*domain.AccountStatement, error) {
	if err := validatePeriod(from, to); err != nil {
		return nil, err
	}

	account, err := uc.accountRepo.GetByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return nil, err
	}

	activity, err := uc.reportRepo.AccountActivity(ctx, from, to)
	if err != nil {
		return nil, err
	}

	st := &domain.AccountStatement{
		AccountNumber: account.Number,
		AccountName:   account.Name,
		AccountType:   account.Type,
		From:          from,
		To:            to,
	}
	for _, a := range activity {
		if a.AccountNumber == account.Number {
			st.OpeningBalance = account.Type.BalanceChange(a.OpeningDebits, a.OpeningCredits)
			break
		}
	}

	postings, err := uc.reportRepo.AccountPostings(ctx, account.Number, from, to)
	if err != nil {
		return nil, err
	}

	running := st.OpeningBalance
	for _, p := range postings {
		running = running.Add(account.Type.BalanceChange(p.Debit, p.Credit))
		st.Lines = append(st.Lines, domain.StatementEntry{LedgerPosting: p, Balance: running})
		st.TotalDebit = st.TotalDebit.Add(p.Debit)
		st.TotalCredit = st.TotalCredit.Add(p.Credit)
	}
	st.ClosingBalance = running

	return st, nil
}

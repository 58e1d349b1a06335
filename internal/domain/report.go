package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountActivity is the raw per-account aggregate reports are folded from.
// Only posted vouchers that are neither superseded nor void contribute.
type AccountActivity struct {
	AccountNumber  string
	AccountName    string
	AccountType    AccountType
	OpeningDebits  decimal.Decimal
	OpeningCredits decimal.Decimal
	PeriodDebits   decimal.Decimal
	PeriodCredits  decimal.Decimal
}

// OpeningNet is debit minus credit before the period.
func (a AccountActivity) OpeningNet() decimal.Decimal {
	return a.OpeningDebits.Sub(a.OpeningCredits)
}

// ClosingNet is debit minus credit up to the end of the period.
func (a AccountActivity) ClosingNet() decimal.Decimal {
	return a.OpeningNet().Add(a.PeriodDebits).Sub(a.PeriodCredits)
}

// PeriodChange is the period movement signed by the account's natural side.
func (a AccountActivity) PeriodChange() decimal.Decimal {
	return a.AccountType.BalanceChange(a.PeriodDebits, a.PeriodCredits)
}

// NaturalBalance is the closing balance signed by the account's natural side.
func (a AccountActivity) NaturalBalance() decimal.Decimal {
	return a.AccountType.BalanceChange(a.OpeningDebits.Add(a.PeriodDebits), a.OpeningCredits.Add(a.PeriodCredits))
}

// TrialBalanceRow is one account line of a trial balance.
type TrialBalanceRow struct {
	AccountNumber string
	AccountName   string
	AccountType   AccountType
	OpeningDebit  decimal.Decimal
	OpeningCredit decimal.Decimal
	PeriodDebit   decimal.Decimal
	PeriodCredit  decimal.Decimal
	ClosingDebit  decimal.Decimal
	ClosingCredit decimal.Decimal
}

// TrialBalance lists every account with activity and the column totals.
type TrialBalance struct {
	From               time.Time
	To                 time.Time
	Rows               []TrialBalanceRow
	TotalOpeningDebit  decimal.Decimal
	TotalOpeningCredit decimal.Decimal
	TotalPeriodDebit   decimal.Decimal
	TotalPeriodCredit  decimal.Decimal
	TotalClosingDebit  decimal.Decimal
	TotalClosingCredit decimal.Decimal
	Metadata           ReportMetadata
}

// IsBalanced reports whether closing debits equal closing credits.
func (t *TrialBalance) IsBalanced() bool {
	return t.TotalClosingDebit.Sub(t.TotalClosingCredit).Abs().LessThanOrEqual(BalanceTolerance)
}

// ReportMetadata carries voucher counts behind a report.
type ReportMetadata struct {
	TotalVouchers               int
	ActiveVouchers              int
	SupersededVouchers          int
	SecurityProtectedOperations int
	GeneratedAt                 time.Time
}

// StatementLine is one account on an income statement or balance sheet.
type StatementLine struct {
	AccountNumber string
	AccountName   string
	Amount        decimal.Decimal
}

// IncomeStatement is the result for a period.
type IncomeStatement struct {
	From          time.Time
	To            time.Time
	Revenue       []StatementLine
	Expenses      []StatementLine
	TotalRevenue  decimal.Decimal
	TotalExpenses decimal.Decimal
	NetResult     decimal.Decimal
}

// BalanceSheet shows closing balances as of a date.
type BalanceSheet struct {
	AsOf             time.Time
	Assets           []StatementLine
	Liabilities      []StatementLine
	Equity           []StatementLine
	TotalAssets      decimal.Decimal
	TotalLiabilities decimal.Decimal
	TotalEquity      decimal.Decimal
	YearResult       decimal.Decimal
}

// IsBalanced reports whether assets equal liabilities, equity and the result.
func (b *BalanceSheet) IsBalanced() bool {
	rhs := b.TotalLiabilities.Add(b.TotalEquity).Add(b.YearResult)
	return b.TotalAssets.Sub(rhs).Abs().LessThanOrEqual(BalanceTolerance)
}

// VATReport summarises output and input VAT for a period.
type VATReport struct {
	From       time.Time
	To         time.Time
	OutputVAT  []StatementLine
	InputVAT   []StatementLine
	TotalOut   decimal.Decimal
	TotalIn    decimal.Decimal
	VATPayable decimal.Decimal
}

// LedgerPosting is one valid journal entry on an account with the voucher it
// belongs to.
type LedgerPosting struct {
	VoucherID     string
	VoucherNumber string
	VoucherDate   time.Time
	EntryID       string
	Description   string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
}

// AccountStatement is the general ledger view of one account for a period.
type AccountStatement struct {
	AccountNumber  string
	AccountName    string
	AccountType    AccountType
	From           time.Time
	To             time.Time
	OpeningBalance decimal.Decimal
	Lines          []StatementEntry
	TotalDebit     decimal.Decimal
	TotalCredit    decimal.Decimal
	ClosingBalance decimal.Decimal
}

// StatementEntry is a posting with the running balance after it, signed by
// the account's natural side.
type StatementEntry struct {
	LedgerPosting
	Balance decimal.Decimal
}

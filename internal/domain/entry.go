package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// JournalEntry is one debit or credit line against one account within a voucher.
type JournalEntry struct {
	ID            string
	VoucherID     string
	AccountID     string
	AccountNumber string
	Description   string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	Reference     string
	CreatedAt     time.Time
}

// Side returns the side carrying the amount.
func (e *JournalEntry) Side() Side {
	if e.Debit.IsPositive() {
		return SideDebit
	}
	return SideCredit
}

// Amount returns the positive amount on whichever side is set.
func (e *JournalEntry) Amount() decimal.Decimal {
	if e.Debit.IsPositive() {
		return e.Debit
	}
	return e.Credit
}

// ValidateAmounts enforces that exactly one of debit and credit is positive
// and that neither is finer than one öre.
func ValidateAmounts(debit, credit decimal.Decimal) error {
	if debit.IsNegative() || credit.IsNegative() {
		return fmt.Errorf("%w: amounts cannot be negative", ErrInvalidEntry)
	}
	if !debit.Equal(debit.Round(2)) {
		return fmt.Errorf("%w: debit %s has more than two decimals", ErrInvalidAmount, debit.String())
	}
	if !credit.Equal(credit.Round(2)) {
		return fmt.Errorf("%w: credit %s has more than two decimals", ErrInvalidAmount, credit.String())
	}
	if debit.IsPositive() && credit.IsPositive() {
		return fmt.Errorf("%w: entry cannot have both debit and credit", ErrInvalidEntry)
	}
	if !debit.IsPositive() && !credit.IsPositive() {
		return fmt.Errorf("%w: entry must have either debit or credit", ErrInvalidEntry)
	}
	return nil
}

// ValidateWholeKrona rejects fractional amounts on accounts that are settled
// with the tax authority in whole kronor.
func ValidateWholeKrona(accountNumber string, amount decimal.Decimal, wholeKronaAccounts map[string]bool) error {
	if !wholeKronaAccounts[accountNumber] {
		return nil
	}
	if !amount.Equal(amount.Truncate(0)) {
		return fmt.Errorf("%w: %s on account %s", ErrWholeKronaRequired, amount.StringFixed(2), accountNumber)
	}
	return nil
}

// AccountMovement is the aggregated effect of a posted voucher on one account.
type AccountMovement struct {
	AccountID string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

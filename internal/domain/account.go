package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType fixes the natural balance side of an account.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeIncome    AccountType = "income"
	AccountTypeExpense   AccountType = "expense"
)

// Side is the debit or credit side of a journal entry.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideDebit {
		return SideCredit
	}
	return SideDebit
}

// ParseAccountType parses an account type, ignoring case.
func ParseAccountType(s string) (AccountType, error) {
	switch t := AccountType(strings.ToLower(strings.TrimSpace(s))); t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown account type %q", ErrInvalidEntry, s)
}

// NaturalSide returns the side on which the account normally carries a balance.
func (t AccountType) NaturalSide() Side {
	if t == AccountTypeAsset || t == AccountTypeExpense {
		return SideDebit
	}
	return SideCredit
}

// BalanceChange returns the signed movement debit and credit produce on an
// account of this type.
func (t AccountType) BalanceChange(debit, credit decimal.Decimal) decimal.Decimal {
	if t.NaturalSide() == SideDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// Account is a chart-of-accounts entry (BAS numbering) with its running balance.
type Account struct {
	ID        string
	Number    string
	Name      string
	Type      AccountType
	Balance   decimal.Decimal
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NaturalAmounts splits a signed net (debit minus credit) onto the debit and
// credit columns the way a trial balance shows it.
func NaturalAmounts(net decimal.Decimal) (debit, credit decimal.Decimal) {
	if net.IsNegative() {
		return decimal.Zero, net.Neg()
	}
	return net, decimal.Zero
}

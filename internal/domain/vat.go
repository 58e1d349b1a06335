package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TransactionType decides which side the net and VAT legs land on.
type TransactionType string

const (
	TransactionTypeExpense TransactionType = "expense"
	TransactionTypeRevenue TransactionType = "revenue"
)

// ParseTransactionType accepts expense or revenue (sales is an alias).
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expense", "purchase":
		return TransactionTypeExpense, nil
	case "revenue", "sales", "income":
		return TransactionTypeRevenue, nil
	}
	return "", fmt.Errorf("%w: unknown transaction type %q", ErrInvalidEntry, s)
}

// Side returns the side carrying the net and VAT legs.
func (t TransactionType) Side() Side {
	if t == TransactionTypeRevenue {
		return SideCredit
	}
	return SideDebit
}

// Statutory Swedish VAT rates.
var (
	VATRateStandard = decimal.RequireFromString("0.25")
	VATRateReduced  = decimal.RequireFromString("0.12")
	VATRateLow      = decimal.RequireFromString("0.06")
	VATRateExempt   = decimal.Zero
)

// VATLegRole identifies a leg produced by SplitVAT.
type VATLegRole string

const (
	VATLegNet      VATLegRole = "net"
	VATLegVAT      VATLegRole = "vat"
	VATLegRounding VATLegRole = "rounding"
)

// VATLeg is one journal line of a VAT split.
type VATLeg struct {
	Role          VATLegRole
	AccountNumber string
	Description   string
	Side          Side
	Amount        decimal.Decimal
}

// Debit returns the leg's debit column.
func (l VATLeg) Debit() decimal.Decimal {
	if l.Side == SideDebit {
		return l.Amount
	}
	return decimal.Zero
}

// Credit returns the leg's credit column.
func (l VATLeg) Credit() decimal.Decimal {
	if l.Side == SideCredit {
		return l.Amount
	}
	return decimal.Zero
}

// VATSplitInput describes a gross amount to divide into net, VAT and rounding.
type VATSplitInput struct {
	Gross           decimal.Decimal
	Rate            decimal.Decimal
	TransactionType TransactionType
	NetAccount      string
	VATAccount      string
	RoundingAccount string
	NetDescription  string
	VATDescription  string
}

// VATSplit is the outcome of SplitVAT.
type VATSplit struct {
	Gross          decimal.Decimal
	Rate           decimal.Decimal
	NetTheoretical decimal.Decimal
	VATTheoretical decimal.Decimal
	VATAmount      decimal.Decimal
	RoundingDiff   decimal.Decimal
	HasRounding    bool
	PostedNet      decimal.Decimal
	RoundingAmount decimal.Decimal
	Legs           []VATLeg
}

// SplitVAT divides a VAT-inclusive gross amount. VAT is rounded to whole
// kronor, ties to even. The difference between theoretical and
// rounded VAT goes to the rounding account when it reaches one öre; it sits on
// the net side when VAT was rounded down and on the opposite side when VAT was
// rounded up. The posted legs always sum to exactly Gross on the net side.
func SplitVAT(in VATSplitInput) (*VATSplit, error) {
	if in.Rate.IsNegative() || in.Rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidVATRate, in.Rate.String())
	}
	if !in.Gross.IsPositive() {
		return nil, fmt.Errorf("%w: gross amount %s", ErrInvalidAmount, in.Gross.String())
	}
	if !in.Gross.Equal(in.Gross.Round(2)) {
		return nil, fmt.Errorf("%w: gross amount %s has more than two decimals", ErrInvalidAmount, in.Gross.String())
	}

	side := in.TransactionType.Side()
	split := &VATSplit{Gross: in.Gross, Rate: in.Rate}

	if in.Rate.IsZero() {
		split.NetTheoretical = in.Gross
		split.PostedNet = in.Gross
		split.Legs = []VATLeg{{
			Role:          VATLegNet,
			AccountNumber: in.NetAccount,
			Description:   in.NetDescription + " (VAT exempt)",
			Side:          side,
			Amount:        in.Gross,
		}}
		return split, nil
	}

	one := decimal.NewFromInt(1)
	split.VATTheoretical = in.Gross.Mul(in.Rate).Div(one.Add(in.Rate))
	split.NetTheoretical = in.Gross.Sub(split.VATTheoretical)
	split.VATAmount = split.VATTheoretical.RoundBank(0)
	split.RoundingDiff = split.VATTheoretical.Sub(split.VATAmount)
	split.HasRounding = split.RoundingDiff.Abs().GreaterThanOrEqual(BalanceTolerance)

	if split.HasRounding {
		split.RoundingAmount = split.RoundingDiff.RoundBank(2)
	}
	split.PostedNet = in.Gross.Sub(split.VATAmount).Sub(split.RoundingAmount)
	if !split.PostedNet.IsPositive() {
		return nil, fmt.Errorf("%w: gross amount %s too small to split", ErrInvalidAmount, in.Gross.String())
	}

	split.Legs = append(split.Legs, VATLeg{
		Role:          VATLegNet,
		AccountNumber: in.NetAccount,
		Description:   in.NetDescription,
		Side:          side,
		Amount:        split.PostedNet,
	})
	if split.VATAmount.IsPositive() {
		split.Legs = append(split.Legs, VATLeg{
			Role:          VATLegVAT,
			AccountNumber: in.VATAccount,
			Description:   in.VATDescription,
			Side:          side,
			Amount:        split.VATAmount,
		})
	}
	if split.HasRounding {
		roundingSide := side
		if split.RoundingAmount.IsNegative() {
			roundingSide = side.Opposite()
		}
		split.Legs = append(split.Legs, VATLeg{
			Role:          VATLegRounding,
			AccountNumber: in.RoundingAccount,
			Description:   fmt.Sprintf("VAT rounding (%s)", split.RoundingDiff.StringFixed(3)),
			Side:          roundingSide,
			Amount:        split.RoundingAmount.Abs(),
		})
	}

	return split, nil
}

// SignedTotal returns the legs' net effect on side, which equals Gross.
func (s *VATSplit) SignedTotal(side Side) decimal.Decimal {
	total := decimal.Zero
	for _, leg := range s.Legs {
		if leg.Side == side {
			total = total.Add(leg.Amount)
		} else {
			total = total.Sub(leg.Amount)
		}
	}
	return total
}

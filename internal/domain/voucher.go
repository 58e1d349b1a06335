package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// VoucherType classifies the business event a voucher records.
type VoucherType string

const (
	VoucherTypeSalesInvoice    VoucherType = "sales_invoice"
	VoucherTypePurchase        VoucherType = "purchase"
	VoucherTypePayment         VoucherType = "payment"
	VoucherTypePaymentReminder VoucherType = "payment_reminder"
	VoucherTypeAdjustment      VoucherType = "adjustment"
	VoucherTypeOpeningBalance  VoucherType = "opening_balance"
	VoucherTypeClosingEntry    VoucherType = "closing_entry"
)

// ParseVoucherType validates s as a voucher type.
func ParseVoucherType(s string) (VoucherType, error) {
	switch t := VoucherType(strings.ToLower(strings.TrimSpace(s))); t {
	case VoucherTypeSalesInvoice, VoucherTypePurchase, VoucherTypePayment, VoucherTypePaymentReminder,
		VoucherTypeAdjustment, VoucherTypeOpeningBalance, VoucherTypeClosingEntry:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidVoucherType, s)
}

// VoucherStatus is the lifecycle state. Active vouchers store NULL.
type VoucherStatus string

const (
	VoucherStatusActive     VoucherStatus = ""
	VoucherStatusSuperseded VoucherStatus = "SUPERSEDED"
	VoucherStatusVoid       VoucherStatus = "VOID"
)

// String returns ACTIVE for the empty status.
func (s VoucherStatus) String() string {
	if s == VoucherStatusActive {
		return "ACTIVE"
	}
	return string(s)
}

// Posting status labels used in period listings.
const (
	PostingStatusPosted     = "Posted"
	PostingStatusPending    = "Pending"
	PostingStatusSuperseded = "Superseded"
	PostingStatusVoided     = "Voided"
)

// BalanceTolerance absorbs sub-öre rounding without masking a real imbalance.
var BalanceTolerance = decimal.New(1, -2)

// Voucher is a numbered atomic unit of a recorded business event.
type Voucher struct {
	ID           string
	Number       string
	Date         time.Time
	Description  string
	Type         VoucherType
	TotalAmount  decimal.Decimal
	SourceType   string
	SourceID     string
	Reference    string
	IsPosted     bool
	PostedAt     *time.Time
	Status       VoucherStatus
	SupersededBy string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive reports whether the voucher is neither superseded nor void.
func (v *Voucher) IsActive() bool {
	return v.Status == VoucherStatusActive
}

// CanAcceptEntries returns an error unless entries may still be appended.
func (v *Voucher) CanAcceptEntries() error {
	if !v.IsActive() {
		return fmt.Errorf("%w: %s is %s", ErrVoucherNotActive, v.Number, v.Status)
	}
	if v.IsPosted {
		return fmt.Errorf("%w: %s", ErrVoucherAlreadyPosted, v.Number)
	}
	return nil
}

// CanSupersede returns an error unless the voucher may move to SUPERSEDED.
func (v *Voucher) CanSupersede() error {
	if !v.IsActive() {
		return fmt.Errorf("%w: %s is %s", ErrVoucherNotActive, v.Number, v.Status)
	}
	return nil
}

// CanVoid returns an error unless the voucher may move to VOID.
func (v *Voucher) CanVoid() error {
	if !v.IsActive() {
		return fmt.Errorf("%w: %s is %s", ErrVoucherNotActive, v.Number, v.Status)
	}
	if v.IsPosted {
		return fmt.Errorf("%w: %s", ErrCannotVoidPosted, v.Number)
	}
	return nil
}

// PostingStatus returns the label shown in period reviews.
func (v *Voucher) PostingStatus() string {
	switch {
	case v.Status == VoucherStatusSuperseded:
		return PostingStatusSuperseded
	case v.Status == VoucherStatusVoid:
		return PostingStatusVoided
	case v.IsPosted:
		return PostingStatusPosted
	default:
		return PostingStatusPending
	}
}

// FormatVoucherNumber renders a sequence value as V001, V002, ...
func FormatVoucherNumber(seq int64) string {
	return fmt.Sprintf("V%03d", seq)
}

// ParseVoucherNumber extracts the sequence value from a V-number.
func ParseVoucherNumber(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "V") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVoucherNumber, s)
	}
	n, err := strconv.ParseInt(s[1:], 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVoucherNumber, s)
	}
	return n, nil
}

// BalanceCheck is the result of summing a voucher's entries.
type BalanceCheck struct {
	VoucherID   string
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Difference  decimal.Decimal
	EntryCount  int
}

// IsBalanced reports whether debits and credits agree within BalanceTolerance.
func (b BalanceCheck) IsBalanced() bool {
	return b.Difference.Abs().LessThanOrEqual(BalanceTolerance)
}

// Validate returns ErrUnbalancedVoucher with the difference when out of tolerance.
func (b BalanceCheck) Validate() error {
	if !b.IsBalanced() {
		return fmt.Errorf("%w: debits %s, credits %s, difference %s",
			ErrUnbalancedVoucher, b.TotalDebit.StringFixed(2), b.TotalCredit.StringFixed(2), b.Difference.StringFixed(2))
	}
	return nil
}

// CheckBalance sums entries into a BalanceCheck.
func CheckBalance(voucherID string, entries []*JournalEntry) BalanceCheck {
	check := BalanceCheck{VoucherID: voucherID, EntryCount: len(entries)}
	for _, e := range entries {
		check.TotalDebit = check.TotalDebit.Add(e.Debit)
		check.TotalCredit = check.TotalCredit.Add(e.Credit)
	}
	check.Difference = check.TotalDebit.Sub(check.TotalCredit)
	return check
}

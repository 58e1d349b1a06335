package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/verifikat/internal/domain"
)

// DateLayout is the calendar date format accepted and returned.
const DateLayout = "2006-01-02"

// CreateAccountRequest adds a chart-of-accounts entry.
type CreateAccountRequest struct {
	Number string
	Name   string
	Type   string
}

// CreateVoucherRequest opens an empty voucher. Date defaults to today.
type CreateVoucherRequest struct {
	Date        string
	Description string
	Type        string
	TotalAmount string
	SourceType  string
	SourceID    string
	Reference   string
}

// JournalEntryRequest adds one debit or credit line. Voucher is a number
// such as V001 or an ID.
type JournalEntryRequest struct {
	Voucher     string
	Account     string
	Description string
	Debit       string
	Credit      string
	Reference   string
}

// VATEntriesRequest splits a VAT-inclusive amount onto a voucher.
type VATEntriesRequest struct {
	Voucher         string
	GrossAmount     string
	VATRate         string
	NetAccount      string
	VATAccount      string
	NetDescription  string
	VATDescription  string
	TransactionType string
	Reference       string
}

// ListVouchersRequest selects vouchers for a period listing.
type ListVouchersRequest struct {
	From              string
	To                string
	IncludeSuperseded bool
	Type              string
}

// Credentials are supplied when the caller wants the service to run the
// verification itself instead of passing a VerificationID.
type Credentials struct {
	UserID    string
	Code      string
	ClientIP  string
	UserAgent string
}

// AnnotationRequest appends a CORRECTION, REVERSAL or NOTE annotation.
type AnnotationRequest struct {
	Voucher        string
	Type           string
	Message        string
	RelatedVoucher string
	Author         string
	VerificationID string
	Credentials    *Credentials
}

// SupersedeRequest replaces Original with Replacement.
type SupersedeRequest struct {
	Original       string
	Replacement    string
	Reason         string
	Author         string
	VerificationID string
	Credentials    *Credentials
}

// VoidRequest cancels a never-posted voucher.
type VoidRequest struct {
	Voucher        string
	Reason         string
	Author         string
	VerificationID string
	Credentials    *Credentials
}

// VerifyRequest is one TOTP or backup code attempt.
type VerifyRequest struct {
	UserID    string
	Code      string
	Operation string
	Voucher   string
	ClientIP  string
	UserAgent string
}

// PeriodRequest bounds a report. Both dates are inclusive.
type PeriodRequest struct {
	From string
	To   string
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q is not a number", domain.ErrInvalidAmount, field, s)
	}
	return d, nil
}

func parseRate(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: rate is required", domain.ErrInvalidVATRate)
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", domain.ErrInvalidVATRate, s)
	}
	return d, nil
}

// parseDate returns the zero time for an empty string.
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q is not a YYYY-MM-DD date", domain.ErrInvalidEntry, field, s)
	}
	return t, nil
}

func parsePeriod(p PeriodRequest) (from, to time.Time, err error) {
	if from, err = parseDate("from", p.From); err != nil {
		return
	}
	if to, err = parseDate("to", p.To); err != nil {
		return
	}
	if from.IsZero() || to.IsZero() {
		err = fmt.Errorf("%w: period needs both from and to", domain.ErrInvalidEntry)
	}
	return
}

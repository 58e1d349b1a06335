package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// Account errors
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountInactive = errors.New("account is inactive")

	// Entry and voucher errors
	ErrInvalidEntry         = errors.New("invalid journal entry")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInvalidVATRate       = errors.New("vat rate must be between 0 and 1")
	ErrWholeKronaRequired   = errors.New("account requires whole kronor")
	ErrInvalidVoucherType   = errors.New("invalid voucher type")
	ErrInvalidVoucherNumber = errors.New("invalid voucher number")
	ErrVoucherNotFound      = errors.New("voucher not found")
	ErrVoucherEmpty         = errors.New("voucher has no journal entries")
	ErrUnbalancedVoucher    = errors.New("voucher is not balanced")
	ErrVoucherAlreadyPosted = errors.New("voucher is already posted")
	ErrVoucherNotActive     = errors.New("voucher is not active")
	ErrCannotVoidPosted     = errors.New("posted vouchers cannot be voided, supersede instead")
	ErrSameVoucher          = errors.New("voucher cannot supersede itself")

	// Annotation errors
	ErrSecurityRestrictedType = errors.New("annotation type is restricted to lifecycle operations")
	ErrInvalidMessage         = errors.New("annotation message is required")
	ErrMessageTooLong         = errors.New("message exceeds maximum length")
	ErrVerificationRequired   = errors.New("a valid totp verification is required")

	// TOTP errors
	ErrAccountLocked       = errors.New("account locked after repeated failed verifications")
	ErrRateLimited         = errors.New("too many verification attempts")
	ErrNoTOTPConfigured    = errors.New("totp is not configured for user")
	ErrTOTPInvalid         = errors.New("invalid verification code")
	ErrVerificationExpired = errors.New("verification has expired")
	ErrVerificationUsed    = errors.New("verification has already been used")
)

// Machine-checkable error codes returned across the call boundary.
const (
	CodeInvalidEntry           = "INVALID_ENTRY"
	CodeInvalidAmount          = "INVALID_AMOUNT"
	CodeInvalidVATRate         = "INVALID_VAT_RATE"
	CodeWholeKronaRequired     = "WHOLE_KRONA_REQUIRED"
	CodeInvalidVoucherType     = "INVALID_VOUCHER_TYPE"
	CodeAccountNotFound        = "ACCOUNT_NOT_FOUND"
	CodeAccountInactive        = "ACCOUNT_INACTIVE"
	CodeInvalidAccount         = "INVALID_ACCOUNT"
	CodeAccountExists          = "ACCOUNT_EXISTS"
	CodeVoucherNotFound        = "VOUCHER_NOT_FOUND"
	CodeVoucherEmpty           = "VOUCHER_EMPTY"
	CodeUnbalancedVoucher      = "UNBALANCED_VOUCHER"
	CodeVoucherAlreadyPosted   = "VOUCHER_ALREADY_POSTED"
	CodeVoucherNotActive       = "VOUCHER_NOT_ACTIVE"
	CodeCannotVoidPosted       = "CANNOT_VOID_POSTED"
	CodeSameVoucher            = "SAME_VOUCHER"
	CodeSecurityRestrictedType = "SECURITY_RESTRICTED_TYPE"
	CodeInvalidMessage         = "INVALID_MESSAGE"
	CodeMessageTooLong         = "MESSAGE_TOO_LONG"
	CodeVerificationRequired   = "VERIFICATION_REQUIRED"
	CodeAccountLocked          = "ACCOUNT_LOCKED"
	CodeRateLimited            = "RATE_LIMITED"
	CodeNoTOTPConfigured       = "NO_TOTP_CONFIGURED"
	CodeTOTPInvalid            = "TOTP_INVALID"
	CodeTimeout                = "TIMEOUT"
	CodeCanceled               = "CANCELED"
	CodeInternal               = "INTERNAL_ERROR"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidEntry, CodeInvalidEntry},
	{ErrInvalidAmount, CodeInvalidAmount},
	{ErrInvalidVATRate, CodeInvalidVATRate},
	{ErrWholeKronaRequired, CodeWholeKronaRequired},
	{ErrInvalidVoucherType, CodeInvalidVoucherType},
	{ErrInvalidVoucherNumber, CodeVoucherNotFound},
	{ErrAccountNotFound, CodeAccountNotFound},
	{ErrAccountInactive, CodeAccountInactive},
	{ErrInvalidAccountNumber, CodeInvalidAccount},
	{ErrInvalidAccountName, CodeInvalidAccount},
	{ErrAccountExists, CodeAccountExists},
	{ErrVoucherNotFound, CodeVoucherNotFound},
	{ErrVoucherEmpty, CodeVoucherEmpty},
	{ErrUnbalancedVoucher, CodeUnbalancedVoucher},
	{ErrVoucherAlreadyPosted, CodeVoucherAlreadyPosted},
	{ErrVoucherNotActive, CodeVoucherNotActive},
	{ErrCannotVoidPosted, CodeCannotVoidPosted},
	{ErrSameVoucher, CodeSameVoucher},
	{ErrSecurityRestrictedType, CodeSecurityRestrictedType},
	{ErrInvalidMessage, CodeInvalidMessage},
	{ErrMessageTooLong, CodeMessageTooLong},
	{ErrVerificationRequired, CodeVerificationRequired},
	{ErrVerificationExpired, CodeVerificationRequired},
	{ErrVerificationUsed, CodeVerificationRequired},
	{ErrAccountLocked, CodeAccountLocked},
	{ErrRateLimited, CodeRateLimited},
	{ErrNoTOTPConfigured, CodeNoTOTPConfigured},
	{ErrTOTPInvalid, CodeTOTPInvalid},
	{context.DeadlineExceeded, CodeTimeout},
	{context.Canceled, CodeCanceled},
}

// ErrorCode returns the machine-checkable code for err. Unknown errors map to
// CodeInternal so store details never leak to callers.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}

	return CodeInternal
}

// IsClientError reports whether err is a known validation, integrity or
// security error whose message is safe to show to the operator.
func IsClientError(err error) bool {
	code := ErrorCode(err)
	return code != CodeInternal && code != ""
}

// SecurityError carries the actionable metadata of a rejected verification.
type SecurityError struct {
	Err               error
	RetryAfter        time.Duration
	AttemptsRemaining int
	LockoutWarning    bool
	UnlockTime        *time.Time
}

func (e *SecurityError) Error() string {
	switch {
	case e.UnlockTime != nil:
		return fmt.Sprintf("%v: unlocks at %s", e.Err, e.UnlockTime.UTC().Format(time.RFC3339))
	case e.RetryAfter > 0:
		return fmt.Sprintf("%v: retry after %ds", e.Err, int(e.RetryAfter.Seconds()))
	case errors.Is(e.Err, ErrTOTPInvalid):
		return fmt.Sprintf("%v: %d attempts remaining", e.Err, e.AttemptsRemaining)
	default:
		return e.Err.Error()
	}
}

func (e *SecurityError) Unwrap() error {
	return e.Err
}

package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestErrorCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"invalid entry", ErrInvalidEntry, CodeInvalidEntry},
		{"wrapped unbalanced", fmt.Errorf("%w: diff 5", ErrUnbalancedVoucher), CodeUnbalancedVoucher},
		{"invalid vat rate", ErrInvalidVATRate, CodeInvalidVATRate},
		{"cannot void posted", ErrCannotVoidPosted, CodeCannotVoidPosted},
		{"restricted type", ErrSecurityRestrictedType, CodeSecurityRestrictedType},
		{"expired verification", ErrVerificationExpired, CodeVerificationRequired},
		{"security error", &SecurityError{Err: ErrRateLimited, RetryAfter: time.Second}, CodeRateLimited},
		{"deadline", context.DeadlineExceeded, CodeTimeout},
		{"unknown", errors.New("connection reset"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.want {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSecurityError(t *testing.T) {
	t.Parallel()

	unlock := time.Date(2026, 1, 1, 10, 15, 0, 0, time.UTC)
	err := error(&SecurityError{Err: ErrAccountLocked, UnlockTime: &unlock})

	var secErr *SecurityError
	if !errors.As(err, &secErr) || !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected unwrappable security error, got %v", err)
	}
	if !strings.Contains(err.Error(), "2026-01-01T10:15:00Z") {
		t.Errorf("unexpected message %q", err.Error())
	}

	invalid := &SecurityError{Err: ErrTOTPInvalid, AttemptsRemaining: 2}
	if !strings.Contains(invalid.Error(), "2 attempts remaining") {
		t.Errorf("unexpected message %q", invalid.Error())
	}
	if !IsClientError(invalid) || IsClientError(errors.New("boom")) {
		t.Error("IsClientError misclassified")
	}
}

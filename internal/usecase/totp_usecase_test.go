package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/verifikat/internal/domain"
	"github.com/iho/verifikat/internal/usecase"
)

func validCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	return code
}

// wrongCode returns a 6-digit code that is not valid around at.
func wrongCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	valid := map[string]bool{}
	for _, d := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		valid[validCode(t, secret, at.Add(d))] = true
	}
	for _, c := range []string{"000000", "111111", "222222", "333333"} {
		if !valid[c] {
			return c
		}
	}
	t.Fatal("no invalid code found")
	return ""
}

func TestTOTPUseCase_VerifyTOTPCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.enrol(t, operator)

	assert.Len(t, e.BackupCodes, domain.BackupCodeCount)
	assert.Contains(t, e.ProvisioningURI, "otpauth://totp/")
	assert.Contains(t, e.ProvisioningURI, "issuer=Verifikat")

	v, err := f.gate.Verify(ctx, usecase.VerifyInput{
		UserID:    operator,
		Code:      validCode(t, e.Secret, f.clock.Now()),
		Operation: domain.OperationAddAnnotation,
		VoucherID: "voucher-1",
		ClientIP:  "10.0.0.7",
		UserAgent: "cli",
	})
	require.NoError(t, err)
	assert.False(t, v.BackupCodeUsed)
	assert.Equal(t, f.clock.Now().Add(30*time.Second), v.ExpiresAt)

	logs := f.logs.All()
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Success)
	assert.Equal(t, "10.0.0.7", logs[0].IPAddress)
	assert.Equal(t, domain.OperationAddAnnotation, logs[0].OperationType)
	assert.Len(t, logs[0].CodeHash, 64)

	// One step of clock skew is tolerated.
	_, err = f.gate.Verify(ctx, usecase.VerifyInput{
		UserID:    operator,
		Code:      validCode(t, e.Secret, f.clock.Now().Add(-30*time.Second)),
		Operation: domain.OperationVoidVoucher,
	})
	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TOTPVerifications.WithLabelValues(string(domain.OperationVoidVoucher), "success")))
}

func TestTOTPUseCase_Lockout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.enrol(t, operator)

	// Spread failures so the three-per-window rate limit does not trip first.
	offsets := []time.Duration{0, 10 * time.Second, 20 * time.Second, 31 * time.Second, 35 * time.Second}
	start := f.clock.Now()
	for i, off := range offsets {
		f.clock.Set(start.Add(off))
		_, err := f.gate.Verify(ctx, usecase.VerifyInput{
			UserID:    operator,
			Code:      wrongCode(t, e.Secret, f.clock.Now()),
			Operation: domain.OperationSupersedeVoucher,
		})

		var secErr *domain.SecurityError
		require.ErrorAs(t, err, &secErr, "attempt %d", i+1)
		if i < len(offsets)-1 {
			assert.ErrorIs(t, err, domain.ErrTOTPInvalid)
			assert.Equal(t, len(offsets)-i-1, secErr.AttemptsRemaining)
			continue
		}
		assert.ErrorIs(t, err, domain.ErrAccountLocked)
		require.NotNil(t, secErr.UnlockTime)
	}

	lockedAt := f.clock.Now()
	f.clock.Advance(time.Second)

	_, err := f.gate.Verify(ctx, usecase.VerifyInput{
		UserID:    operator,
		Code:      validCode(t, e.Secret, f.clock.Now()),
		Operation: domain.OperationSupersedeVoucher,
	})
	var secErr *domain.SecurityError
	require.ErrorAs(t, err, &secErr)
	assert.ErrorIs(t, err, domain.ErrAccountLocked)
	assert.Equal(t, domain.CodeAccountLocked, domain.ErrorCode(err))
	require.NotNil(t, secErr.UnlockTime)
	assert.Equal(t, lockedAt.Add(900*time.Second), *secErr.UnlockTime)
	assert.InDelta(t, 899, secErr.RetryAfter.Seconds(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TOTPLockouts))

	// Locked attempts are logged but never validate the code.
	last := f.logs.All()[0]
	assert.Equal(t, domain.FailureAccountLocked, last.FailureReason)

	f.clock.Set(lockedAt.Add(900 * time.Second))
	_, err = f.gate.Verify(ctx, usecase.VerifyInput{
		UserID:    operator,
		Code:      validCode(t, e.Secret, f.clock.Now()),
		Operation: domain.OperationSupersedeVoucher,
	})
	assert.NoError(t, err)
}

func TestTOTPUseCase_RateLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.enrol(t, operator)

	for i := 0; i < 3; i++ {
		_, err := f.gate.Verify(ctx, usecase.VerifyInput{UserID: operator, Code: "12345", Operation: domain.OperationVoidVoucher})
		require.ErrorIs(t, err, domain.ErrTOTPInvalid)
		f.clock.Advance(2 * time.Second)
	}

	_, err := f.gate.Verify(ctx, usecase.VerifyInput{
		UserID: operator, Code: validCode(t, e.Secret, f.clock.Now()), Operation: domain.OperationVoidVoucher,
	})
	var secErr *domain.SecurityError
	require.ErrorAs(t, err, &secErr)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 24*time.Second, secErr.RetryAfter)

	f.clock.Advance(25 * time.Second)
	_, err = f.gate.Verify(ctx, usecase.VerifyInput{
		UserID: operator, Code: validCode(t, e.Secret, f.clock.Now()), Operation: domain.OperationVoidVoucher,
	})
	assert.NoError(t, err)

	reasons := map[string]int{}
	for _, l := range f.logs.All() {
		reasons[l.FailureReason]++
	}
	assert.Equal(t, 3, reasons[domain.FailureInvalidFormat])
	assert.Equal(t, 1, reasons[domain.FailureRateLimited])
	assert.Equal(t, 1, reasons[""])
}

func TestTOTPUseCase_BackupCodeSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.enrol(t, operator)
	code := e.BackupCodes[3]

	v, err := f.gate.Verify(ctx, usecase.VerifyInput{UserID: operator, Code: code, Operation: domain.OperationAddAnnotation})
	require.NoError(t, err)
	assert.True(t, v.BackupCodeUsed)
	assert.Equal(t, domain.BackupCodeCount-1, f.totpRepo.BackupCodesLeft(operator))

	for i := 0; i < 2; i++ {
		f.clock.Advance(time.Second)
		_, err = f.gate.Verify(ctx, usecase.VerifyInput{UserID: operator, Code: code, Operation: domain.OperationAddAnnotation})
		assert.ErrorIs(t, err, domain.ErrTOTPInvalid)
	}
	assert.Equal(t, domain.FailureBackupCodeSpent, f.logs.All()[0].FailureReason)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BackupCodesUsed))
}

func TestTOTPUseCase_NotConfigured(t *testing.T) {
	f := newFixture(t)

	_, err := f.gate.Verify(context.Background(), usecase.VerifyInput{UserID: "nobody", Code: "123456", Operation: domain.OperationVoidVoucher})
	require.ErrorIs(t, err, domain.ErrNoTOTPConfigured)
	assert.Equal(t, domain.CodeNoTOTPConfigured, domain.ErrorCode(err))

	logs := f.logs.All()
	require.Len(t, logs, 1)
	assert.Equal(t, domain.FailureNotConfigured, logs[0].FailureReason)
}

func TestTOTPUseCase_VerifyRejectsUnknownOperation(t *testing.T) {
	f := newFixture(t)

	_, err := f.gate.Verify(context.Background(), usecase.VerifyInput{UserID: operator, Code: "123456", Operation: "DELETE_EVERYTHING"})
	if !errors.Is(err, domain.ErrTOTPInvalid) {
		t.Fatalf("expected ErrTOTPInvalid, got %v", err)
	}
	if n := len(f.logs.All()); n != 0 {
		t.Errorf("expected no log rows, got %d", n)
	}
}

func TestTOTPUseCase_RegenerateBackupCodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.enrol(t, operator)

	codes, err := f.gate.RegenerateBackupCodes(ctx, operator)
	require.NoError(t, err)
	require.Len(t, codes, domain.BackupCodeCount)

	seen := map[string]bool{}
	for _, c := range codes {
		assert.Len(t, c, domain.BackupCodeLength)
		assert.False(t, seen[c], "duplicate code %s", c)
		seen[c] = true
	}

	_, err = f.gate.Verify(ctx, usecase.VerifyInput{UserID: operator, Code: e.BackupCodes[0], Operation: domain.OperationAddAnnotation})
	assert.ErrorIs(t, err, domain.ErrTOTPInvalid, "old codes are revoked")

	_, err = f.gate.Verify(ctx, usecase.VerifyInput{UserID: operator, Code: codes[0], Operation: domain.OperationAddAnnotation})
	assert.NoError(t, err)

	_, err = f.gate.RegenerateBackupCodes(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrNoTOTPConfigured)
}

func TestTOTPUseCase_SecurityAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.enrol(t, operator)

	_, _ = f.gate.Verify(ctx, usecase.VerifyInput{UserID: operator, Code: "99999999", Operation: domain.OperationVoidVoucher})
	f.clock.Advance(40 * 24 * time.Hour)
	_, err := f.gate.Verify(ctx, usecase.VerifyInput{UserID: operator, Code: e.BackupCodes[0], Operation: domain.OperationVoidVoucher})
	require.NoError(t, err)

	recent, err := f.gate.SecurityAudit(ctx, operator, 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].Success)

	all, err := f.gate.SecurityAudit(ctx, operator, 60)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

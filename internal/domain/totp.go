package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// OperationType names the gated operation a verification is requested for.
type OperationType string

const (
	OperationSupersedeVoucher OperationType = "SUPERSEDE_VOUCHER"
	OperationVoidVoucher      OperationType = "VOID_VOUCHER"
	OperationAddAnnotation    OperationType = "ADD_ANNOTATION"
)

// ParseOperationType validates s as a gated operation.
func ParseOperationType(s string) (OperationType, error) {
	switch op := OperationType(strings.ToUpper(strings.TrimSpace(s))); op {
	case OperationSupersedeVoucher, OperationVoidVoucher, OperationAddAnnotation:
		return op, nil
	}
	return "", fmt.Errorf("%w: unknown operation type %q", ErrInvalidEntry, s)
}

// Code lengths.
const (
	TOTPCodeLength   = 6
	BackupCodeLength = 8
	BackupCodeCount  = 8
)

// Failure reasons recorded in the verification log.
const (
	FailureInvalidCode     = "INVALID_CODE"
	FailureInvalidFormat   = "INVALID_FORMAT"
	FailureAccountLocked   = "ACCOUNT_LOCKED"
	FailureRateLimited     = "RATE_LIMITED"
	FailureNotConfigured   = "NO_TOTP_CONFIGURED"
	FailureBackupCodeSpent = "BACKUP_CODE_INVALID"
)

// TOTPSecret is a user's enrolled shared secret and hashed backup codes.
type TOTPSecret struct {
	UserID           string
	Secret           string
	BackupCodeHashes []string
	IssuerName       string
	IsActive         bool
	LastUsedAt       *time.Time
	CreatedAt        time.Time
}

// RateLimitState tracks verification attempts for a user.
type RateLimitState struct {
	UserID        string
	Attempts      int
	WindowStart   time.Time
	TotalFailures int
	LockedUntil   *time.Time
}

// TOTPPolicy holds the gate's thresholds.
type TOTPPolicy struct {
	MaxAttempts      int
	Window           time.Duration
	LockoutThreshold int
	LockoutDuration  time.Duration
	VerificationTTL  time.Duration
}

// DefaultTOTPPolicy returns 3 attempts per 30s, lock for 15 minutes after 5
// failures, verifications usable for 30s.
func DefaultTOTPPolicy() TOTPPolicy {
	return TOTPPolicy{
		MaxAttempts:      3,
		Window:           30 * time.Second,
		LockoutThreshold: 5,
		LockoutDuration:  900 * time.Second,
		VerificationTTL:  30 * time.Second,
	}
}

// IsLocked reports whether the user is locked out at now.
func (s *RateLimitState) IsLocked(now time.Time) bool {
	return s.LockedUntil != nil && now.Before(*s.LockedUntil)
}

// ClearExpiredLock drops a lock that has run out and resets cumulative
// failures. It reports whether anything changed.
func (s *RateLimitState) ClearExpiredLock(now time.Time) bool {
	if s.LockedUntil == nil || now.Before(*s.LockedUntil) {
		return false
	}
	s.LockedUntil = nil
	s.TotalFailures = 0
	s.Attempts = 0
	s.WindowStart = now
	return true
}

// WindowFull reports whether the current window has no attempts left. An
// elapsed window is rolled over first.
func (s *RateLimitState) WindowFull(now time.Time, p TOTPPolicy) bool {
	if s.WindowStart.IsZero() || now.Sub(s.WindowStart) >= p.Window {
		s.Attempts = 0
		s.WindowStart = now
		return false
	}
	return s.Attempts >= p.MaxAttempts
}

// RetryAfter returns how long until the current window rolls over.
func (s *RateLimitState) RetryAfter(now time.Time, p TOTPPolicy) time.Duration {
	d := s.WindowStart.Add(p.Window).Sub(now)
	if d < time.Second {
		return time.Second
	}
	return d
}

// RecordSuccess clears all counters.
func (s *RateLimitState) RecordSuccess(now time.Time) {
	s.Attempts = 0
	s.TotalFailures = 0
	s.WindowStart = now
	s.LockedUntil = nil
}

// RecordFailure counts a failed code and locks the user at the threshold.
// It reports whether this failure triggered the lock.
func (s *RateLimitState) RecordFailure(now time.Time, p TOTPPolicy) bool {
	s.Attempts++
	s.TotalFailures++
	if s.TotalFailures >= p.LockoutThreshold {
		until := now.Add(p.LockoutDuration)
		s.LockedUntil = &until
		return true
	}
	return false
}

// AttemptsRemaining is the number of failures left before lockout.
func (s *RateLimitState) AttemptsRemaining(p TOTPPolicy) int {
	remaining := p.LockoutThreshold - s.TotalFailures
	if remaining < 0 {
		return 0
	}
	return remaining
}

// VerificationLog is one row of the gate's independent audit trail.
type VerificationLog struct {
	ID             string
	UserID         string
	CodeHash       string
	Success        bool
	FailureReason  string
	OperationType  OperationType
	VoucherID      string
	IPAddress      string
	UserAgent      string
	BackupCodeUsed bool
	ConsumedAt     *time.Time
	CreatedAt      time.Time
}

// Verification is what a successful verify hands back to the caller.
type Verification struct {
	ID             string
	UserID         string
	Operation      OperationType
	VoucherID      string
	VerifiedAt     time.Time
	ExpiresAt      time.Time
	BackupCodeUsed bool
}

// HashCode returns the hex SHA-256 of a code. Codes are never stored in clear.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// ClassifyCode reports whether code is a 6-digit TOTP or an 8-digit backup code.
func ClassifyCode(code string) (isTOTP, isBackup bool) {
	for _, r := range code {
		if r < '0' || r > '9' {
			return false, false
		}
	}
	switch len(code) {
	case TOTPCodeLength:
		return true, false
	case BackupCodeLength:
		return false, true
	}
	return false, false
}

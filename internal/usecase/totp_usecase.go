package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"

	"github.com/iho/verifikat/internal/domain"
	"github.com/iho/verifikat/internal/infrastructure/metrics"
)

const (
	totpPeriod = 30
	totpSkew   = 1

	defaultAuditDays = 30
)

var backupCodeSpace = big.NewInt(100_000_000)

// TOTPUseCase is the second-factor gate in front of history-altering
// operations. Every attempt is written to its own verification log.
type TOTPUseCase struct {
	txManager TransactionManager
	repo      TOTPRepository
	logRepo   VerificationLogRepository
	idGen     IDGenerator
	policy    domain.TOTPPolicy
	issuer    string
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewTOTPUseCase creates a new TOTPUseCase. m may be nil.
func NewTOTPUseCase(
	txManager TransactionManager,
	repo TOTPRepository,
	logRepo VerificationLogRepository,
	idGen IDGenerator,
	policy domain.TOTPPolicy,
	issuer string,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *TOTPUseCase {
	return &TOTPUseCase{
		txManager: txManager,
		repo:      repo,
		logRepo:   logRepo,
		idGen:     idGen,
		policy:    policy,
		issuer:    issuer,
		logger:    logger,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (uc *TOTPUseCase) SetClock(now func() time.Time) {
	uc.now = now
}

// VerifyInput is one verification attempt.
type VerifyInput struct {
	UserID    string
	Code      string
	Operation domain.OperationType
	VoucherID string
	ClientIP  string
	UserAgent string
}

// Enrollment is returned once at setup. The secret and backup codes are not
// retrievable afterwards.
type Enrollment struct {
	Secret          string
	ProvisioningURI string
	BackupCodes     []string
}

// Verify checks a 6-digit TOTP or 8-digit backup code. Rejections are
// *domain.SecurityError values. The attempt, its counters and its log row are
// committed whatever the outcome.
func (uc *TOTPUseCase) Verify(ctx context.Context, input VerifyInput) (*domain.Verification, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrTOTPInvalid)
	}
	op, err := domain.ParseOperationType(string(input.Operation))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTOTPInvalid, err)
	}
	code := strings.TrimSpace(input.Code)

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	state, err := uc.repo.GetRateLimitForUpdate(txCtx, tx, userID)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	attempt := &domain.VerificationLog{
		ID:            uc.idGen.Generate(),
		UserID:        userID,
		CodeHash:      domain.HashCode(code),
		OperationType: op,
		VoucherID:     input.VoucherID,
		IPAddress:     input.ClientIP,
		UserAgent:     input.UserAgent,
		CreatedAt:     now,
	}

	state.ClearExpiredLock(now)

	if state.IsLocked(now) {
		secErr := &domain.SecurityError{
			Err:        domain.ErrAccountLocked,
			RetryAfter: state.LockedUntil.Sub(now),
			UnlockTime: state.LockedUntil,
		}
		return nil, uc.reject(txCtx, tx, state, attempt, domain.FailureAccountLocked, secErr)
	}

	if state.WindowFull(now, uc.policy) {
		secErr := &domain.SecurityError{
			Err:        domain.ErrRateLimited,
			RetryAfter: state.RetryAfter(now, uc.policy),
		}
		return nil, uc.reject(txCtx, tx, state, attempt, domain.FailureRateLimited, secErr)
	}

	secret, err := uc.repo.GetSecret(txCtx, tx, userID)
	if errors.Is(err, domain.ErrNoTOTPConfigured) {
		return nil, uc.reject(txCtx, tx, state, attempt, domain.FailureNotConfigured, &domain.SecurityError{Err: domain.ErrNoTOTPConfigured})
	}
	if err != nil {
		return nil, err
	}

	_, attempt.BackupCodeUsed = domain.ClassifyCode(code)
	ok, reason, err := uc.checkCode(txCtx, tx, secret, code, now)
	if err != nil {
		return nil, err
	}

	if !ok {
		attempt.FailureReason = reason
		locked := state.RecordFailure(now, uc.policy)
		var secErr *domain.SecurityError
		if locked {
			secErr = &domain.SecurityError{
				Err:        domain.ErrAccountLocked,
				RetryAfter: uc.policy.LockoutDuration,
				UnlockTime: state.LockedUntil,
			}
		} else {
			remaining := state.AttemptsRemaining(uc.policy)
			secErr = &domain.SecurityError{
				Err:               domain.ErrTOTPInvalid,
				AttemptsRemaining: remaining,
				LockoutWarning:    remaining <= 2,
			}
		}
		if err := uc.persist(txCtx, tx, state, attempt); err != nil {
			return nil, err
		}
		if err := tx.Commit(txCtx); err != nil {
			return nil, err
		}
		uc.recordFailure(userID, op, reason)
		if locked {
			if uc.metrics != nil {
				uc.metrics.TOTPLockouts.Inc()
			}
			uc.logger.Warn().Str("user_id", userID).Time("unlock_time", *state.LockedUntil).Msg("totp lockout triggered")
		}
		return nil, secErr
	}

	attempt.Success = true
	state.RecordSuccess(now)
	if err := uc.persist(txCtx, tx, state, attempt); err != nil {
		return nil, err
	}
	if err := uc.repo.TouchLastUsed(txCtx, tx, userID, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.RecordVerification(string(op), "success")
		if attempt.BackupCodeUsed {
			uc.metrics.BackupCodesUsed.Inc()
		}
	}
	uc.logger.Info().
		Str("user_id", userID).
		Str("operation", string(op)).
		Str("verification_id", attempt.ID).
		Bool("backup_code_used", attempt.BackupCodeUsed).
		Msg("totp verified")

	return &domain.Verification{
		ID:             attempt.ID,
		UserID:         userID,
		Operation:      op,
		VoucherID:      input.VoucherID,
		VerifiedAt:     now,
		ExpiresAt:      now.Add(uc.policy.VerificationTTL),
		BackupCodeUsed: attempt.BackupCodeUsed,
	}, nil
}

// checkCode returns the failure reason to log when the code is rejected.
func (uc *TOTPUseCase) checkCode(ctx context.Context, tx Transaction, secret *domain.TOTPSecret, code string, now time.Time) (bool, string, error) {
	isTOTP, isBackup := domain.ClassifyCode(code)
	switch {
	case isTOTP:
		valid, err := totp.ValidateCustom(code, secret.Secret, now, totp.ValidateOpts{
			Period:    totpPeriod,
			Skew:      totpSkew,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil || !valid {
			return false, domain.FailureInvalidCode, nil
		}
		return true, "", nil
	case isBackup:
		consumed, err := uc.repo.ConsumeBackupCode(ctx, tx, secret.UserID, domain.HashCode(code))
		if err != nil {
			return false, "", err
		}
		if !consumed {
			return false, domain.FailureBackupCodeSpent, nil
		}
		return true, "", nil
	default:
		return false, domain.FailureInvalidFormat, nil
	}
}

// reject logs an attempt that never reached code validation and commits it.
func (uc *TOTPUseCase) reject(ctx context.Context, tx Transaction, state *domain.RateLimitState, attempt *domain.VerificationLog, reason string, secErr *domain.SecurityError) error {
	attempt.FailureReason = reason
	if err := uc.persist(ctx, tx, state, attempt); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	uc.recordFailure(attempt.UserID, attempt.OperationType, reason)
	return secErr
}

func (uc *TOTPUseCase) persist(ctx context.Context, tx Transaction, state *domain.RateLimitState, attempt *domain.VerificationLog) error {
	if err := uc.repo.SaveRateLimit(ctx, tx, state); err != nil {
		return err
	}
	return uc.logRepo.Create(ctx, tx, attempt)
}

func (uc *TOTPUseCase) recordFailure(userID string, op domain.OperationType, reason string) {
	if uc.metrics != nil {
		uc.metrics.RecordVerification(string(op), strings.ToLower(reason))
	}
	uc.logger.Warn().
		Str("user_id", userID).
		Str("operation", string(op)).
		Str("reason", reason).
		Msg("totp verification rejected")
}

// ConsumeVerification redeems a successful verification for op on voucherID.
// It must run in the gated operation's transaction so a failed operation
// leaves the verification unused.
func (uc *TOTPUseCase) ConsumeVerification(ctx context.Context, tx Transaction, id string, op domain.OperationType, voucherID string) (*domain.VerificationLog, error) {
	log, err := uc.logRepo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case !log.Success:
		return nil, fmt.Errorf("%w: verification %s did not succeed", domain.ErrVerificationRequired, id)
	case log.OperationType != op:
		return nil, fmt.Errorf("%w: verification %s was issued for %s", domain.ErrVerificationRequired, id, log.OperationType)
	case log.VoucherID != "" && voucherID != "" && log.VoucherID != voucherID:
		return nil, fmt.Errorf("%w: verification %s targets another voucher", domain.ErrVerificationRequired, id)
	case log.ConsumedAt != nil:
		return nil, fmt.Errorf("%w: %s", domain.ErrVerificationUsed, id)
	}

	now := uc.now()
	if now.After(log.CreatedAt.Add(uc.policy.VerificationTTL)) {
		return nil, fmt.Errorf("%w: %s", domain.ErrVerificationExpired, id)
	}

	if err := uc.logRepo.MarkConsumed(ctx, tx, id, now); err != nil {
		return nil, err
	}
	log.ConsumedAt = &now

	return log, nil
}

// Setup enrols userID with a fresh secret and backup codes, replacing any
// previous enrolment.
func (uc *TOTPUseCase) Setup(ctx context.Context, userID, issuer string) (*Enrollment, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidEntry)
	}
	issuer = firstNonEmpty(issuer, uc.issuer)

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: userID,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}

	codes, hashes, err := generateBackupCodes()
	if err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := uc.repo.SaveSecret(txCtx, tx, &domain.TOTPSecret{
		UserID:           userID,
		Secret:           key.Secret(),
		BackupCodeHashes: hashes,
		IssuerName:       issuer,
		IsActive:         true,
		CreatedAt:        uc.now(),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	uc.logger.Info().Str("user_id", userID).Str("issuer", issuer).Msg("totp enrolled")

	return &Enrollment{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		BackupCodes:     codes,
	}, nil
}

// RegenerateBackupCodes replaces a user's backup codes and returns the new
// codes in clear.
func (uc *TOTPUseCase) RegenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	codes, hashes, err := generateBackupCodes()
	if err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if _, err := uc.repo.GetSecret(txCtx, tx, userID); err != nil {
		return nil, err
	}
	if err := uc.repo.ReplaceBackupCodes(txCtx, tx, userID, hashes); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	uc.logger.Info().Str("user_id", userID).Msg("backup codes regenerated")

	return codes, nil
}

// SecurityAudit returns a user's verification attempts of the last days days.
func (uc *TOTPUseCase) SecurityAudit(ctx context.Context, userID string, days int) ([]*domain.VerificationLog, error) {
	if days <= 0 {
		days = defaultAuditDays
	}
	since := uc.now().AddDate(0, 0, -days)
	return uc.logRepo.ListByUser(ctx, userID, since)
}

func generateBackupCodes() ([]string, []string, error) {
	codes := make([]string, 0, domain.BackupCodeCount)
	hashes := make([]string, 0, domain.BackupCodeCount)
	seen := make(map[string]bool, domain.BackupCodeCount)

	for len(codes) < domain.BackupCodeCount {
		n, err := rand.Int(rand.Reader, backupCodeSpace)
		if err != nil {
			return nil, nil, fmt.Errorf("generate backup code: %w", err)
		}
		code := fmt.Sprintf("%0*d", domain.BackupCodeLength, n.Int64())
		if seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
		hashes = append(hashes, domain.HashCode(code))
	}

	return codes, hashes, nil
}

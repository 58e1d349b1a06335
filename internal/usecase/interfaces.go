package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/verifikat/internal/domain"
)

// AccountRepository defines data access for chart-of-accounts entries.
type AccountRepository interface {
	// Create returns domain.ErrAccountExists when the number is taken.
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByNumber(ctx context.Context, number string) (*domain.Account, error)
	GetByNumberTx(ctx context.Context, tx Transaction, number string) (*domain.Account, error)
	// IncrementBalance applies delta with an atomic balance = balance + delta.
	IncrementBalance(ctx context.Context, tx Transaction, id string, delta decimal.Decimal, updatedAt time.Time) error
	SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error
	List(ctx context.Context) ([]*domain.Account, error)
}

// VoucherRepository defines data access for vouchers.
type VoucherRepository interface {
	NextNumber(ctx context.Context, tx Transaction) (int64, error)
	Create(ctx context.Context, tx Transaction, voucher *domain.Voucher) error
	GetByID(ctx context.Context, id string) (*domain.Voucher, error)
	GetByNumber(ctx context.Context, number string) (*domain.Voucher, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Voucher, error)
	MarkPosted(ctx context.Context, tx Transaction, id string, postedAt time.Time) error
	UpdateStatus(ctx context.Context, tx Transaction, id string, status domain.VoucherStatus, supersededBy string, updatedAt time.Time) error
	ListSupersededBy(ctx context.Context, replacementID string) ([]*domain.Voucher, error)
	ListByPeriod(ctx context.Context, filter VoucherFilter) ([]*VoucherListItem, error)
}

// JournalEntryRepository defines data access for journal entries.
type JournalEntryRepository interface {
	Create(ctx context.Context, tx Transaction, entry *domain.JournalEntry) error
	ListByVoucher(ctx context.Context, voucherID string) ([]*domain.JournalEntry, error)
	ListByVoucherTx(ctx context.Context, tx Transaction, voucherID string) ([]*domain.JournalEntry, error)
}

// AnnotationRepository defines append-only access to voucher annotations.
type AnnotationRepository interface {
	Create(ctx context.Context, tx Transaction, annotation *domain.Annotation) error
	// ListByVoucher returns annotations newest first.
	ListByVoucher(ctx context.Context, voucherID string) ([]*domain.Annotation, error)
	// ListReferencing returns annotations on other vouchers pointing at voucherID.
	ListReferencing(ctx context.Context, voucherID string) ([]*domain.Annotation, error)
}

// IdempotencyRepository persists entry fingerprints.
type IdempotencyRepository interface {
	// Find returns nil without error when no record exists.
	Find(ctx context.Context, tx Transaction, hash string) (*domain.IdempotencyRecord, error)
	Save(ctx context.Context, tx Transaction, record *domain.IdempotencyRecord) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// FingerprintCache is an optional fast path in front of IdempotencyRepository.
type FingerprintCache interface {
	// Get returns "" without error on a miss.
	Get(ctx context.Context, hash string) (string, error)
	Set(ctx context.Context, hash, entryID string, ttl time.Duration) error
}

// TOTPRepository defines data access for secrets and rate-limit state.
type TOTPRepository interface {
	// GetSecret returns domain.ErrNoTOTPConfigured when no active secret exists.
	GetSecret(ctx context.Context, tx Transaction, userID string) (*domain.TOTPSecret, error)
	SaveSecret(ctx context.Context, tx Transaction, secret *domain.TOTPSecret) error
	// ConsumeBackupCode removes codeHash from the user's set in a single
	// conditional update and reports whether it was present.
	ConsumeBackupCode(ctx context.Context, tx Transaction, userID, codeHash string) (bool, error)
	ReplaceBackupCodes(ctx context.Context, tx Transaction, userID string, hashes []string) error
	TouchLastUsed(ctx context.Context, tx Transaction, userID string, at time.Time) error
	// GetRateLimitForUpdate locks the user's row, creating it when missing.
	GetRateLimitForUpdate(ctx context.Context, tx Transaction, userID string) (*domain.RateLimitState, error)
	SaveRateLimit(ctx context.Context, tx Transaction, state *domain.RateLimitState) error
}

// VerificationLogRepository defines access to the gate's audit trail.
type VerificationLogRepository interface {
	Create(ctx context.Context, tx Transaction, log *domain.VerificationLog) error
	// GetByIDForUpdate returns domain.ErrVerificationRequired when missing.
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.VerificationLog, error)
	MarkConsumed(ctx context.Context, tx Transaction, id string, at time.Time) error
	ListByUser(ctx context.Context, userID string, since time.Time) ([]*domain.VerificationLog, error)
	ListByIDs(ctx context.Context, ids []string) ([]*domain.VerificationLog, error)
	ListByVoucher(ctx context.Context, voucherID string) ([]*domain.VerificationLog, error)
	CountConsumed(ctx context.Context) (int, error)
}

// ReportRepository provides read-only aggregates over valid postings.
type ReportRepository interface {
	// AccountActivity folds entries of posted, non-superseded, non-void
	// vouchers dated up to and including to; amounts dated before from are
	// opening figures.
	AccountActivity(ctx context.Context, from, to time.Time) ([]domain.AccountActivity, error)
	// AccountPostings lists the valid postings on one account dated within
	// the period, ordered by voucher date then number.
	AccountPostings(ctx context.Context, accountNumber string, from, to time.Time) ([]domain.LedgerPosting, error)
	VoucherCounts(ctx context.Context) (total, inactive int, err error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation on transient store conflicts.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

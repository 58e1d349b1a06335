package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/verifikat/internal/domain"
)

// IdempotencyGuard short-circuits repeated journal entry submissions within a
// time window. PostgreSQL is the source of truth; the cache only saves a read.
type IdempotencyGuard struct {
	repo   IdempotencyRepository
	cache  FingerprintCache
	window time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// NewIdempotencyGuard creates a guard. cache may be nil.
func NewIdempotencyGuard(repo IdempotencyRepository, cache FingerprintCache, window time.Duration, logger zerolog.Logger) *IdempotencyGuard {
	if window <= 0 {
		window = DefaultIdempotencyWindow
	}
	return &IdempotencyGuard{
		repo:   repo,
		cache:  cache,
		window: window,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (g *IdempotencyGuard) SetClock(now func() time.Time) {
	g.now = now
}

// Window returns the deduplication window.
func (g *IdempotencyGuard) Window() time.Duration {
	return g.window
}

// Fingerprint returns the digest of a proposed entry.
func (g *IdempotencyGuard) Fingerprint(voucherID, accountNumber, description string, debit, credit decimal.Decimal, reference string) string {
	return domain.Fingerprint(voucherID, accountNumber, description, debit, credit, reference)
}

// Check returns the entry id recorded for hash, or "" when none is live.
// The second return reports whether the answer came from the cache.
func (g *IdempotencyGuard) Check(ctx context.Context, tx Transaction, hash string) (string, bool, error) {
	if g.cache != nil {
		entryID, err := g.cache.Get(ctx, hash)
		if err != nil {
			g.logger.Warn().Err(err).Str("hash", hash).Msg("fingerprint cache lookup failed")
		} else if entryID != "" {
			return entryID, true, nil
		}
	}

	record, err := g.repo.Find(ctx, tx, hash)
	if err != nil {
		return "", false, err
	}
	if record == nil || record.IsExpired(g.now()) {
		return "", false, nil
	}

	return record.EntryID, false, nil
}

// Record stores hash with an expiry of now plus the window.
func (g *IdempotencyGuard) Record(ctx context.Context, tx Transaction, hash, entryID, voucherID, accountNumber string) error {
	now := g.now()
	return g.repo.Save(ctx, tx, &domain.IdempotencyRecord{
		Hash:          hash,
		EntryID:       entryID,
		VoucherID:     voucherID,
		AccountNumber: accountNumber,
		CreatedAt:     now,
		ExpiresAt:     now.Add(g.window),
	})
}

// Remember populates the cache after the recording transaction committed.
func (g *IdempotencyGuard) Remember(ctx context.Context, hash, entryID string) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Set(ctx, hash, entryID, g.window); err != nil {
		g.logger.Warn().Err(err).Str("hash", hash).Msg("fingerprint cache write failed")
	}
}

// Sweep deletes records that expired before now.
func (g *IdempotencyGuard) Sweep(ctx context.Context) (int64, error) {
	return g.repo.DeleteExpired(ctx, g.now())
}

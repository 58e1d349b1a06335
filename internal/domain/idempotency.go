package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// IdempotencyRecord maps an entry fingerprint to the entry it produced.
type IdempotencyRecord struct {
	Hash          string
	EntryID       string
	VoucherID     string
	AccountNumber string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// IsExpired reports whether the record no longer deduplicates at now.
func (r *IdempotencyRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Fingerprint digests the normalised fields of a journal entry request.
// Amounts are fixed to two decimals so 100 and 100.00 collide.
func Fingerprint(voucherID, accountNumber, description string, debit, credit decimal.Decimal, reference string) string {
	payload := fmt.Sprintf("%s:%s:%s:%s:%s:%s",
		voucherID, accountNumber, description, debit.StringFixed(2), credit.StringFixed(2), reference)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])[:16]
}

package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultIdempotencyWindow absorbs client retries of the same call, not
	// legitimately repeated events minutes apart.
	DefaultIdempotencyWindow = 30 * time.Second

	// SystemAuthor is recorded when no author is supplied.
	SystemAuthor = "system"
)

// Default BAS account numbers.
const (
	DefaultExpenseAccount   = "6110"
	DefaultInputVATAccount  = "2640"
	DefaultRevenueAccount   = "3001"
	DefaultOutputVATAccount = "2610"
	DefaultRoundingAccount  = "3740"
)

// DefaultWholeKronaAccounts are tax settlement accounts reported in whole kronor.
var DefaultWholeKronaAccounts = []string{"2510", "2518", "2650", "2710", "2730"}

// OutputVATAccounts and InputVATAccounts drive the VAT report.
var (
	OutputVATAccounts = []string{"2610", "2620", "2630", "2650"}
	InputVATAccounts  = []string{"2640", "2645"}
)

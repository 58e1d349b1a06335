package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/verifikat/internal/domain"
	"github.com/iho/verifikat/internal/infrastructure/metrics"
)

// LedgerConfig carries the chart-of-accounts numbers the core needs.
type LedgerConfig struct {
	ExpenseAccount     string
	InputVATAccount    string
	RevenueAccount     string
	OutputVATAccount   string
	RoundingAccount    string
	WholeKronaAccounts []string
}

// DefaultLedgerConfig returns the BAS defaults.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		ExpenseAccount:     DefaultExpenseAccount,
		InputVATAccount:    DefaultInputVATAccount,
		RevenueAccount:     DefaultRevenueAccount,
		OutputVATAccount:   DefaultOutputVATAccount,
		RoundingAccount:    DefaultRoundingAccount,
		WholeKronaAccounts: DefaultWholeKronaAccounts,
	}
}

// LedgerUseCase creates vouchers, appends entries and posts balances.
type LedgerUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	voucherRepo VoucherRepository
	entryRepo   JournalEntryRepository
	guard       *IdempotencyGuard
	retrier     Retrier
	idGen       IDGenerator
	cfg         LedgerConfig
	wholeKrona  map[string]bool
	logger      zerolog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewLedgerUseCase creates a new LedgerUseCase. retrier and m may be nil.
func NewLedgerUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	voucherRepo VoucherRepository,
	entryRepo JournalEntryRepository,
	guard *IdempotencyGuard,
	retrier Retrier,
	idGen IDGenerator,
	cfg LedgerConfig,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *LedgerUseCase {
	wholeKrona := make(map[string]bool, len(cfg.WholeKronaAccounts))
	for _, n := range cfg.WholeKronaAccounts {
		wholeKrona[strings.TrimSpace(n)] = true
	}

	return &LedgerUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		voucherRepo: voucherRepo,
		entryRepo:   entryRepo,
		guard:       guard,
		retrier:     retrier,
		idGen:       idGen,
		cfg:         cfg,
		wholeKrona:  wholeKrona,
		logger:      logger,
		metrics:     m,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (uc *LedgerUseCase) SetClock(now func() time.Time) {
	uc.now = now
}

// CreateVoucherInput represents input for creating a voucher.
type CreateVoucherInput struct {
	Date        *time.Time
	Description string
	Type        domain.VoucherType
	TotalAmount decimal.Decimal
	SourceType  string
	SourceID    string
	Reference   string
}

// AddJournalEntryInput represents one debit or credit line.
type AddJournalEntryInput struct {
	VoucherID     string
	AccountNumber string
	Description   string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	Reference     string
}

// EntryResult is the outcome of adding a journal entry.
type EntryResult struct {
	EntryID   string
	Duplicate bool
}

// AddVATEntriesInput describes a VAT-inclusive amount to split.
type AddVATEntriesInput struct {
	VoucherID       string
	GrossAmount     decimal.Decimal
	VATRate         decimal.Decimal
	NetAccount      string
	VATAccount      string
	NetDescription  string
	VATDescription  string
	TransactionType domain.TransactionType
	Reference       string
}

// VATResult reports the split and the entries it produced.
type VATResult struct {
	NetAmount       decimal.Decimal
	VATAmount       decimal.Decimal
	VATTheoretical  decimal.Decimal
	RoundingDiff    decimal.Decimal
	HasRounding     bool
	PostedNetAmount decimal.Decimal
	RoundingAmount  decimal.Decimal
	Entries         []EntryResult
}

// CreateVoucher assigns the next voucher number and stores an empty voucher.
func (uc *LedgerUseCase) CreateVoucher(ctx context.Context, input CreateVoucherInput) (*domain.Voucher, error) {
	voucherType, err := domain.ParseVoucherType(string(input.Type))
	if err != nil {
		return nil, err
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, fmt.Errorf("%w: voucher description is required", domain.ErrInvalidEntry)
	}
	if input.TotalAmount.IsNegative() {
		return nil, fmt.Errorf("%w: total amount %s", domain.ErrInvalidAmount, input.TotalAmount)
	}

	now := uc.now()
	date := now.Truncate(24 * time.Hour)
	if input.Date != nil {
		date = input.Date.UTC().Truncate(24 * time.Hour)
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	seq, err := uc.voucherRepo.NextNumber(txCtx, tx)
	if err != nil {
		return nil, err
	}

	voucher := &domain.Voucher{
		ID:          uc.idGen.Generate(),
		Number:      domain.FormatVoucherNumber(seq),
		Date:        date,
		Description: description,
		Type:        voucherType,
		TotalAmount: input.TotalAmount,
		SourceType:  input.SourceType,
		SourceID:    input.SourceID,
		Reference:   input.Reference,
		Status:      domain.VoucherStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.voucherRepo.Create(txCtx, tx, voucher); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.VouchersCreated.WithLabelValues(string(voucherType)).Inc()
	}
	uc.logger.Info().Str("voucher_id", voucher.ID).Str("number", voucher.Number).Str("type", string(voucherType)).Msg("voucher created")

	return voucher, nil
}

// AddJournalEntry appends one entry. An identical submission within the
// idempotency window returns the first entry's id instead of a new row.
func (uc *LedgerUseCase) AddJournalEntry(ctx context.Context, input AddJournalEntryInput) (*EntryResult, error) {
	if err := uc.validateEntry(input.AccountNumber, input.Debit, input.Credit); err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	voucher, err := uc.voucherRepo.GetByIDForUpdate(txCtx, tx, input.VoucherID)
	if err != nil {
		return nil, err
	}

	result, hash, err := uc.addEntryTx(txCtx, tx, voucher, input)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	uc.afterEntries(ctx, map[string]string{hash: result.EntryID}, []EntryResult{*result})

	return result, nil
}

// AddVATEntries splits a gross amount into net, whole-krona VAT and, when
// needed, a rounding leg, and appends them to the voucher in one transaction.
func (uc *LedgerUseCase) AddVATEntries(ctx context.Context, input AddVATEntriesInput) (*VATResult, error) {
	txType := input.TransactionType
	if txType == "" {
		txType = domain.TransactionTypeExpense
	}
	if txType != domain.TransactionTypeExpense && txType != domain.TransactionTypeRevenue {
		return nil, fmt.Errorf("%w: unknown transaction type %q", domain.ErrInvalidEntry, txType)
	}

	netAccount, vatAccount := input.NetAccount, input.VATAccount
	if txType == domain.TransactionTypeExpense {
		netAccount = firstNonEmpty(netAccount, uc.cfg.ExpenseAccount)
		vatAccount = firstNonEmpty(vatAccount, uc.cfg.InputVATAccount)
	} else {
		netAccount = firstNonEmpty(netAccount, uc.cfg.RevenueAccount)
		vatAccount = firstNonEmpty(vatAccount, uc.cfg.OutputVATAccount)
	}

	split, err := domain.SplitVAT(domain.VATSplitInput{
		Gross:           input.GrossAmount,
		Rate:            input.VATRate,
		TransactionType: txType,
		NetAccount:      netAccount,
		VATAccount:      vatAccount,
		RoundingAccount: uc.cfg.RoundingAccount,
		NetDescription:  firstNonEmpty(input.NetDescription, "Net amount"),
		VATDescription:  firstNonEmpty(input.VATDescription, fmt.Sprintf("VAT %s%%", input.VATRate.Shift(2).String())),
	})
	if err != nil {
		return nil, err
	}

	for _, leg := range split.Legs {
		if err := uc.validateEntry(leg.AccountNumber, leg.Debit(), leg.Credit()); err != nil {
			return nil, err
		}
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	voucher, err := uc.voucherRepo.GetByIDForUpdate(txCtx, tx, input.VoucherID)
	if err != nil {
		return nil, err
	}

	hashes := make(map[string]string, len(split.Legs))
	entries := make([]EntryResult, 0, len(split.Legs))
	for _, leg := range split.Legs {
		result, hash, err := uc.addEntryTx(txCtx, tx, voucher, AddJournalEntryInput{
			VoucherID:     voucher.ID,
			AccountNumber: leg.AccountNumber,
			Description:   leg.Description,
			Debit:         leg.Debit(),
			Credit:        leg.Credit(),
			Reference:     input.Reference,
		})
		if err != nil {
			return nil, fmt.Errorf("%s leg: %w", leg.Role, err)
		}
		hashes[hash] = result.EntryID
		entries = append(entries, *result)
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	uc.afterEntries(ctx, hashes, entries)
	if split.HasRounding && uc.metrics != nil {
		uc.metrics.VATRoundingLegs.Inc()
	}

	return &VATResult{
		NetAmount:       split.NetTheoretical,
		VATAmount:       split.VATAmount,
		VATTheoretical:  split.VATTheoretical,
		RoundingDiff:    split.RoundingDiff,
		HasRounding:     split.HasRounding,
		PostedNetAmount: split.PostedNet,
		RoundingAmount:  split.RoundingAmount,
		Entries:         entries,
	}, nil
}

// PostVoucher applies a balanced voucher to account balances and marks it
// posted. Balance updates and the posted flag commit together.
func (uc *LedgerUseCase) PostVoucher(ctx context.Context, voucherID string) (*domain.Voucher, error) {
	start := time.Now()
	var posted *domain.Voucher

	err := runWithRetry(ctx, uc.retrier, func() error {
		v, err := uc.postVoucher(ctx, voucherID)
		if err != nil {
			return err
		}
		posted = v
		return nil
	})
	if err != nil {
		if uc.metrics != nil {
			uc.metrics.RecordPostingError(domain.ErrorCode(err))
		}
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.VouchersPosted.Inc()
		uc.metrics.PostingDuration.Observe(time.Since(start).Seconds())
	}
	uc.logger.Info().Str("voucher_id", posted.ID).Str("number", posted.Number).Msg("voucher posted")

	return posted, nil
}

func (uc *LedgerUseCase) postVoucher(ctx context.Context, voucherID string) (*domain.Voucher, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	voucher, err := uc.voucherRepo.GetByIDForUpdate(txCtx, tx, voucherID)
	if err != nil {
		return nil, err
	}
	if err := voucher.CanAcceptEntries(); err != nil {
		return nil, err
	}

	entries, err := uc.entryRepo.ListByVoucherTx(txCtx, tx, voucher.ID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrVoucherEmpty, voucher.Number)
	}
	if err := domain.CheckBalance(voucher.ID, entries).Validate(); err != nil {
		return nil, err
	}

	now := uc.now()
	if err := applyMovements(txCtx, tx, uc.accountRepo, entries, false, now); err != nil {
		return nil, err
	}

	if err := uc.voucherRepo.MarkPosted(txCtx, tx, voucher.ID, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	voucher.IsPosted = true
	voucher.PostedAt = &now
	voucher.UpdatedAt = now

	return voucher, nil
}

// ValidateVoucherBalance sums the voucher's entries and returns
// domain.ErrUnbalancedVoucher when they differ by more than the tolerance.
func (uc *LedgerUseCase) ValidateVoucherBalance(ctx context.Context, voucherID string) (*domain.BalanceCheck, error) {
	voucher, err := uc.voucherRepo.GetByID(ctx, voucherID)
	if err != nil {
		return nil, err
	}

	entries, err := uc.entryRepo.ListByVoucher(ctx, voucher.ID)
	if err != nil {
		return nil, err
	}

	check := domain.CheckBalance(voucher.ID, entries)
	return &check, check.Validate()
}

// GetVoucher resolves a voucher by id or by its V-number.
func (uc *LedgerUseCase) GetVoucher(ctx context.Context, ref string) (*domain.Voucher, error) {
	return resolveVoucher(ctx, uc.voucherRepo, ref)
}

// ListEntries returns a voucher's journal entries.
func (uc *LedgerUseCase) ListEntries(ctx context.Context, ref string) ([]*domain.JournalEntry, error) {
	voucher, err := uc.GetVoucher(ctx, ref)
	if err != nil {
		return nil, err
	}
	return uc.entryRepo.ListByVoucher(ctx, voucher.ID)
}

// GetAccount returns an account by number with its running balance.
func (uc *LedgerUseCase) GetAccount(ctx context.Context, number string) (*domain.Account, error) {
	return uc.accountRepo.GetByNumber(ctx, strings.TrimSpace(number))
}

// ListAccounts returns the chart of accounts.
func (uc *LedgerUseCase) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	return uc.accountRepo.List(ctx)
}

func (uc *LedgerUseCase) validateEntry(accountNumber string, debit, credit decimal.Decimal) error {
	if strings.TrimSpace(accountNumber) == "" {
		return fmt.Errorf("%w: account number is required", domain.ErrInvalidEntry)
	}
	if err := domain.ValidateAmounts(debit, credit); err != nil {
		return err
	}
	return domain.ValidateWholeKrona(accountNumber, debit.Add(credit), uc.wholeKrona)
}

// addEntryTx runs inside a transaction holding the voucher row lock, which
// serialises identical concurrent submissions.
func (uc *LedgerUseCase) addEntryTx(ctx context.Context, tx Transaction, voucher *domain.Voucher, input AddJournalEntryInput) (*EntryResult, string, error) {
	hash := uc.guard.Fingerprint(voucher.ID, input.AccountNumber, input.Description, input.Debit, input.Credit, input.Reference)

	existing, _, err := uc.guard.Check(ctx, tx, hash)
	if err != nil {
		return nil, "", err
	}
	if existing != "" {
		return &EntryResult{EntryID: existing, Duplicate: true}, hash, nil
	}

	if err := voucher.CanAcceptEntries(); err != nil {
		return nil, "", err
	}

	account, err := uc.accountRepo.GetByNumberTx(ctx, tx, input.AccountNumber)
	if err != nil {
		return nil, "", fmt.Errorf("%w: account %s: %w", domain.ErrInvalidEntry, input.AccountNumber, err)
	}
	if !account.IsActive {
		return nil, "", fmt.Errorf("%w: account %s: %w", domain.ErrInvalidEntry, input.AccountNumber, domain.ErrAccountInactive)
	}

	entry := &domain.JournalEntry{
		ID:            uc.idGen.Generate(),
		VoucherID:     voucher.ID,
		AccountID:     account.ID,
		AccountNumber: account.Number,
		Description:   input.Description,
		Debit:         input.Debit,
		Credit:        input.Credit,
		Reference:     input.Reference,
		CreatedAt:     uc.now(),
	}
	if err := uc.entryRepo.Create(ctx, tx, entry); err != nil {
		return nil, "", err
	}

	if err := uc.guard.Record(ctx, tx, hash, entry.ID, voucher.ID, account.Number); err != nil {
		return nil, "", err
	}

	return &EntryResult{EntryID: entry.ID}, hash, nil
}

func (uc *LedgerUseCase) afterEntries(ctx context.Context, hashes map[string]string, results []EntryResult) {
	for hash, entryID := range hashes {
		uc.guard.Remember(ctx, hash, entryID)
	}
	if uc.metrics == nil {
		return
	}
	for _, r := range results {
		if r.Duplicate {
			uc.metrics.IdempotentReplays.WithLabelValues("store").Inc()
		} else {
			uc.metrics.EntriesCreated.Inc()
		}
	}
}

// applyMovements adds (or with reverse, subtracts) each account's aggregated
// movement. Accounts are updated in sorted id order to avoid deadlocks.
func applyMovements(ctx context.Context, tx Transaction, accountRepo AccountRepository, entries []*domain.JournalEntry, reverse bool, now time.Time) error {
	movements := make(map[string]*domain.AccountMovement)
	for _, e := range entries {
		m, ok := movements[e.AccountID]
		if !ok {
			m = &domain.AccountMovement{AccountID: e.AccountID}
			movements[e.AccountID] = m
		}
		m.Debit = m.Debit.Add(e.Debit)
		m.Credit = m.Credit.Add(e.Credit)
	}

	ids := make([]string, 0, len(movements))
	for id := range movements {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		account, err := accountRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		m := movements[id]
		delta := account.Type.BalanceChange(m.Debit, m.Credit)
		if reverse {
			delta = delta.Neg()
		}
		if delta.IsZero() {
			continue
		}
		if err := accountRepo.IncrementBalance(ctx, tx, id, delta, now); err != nil {
			return err
		}
	}

	return nil
}

func resolveVoucher(ctx context.Context, repo VoucherRepository, ref string) (*domain.Voucher, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.ErrVoucherNotFound
	}
	if seq, err := domain.ParseVoucherNumber(ref); err == nil {
		return repo.GetByNumber(ctx, domain.FormatVoucherNumber(seq))
	}
	return repo.GetByID(ctx, ref)
}

func runWithRetry(ctx context.Context, r Retrier, op func() error) error {
	if r == nil {
		return op()
	}
	return r.Retry(ctx, op)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/verifikat/internal/domain"
	"github.com/iho/verifikat/internal/usecase"
)

// MockAccountRepository is a mock implementation of AccountRepository.
type MockAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account

	CreateFunc           func(ctx context.Context, account *domain.Account) error
	GetByIDFunc          func(ctx context.Context, id string) (*domain.Account, error)
	GetByNumberFunc      func(ctx context.Context, number string) (*domain.Account, error)
	IncrementBalanceFunc func(ctx context.Context, tx usecase.Transaction, id string, delta decimal.Decimal, updatedAt time.Time) error
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{
		accounts: make(map[string]*domain.Account),
	}
}

// Add seeds an active account with a zero balance and returns it.
func (m *MockAccountRepository) Add(number, name string, t domain.AccountType) *domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := &domain.Account{ID: "acc-" + number, Number: number, Name: name, Type: t, IsActive: true}
	m.accounts[acc.ID] = acc
	return acc
}

// Balance returns the stored balance of an account number.
func (m *MockAccountRepository) Balance(number string) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, acc := range m.accounts {
		if acc.Number == number {
			return acc.Balance
		}
	}
	return decimal.Zero
}

func (m *MockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		if acc.Number == account.Number {
			return domain.ErrAccountExists
		}
	}
	cp := *account
	m.accounts[account.ID] = &cp
	return nil
}

func (m *MockAccountRepository) SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	acc.IsActive = active
	acc.UpdatedAt = updatedAt
	return nil
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if acc, ok := m.accounts[id]; ok {
		cp := *acc
		return &cp, nil
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	if m.GetByNumberFunc != nil {
		return m.GetByNumberFunc(ctx, number)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, acc := range m.accounts {
		if acc.Number == number {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByNumberTx(ctx context.Context, tx usecase.Transaction, number string) (*domain.Account, error) {
	return m.GetByNumber(ctx, number)
}

func (m *MockAccountRepository) IncrementBalance(ctx context.Context, tx usecase.Transaction, id string, delta decimal.Decimal, updatedAt time.Time) error {
	if m.IncrementBalanceFunc != nil {
		return m.IncrementBalanceFunc(ctx, tx, id, delta, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	acc.Balance = acc.Balance.Add(delta)
	acc.UpdatedAt = updatedAt
	return nil
}

func (m *MockAccountRepository) List(ctx context.Context) ([]*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	accounts := make([]*domain.Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		cp := *acc
		accounts = append(accounts, &cp)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Number < accounts[j].Number })
	return accounts, nil
}

// MockVoucherRepository is a mock implementation of VoucherRepository.
type MockVoucherRepository struct {
	mu       sync.RWMutex
	vouchers map[string]*domain.Voucher
	seq      int64

	CreateFunc       func(ctx context.Context, tx usecase.Transaction, voucher *domain.Voucher) error
	MarkPostedFunc   func(ctx context.Context, tx usecase.Transaction, id string, postedAt time.Time) error
	ListByPeriodFunc func(ctx context.Context, filter usecase.VoucherFilter) ([]*usecase.VoucherListItem, error)
}

func NewMockVoucherRepository() *MockVoucherRepository {
	return &MockVoucherRepository{
		vouchers: make(map[string]*domain.Voucher),
	}
}

func (m *MockVoucherRepository) NextNumber(ctx context.Context, tx usecase.Transaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq, nil
}

func (m *MockVoucherRepository) Create(ctx context.Context, tx usecase.Transaction, voucher *domain.Voucher) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, voucher)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *voucher
	m.vouchers[voucher.ID] = &cp
	return nil
}

func (m *MockVoucherRepository) GetByID(ctx context.Context, id string) (*domain.Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.vouchers[id]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, domain.ErrVoucherNotFound
}

func (m *MockVoucherRepository) GetByNumber(ctx context.Context, number string) (*domain.Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.vouchers {
		if v.Number == number {
			cp := *v
			return &cp, nil
		}
	}
	return nil, domain.ErrVoucherNotFound
}

func (m *MockVoucherRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Voucher, error) {
	return m.GetByID(ctx, id)
}

func (m *MockVoucherRepository) MarkPosted(ctx context.Context, tx usecase.Transaction, id string, postedAt time.Time) error {
	if m.MarkPostedFunc != nil {
		return m.MarkPostedFunc(ctx, tx, id, postedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vouchers[id]
	if !ok {
		return domain.ErrVoucherNotFound
	}
	v.IsPosted = true
	v.PostedAt = &postedAt
	v.UpdatedAt = postedAt
	return nil
}

func (m *MockVoucherRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.VoucherStatus, supersededBy string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vouchers[id]
	if !ok {
		return domain.ErrVoucherNotFound
	}
	v.Status = status
	v.SupersededBy = supersededBy
	v.UpdatedAt = updatedAt
	return nil
}

func (m *MockVoucherRepository) ListSupersededBy(ctx context.Context, replacementID string) ([]*domain.Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var vouchers []*domain.Voucher
	for _, v := range m.vouchers {
		if v.SupersededBy == replacementID {
			cp := *v
			vouchers = append(vouchers, &cp)
		}
	}
	sort.Slice(vouchers, func(i, j int) bool { return vouchers[i].Number < vouchers[j].Number })
	return vouchers, nil
}

func (m *MockVoucherRepository) ListByPeriod(ctx context.Context, filter usecase.VoucherFilter) ([]*usecase.VoucherListItem, error) {
	if m.ListByPeriodFunc != nil {
		return m.ListByPeriodFunc(ctx, filter)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var items []*usecase.VoucherListItem
	for _, v := range m.vouchers {
		if v.Date.Before(filter.From) || (!filter.To.IsZero() && v.Date.After(filter.To)) {
			continue
		}
		if !filter.IncludeSuperseded && v.Status == domain.VoucherStatusSuperseded {
			continue
		}
		if filter.Type != "" && v.Type != filter.Type {
			continue
		}
		cp := *v
		items = append(items, &usecase.VoucherListItem{Voucher: &cp})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Voucher.Number < items[j].Voucher.Number })
	return items, nil
}

// MockJournalEntryRepository is a mock implementation of JournalEntryRepository.
type MockJournalEntryRepository struct {
	mu      sync.RWMutex
	entries []*domain.JournalEntry

	CreateFunc func(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error
}

func NewMockJournalEntryRepository() *MockJournalEntryRepository {
	return &MockJournalEntryRepository{}
}

func (m *MockJournalEntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *MockJournalEntryRepository) ListByVoucher(ctx context.Context, voucherID string) ([]*domain.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []*domain.JournalEntry
	for _, e := range m.entries {
		if e.VoucherID == voucherID {
			cp := *e
			entries = append(entries, &cp)
		}
	}
	return entries, nil
}

func (m *MockJournalEntryRepository) ListByVoucherTx(ctx context.Context, tx usecase.Transaction, voucherID string) ([]*domain.JournalEntry, error) {
	return m.ListByVoucher(ctx, voucherID)
}

// Count returns the number of stored entries.
func (m *MockJournalEntryRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// MockAnnotationRepository is a mock implementation of AnnotationRepository.
type MockAnnotationRepository struct {
	mu          sync.RWMutex
	annotations []*domain.Annotation
}

func NewMockAnnotationRepository() *MockAnnotationRepository {
	return &MockAnnotationRepository{}
}

func (m *MockAnnotationRepository) Create(ctx context.Context, tx usecase.Transaction, annotation *domain.Annotation) error {
	if err := annotation.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *annotation
	m.annotations = append(m.annotations, &cp)
	return nil
}

func (m *MockAnnotationRepository) ListByVoucher(ctx context.Context, voucherID string) ([]*domain.Annotation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Annotation
	for i := len(m.annotations) - 1; i >= 0; i-- {
		if a := m.annotations[i]; a.VoucherID == voucherID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockAnnotationRepository) ListReferencing(ctx context.Context, voucherID string) ([]*domain.Annotation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Annotation
	for _, a := range m.annotations {
		if a.RelatedVoucherID == voucherID && a.VoucherID != voucherID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Count returns the number of stored annotations.
func (m *MockAnnotationRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.annotations)
}

// MockIdempotencyRepository is a mock implementation of IdempotencyRepository.
type MockIdempotencyRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.IdempotencyRecord

	FindFunc func(ctx context.Context, tx usecase.Transaction, hash string) (*domain.IdempotencyRecord, error)
}

func NewMockIdempotencyRepository() *MockIdempotencyRepository {
	return &MockIdempotencyRepository{
		records: make(map[string]*domain.IdempotencyRecord),
	}
}

func (m *MockIdempotencyRepository) Find(ctx context.Context, tx usecase.Transaction, hash string) (*domain.IdempotencyRecord, error) {
	if m.FindFunc != nil {
		return m.FindFunc(ctx, tx, hash)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.records[hash]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (m *MockIdempotencyRepository) Save(ctx context.Context, tx usecase.Transaction, record *domain.IdempotencyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *record
	m.records[record.Hash] = &cp
	return nil
}

func (m *MockIdempotencyRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for hash, r := range m.records {
		if r.ExpiresAt.Before(before) {
			delete(m.records, hash)
			n++
		}
	}
	return n, nil
}

// MockTOTPRepository is a mock implementation of TOTPRepository.
type MockTOTPRepository struct {
	mu         sync.RWMutex
	secrets    map[string]*domain.TOTPSecret
	rateLimits map[string]*domain.RateLimitState
}

func NewMockTOTPRepository() *MockTOTPRepository {
	return &MockTOTPRepository{
		secrets:    make(map[string]*domain.TOTPSecret),
		rateLimits: make(map[string]*domain.RateLimitState),
	}
}

func (m *MockTOTPRepository) GetSecret(ctx context.Context, tx usecase.Transaction, userID string) (*domain.TOTPSecret, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.secrets[userID]
	if !ok || !s.IsActive {
		return nil, domain.ErrNoTOTPConfigured
	}
	cp := *s
	cp.BackupCodeHashes = append([]string(nil), s.BackupCodeHashes...)
	return &cp, nil
}

func (m *MockTOTPRepository) SaveSecret(ctx context.Context, tx usecase.Transaction, secret *domain.TOTPSecret) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *secret
	cp.BackupCodeHashes = append([]string(nil), secret.BackupCodeHashes...)
	m.secrets[secret.UserID] = &cp
	return nil
}

func (m *MockTOTPRepository) ConsumeBackupCode(ctx context.Context, tx usecase.Transaction, userID, codeHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.secrets[userID]
	if !ok {
		return false, nil
	}
	for i, h := range s.BackupCodeHashes {
		if h == codeHash {
			s.BackupCodeHashes = append(s.BackupCodeHashes[:i], s.BackupCodeHashes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MockTOTPRepository) ReplaceBackupCodes(ctx context.Context, tx usecase.Transaction, userID string, hashes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.secrets[userID]
	if !ok {
		return domain.ErrNoTOTPConfigured
	}
	s.BackupCodeHashes = append([]string(nil), hashes...)
	return nil
}

func (m *MockTOTPRepository) TouchLastUsed(ctx context.Context, tx usecase.Transaction, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.secrets[userID]; ok {
		s.LastUsedAt = &at
	}
	return nil
}

func (m *MockTOTPRepository) GetRateLimitForUpdate(ctx context.Context, tx usecase.Transaction, userID string) (*domain.RateLimitState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rateLimits[userID]
	if !ok {
		s = &domain.RateLimitState{UserID: userID}
		m.rateLimits[userID] = s
	}
	cp := *s
	return &cp, nil
}

func (m *MockTOTPRepository) SaveRateLimit(ctx context.Context, tx usecase.Transaction, state *domain.RateLimitState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.rateLimits[state.UserID] = &cp
	return nil
}

// BackupCodesLeft returns how many unused backup codes a user holds.
func (m *MockTOTPRepository) BackupCodesLeft(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.secrets[userID]; ok {
		return len(s.BackupCodeHashes)
	}
	return 0
}

// MockVerificationLogRepository is a mock implementation of VerificationLogRepository.
type MockVerificationLogRepository struct {
	mu   sync.RWMutex
	logs map[string]*domain.VerificationLog
}

func NewMockVerificationLogRepository() *MockVerificationLogRepository {
	return &MockVerificationLogRepository{
		logs: make(map[string]*domain.VerificationLog),
	}
}

func (m *MockVerificationLogRepository) Create(ctx context.Context, tx usecase.Transaction, log *domain.VerificationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *log
	m.logs[log.ID] = &cp
	return nil
}

func (m *MockVerificationLogRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.VerificationLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.logs[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, domain.ErrVerificationRequired
}

func (m *MockVerificationLogRepository) MarkConsumed(ctx context.Context, tx usecase.Transaction, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.logs[id]
	if !ok {
		return domain.ErrVerificationRequired
	}
	l.ConsumedAt = &at
	return nil
}

func (m *MockVerificationLogRepository) ListByUser(ctx context.Context, userID string, since time.Time) ([]*domain.VerificationLog, error) {
	return m.filter(func(l *domain.VerificationLog) bool {
		return l.UserID == userID && !l.CreatedAt.Before(since)
	}), nil
}

func (m *MockVerificationLogRepository) ListByIDs(ctx context.Context, ids []string) ([]*domain.VerificationLog, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return m.filter(func(l *domain.VerificationLog) bool { return want[l.ID] }), nil
}

func (m *MockVerificationLogRepository) ListByVoucher(ctx context.Context, voucherID string) ([]*domain.VerificationLog, error) {
	return m.filter(func(l *domain.VerificationLog) bool { return l.VoucherID == voucherID }), nil
}

func (m *MockVerificationLogRepository) CountConsumed(ctx context.Context) (int, error) {
	return len(m.filter(func(l *domain.VerificationLog) bool { return l.ConsumedAt != nil })), nil
}

// All returns every stored log row, newest first.
func (m *MockVerificationLogRepository) All() []*domain.VerificationLog {
	return m.filter(func(*domain.VerificationLog) bool { return true })
}

func (m *MockVerificationLogRepository) filter(keep func(*domain.VerificationLog) bool) []*domain.VerificationLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.VerificationLog
	for _, l := range m.logs {
		if keep(l) {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	return nil
}

// MockIDGenerator is a mock implementation of IDGenerator.
type MockIDGenerator struct {
	GenerateFunc func() string
	counter      int
	mu           sync.Mutex
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("mock-id-%03d", m.counter)
}

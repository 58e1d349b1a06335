package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/verifikat/internal/domain"
)

// AccountUseCase maintains the chart of accounts.
type AccountUseCase struct {
	accountRepo AccountRepository
	idGen       IDGenerator
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(accountRepo AccountRepository, idGen IDGenerator, logger zerolog.Logger) *AccountUseCase {
	return &AccountUseCase{
		accountRepo: accountRepo,
		idGen:       idGen,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	Number string
	Name   string
	Type   domain.AccountType
}

// CreateAccount adds an active account with a zero balance.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	number := strings.TrimSpace(input.Number)
	if err := domain.ValidateAccountNumber(number); err != nil {
		return nil, err
	}
	if err := domain.ValidateAccountName(input.Name); err != nil {
		return nil, err
	}
	if err := domain.ValidateAccountType(number, input.Type); err != nil {
		return nil, err
	}

	now := uc.now()
	account := &domain.Account{
		ID:        uc.idGen.Generate(),
		Number:    number,
		Name:      strings.TrimSpace(input.Name),
		Type:      input.Type,
		Balance:   decimal.Zero,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := uc.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	uc.logger.Info().Str("account", account.Number).Str("type", string(account.Type)).Msg("account created")
	return account, nil
}

// GetAccount retrieves an account by number.
func (uc *AccountUseCase) GetAccount(ctx context.Context, number string) (*domain.Account, error) {
	return uc.accountRepo.GetByNumber(ctx, strings.TrimSpace(number))
}

// ListAccounts returns the chart ordered by number. Inactive accounts are
// only included on request.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, includeInactive bool) ([]*domain.Account, error) {
	accounts, err := uc.accountRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if includeInactive {
		return accounts, nil
	}

	active := accounts[:0]
	for _, a := range accounts {
		if a.IsActive {
			active = append(active, a)
		}
	}
	return active, nil
}

// DeactivateAccount stops an account from receiving new entries. History
// and balance are kept; accounts are never deleted.
func (uc *AccountUseCase) DeactivateAccount(ctx context.Context, number string) (*domain.Account, error) {
	return uc.setActive(ctx, number, false)
}

// ReactivateAccount reverses DeactivateAccount.
func (uc *AccountUseCase) ReactivateAccount(ctx context.Context, number string) (*domain.Account, error) {
	return uc.setActive(ctx, number, true)
}

func (uc *AccountUseCase) setActive(ctx context.Context, number string, active bool) (*domain.Account, error) {
	account, err := uc.accountRepo.GetByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return nil, err
	}
	if account.IsActive == active {
		return account, nil
	}

	now := uc.now()
	if err := uc.accountRepo.SetActive(ctx, account.ID, active, now); err != nil {
		return nil, err
	}
	account.IsActive = active
	account.UpdatedAt = now

	uc.logger.Info().Str("account", account.Number).Bool("active", active).Msg("account status changed")
	return account, nil
}

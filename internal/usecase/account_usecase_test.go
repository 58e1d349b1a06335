package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/iho/verifikat/internal/domain"
	"github.com/iho/verifikat/internal/usecase"
	"github.com/iho/verifikat/internal/usecase/mocks"
)

func TestAccountUseCase_CreateAccount(t *testing.T) {
	tests := []struct {
		name       string
		input      usecase.CreateAccountInput
		setupMocks func(*mocks.MockAccountRepository, *mocks.MockIDGenerator)
		wantErr    error
	}{
		{
			name:  "successful account creation",
			input: usecase.CreateAccountInput{Number: " 5410 ", Name: "Förbrukningsinventarier", Type: domain.AccountTypeExpense},
			setupMocks: func(repo *mocks.MockAccountRepository, idGen *mocks.MockIDGenerator) {
				idGen.GenerateFunc = func() string { return "test-id-123" }
			},
		},
		{
			name:  "duplicate number",
			input: usecase.CreateAccountInput{Number: "1930", Name: "Bank", Type: domain.AccountTypeAsset},
			setupMocks: func(repo *mocks.MockAccountRepository, idGen *mocks.MockIDGenerator) {
				repo.Add("1930", "Företagskonto", domain.AccountTypeAsset)
			},
			wantErr: domain.ErrAccountExists,
		},
		{
			name:       "invalid number",
			input:      usecase.CreateAccountInput{Number: "930", Name: "Bank", Type: domain.AccountTypeAsset},
			setupMocks: func(*mocks.MockAccountRepository, *mocks.MockIDGenerator) {},
			wantErr:    domain.ErrInvalidAccountNumber,
		},
		{
			name:       "empty name",
			input:      usecase.CreateAccountInput{Number: "1940", Name: " ", Type: domain.AccountTypeAsset},
			setupMocks: func(*mocks.MockAccountRepository, *mocks.MockIDGenerator) {},
			wantErr:    domain.ErrInvalidAccountName,
		},
		{
			name:       "type contradicts class",
			input:      usecase.CreateAccountInput{Number: "3010", Name: "Försäljning", Type: domain.AccountTypeExpense},
			setupMocks: func(*mocks.MockAccountRepository, *mocks.MockIDGenerator) {},
			wantErr:    domain.ErrInvalidEntry,
		},
		{
			name:  "repository error",
			input: usecase.CreateAccountInput{Number: "1940", Name: "Bank 2", Type: domain.AccountTypeAsset},
			setupMocks: func(repo *mocks.MockAccountRepository, idGen *mocks.MockIDGenerator) {
				repo.CreateFunc = func(context.Context, *domain.Account) error {
					return errors.New("connection refused")
				}
			},
			wantErr: errors.New("any"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mocks.NewMockAccountRepository()
			idGen := mocks.NewMockIDGenerator()
			tt.setupMocks(repo, idGen)

			uc := usecase.NewAccountUseCase(repo, idGen, zerolog.Nop())
			account, err := uc.CreateAccount(context.Background(), tt.input)

			if tt.wantErr != nil {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if domain.IsClientError(tt.wantErr) && !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if account.ID != "test-id-123" {
				t.Errorf("expected ID test-id-123, got %s", account.ID)
			}
			if account.Number != "5410" {
				t.Errorf("expected trimmed number 5410, got %q", account.Number)
			}
			if !account.IsActive || !account.Balance.IsZero() {
				t.Errorf("expected active zero-balance account, got %+v", account)
			}
		})
	}
}

func TestAccountUseCase_ListAndDeactivate(t *testing.T) {
	ctx := context.Background()
	repo := mocks.NewMockAccountRepository()
	repo.Add("1930", "Företagskonto", domain.AccountTypeAsset)
	repo.Add("1910", "Kassa", domain.AccountTypeAsset)
	repo.Add("6110", "Kontorsmateriel", domain.AccountTypeExpense)

	uc := usecase.NewAccountUseCase(repo, mocks.NewMockIDGenerator(), zerolog.Nop())

	account, err := uc.DeactivateAccount(ctx, "1910")
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if account.IsActive {
		t.Error("expected account to be inactive")
	}

	active, err := uc.ListAccounts(ctx, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 2 || active[0].Number != "1930" || active[1].Number != "6110" {
		t.Errorf("unexpected active accounts: %v", active)
	}

	all, _ := uc.ListAccounts(ctx, true)
	if len(all) != 3 {
		t.Errorf("expected 3 accounts including inactive, got %d", len(all))
	}

	if _, err := uc.ReactivateAccount(ctx, "1910"); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	got, _ := uc.GetAccount(ctx, "1910")
	if !got.IsActive {
		t.Error("expected account to be active again")
	}

	if _, err := uc.DeactivateAccount(ctx, "9999"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccountUseCase_InactiveAccountRejectsEntries(t *testing.T) {
	f := newFixture(t)
	uc := usecase.NewAccountUseCase(f.accounts, f.idGen, zerolog.Nop())
	if _, err := uc.DeactivateAccount(context.Background(), "1910"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	v := f.createVoucher(t, "Cash purchase")
	_, err := f.ledger.AddJournalEntry(context.Background(), usecase.AddJournalEntryInput{
		VoucherID:     v.ID,
		AccountNumber: "1910",
		Description:   "cash",
		Debit:         dec("0"),
		Credit:        dec("100"),
	})
	if !errors.Is(err, domain.ErrAccountInactive) {
		t.Errorf("expected ErrAccountInactive, got %v", err)
	}
}

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/verifikat/internal/domain"
	"github.com/iho/verifikat/internal/usecase"
	"github.com/iho/verifikat/internal/usecase/mocks"
)

func reconciliationAccounts(t *testing.T) *mocks.MockAccountRepository {
	t.Helper()
	accounts := mocks.NewMockAccountRepository()
	expense := accounts.Add("6110", "Kontorsmateriel", domain.AccountTypeExpense)
	bank := accounts.Add("1930", "Företagskonto", domain.AccountTypeAsset)
	accounts.Add("3001", "Försäljning 25%", domain.AccountTypeIncome)

	ctx := context.Background()
	require.NoError(t, accounts.IncrementBalance(ctx, nil, expense.ID, dec("500"), time.Now()))
	require.NoError(t, accounts.IncrementBalance(ctx, nil, bank.ID, dec("-500"), time.Now()))
	return accounts
}

func TestReconciliationUseCase_Consistent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockReportRepository(ctrl)
	repo.EXPECT().AccountActivity(gomock.Any(), gomock.Any(), gomock.Any()).Return([]domain.AccountActivity{
		{AccountNumber: "6110", AccountType: domain.AccountTypeExpense, PeriodDebits: dec("500")},
		{AccountNumber: "1930", AccountType: domain.AccountTypeAsset, PeriodCredits: dec("500")},
	}, nil).Times(2)

	uc := usecase.NewReconciliationUseCase(reconciliationAccounts(t), repo)

	report, err := uc.GenerateReconciliationReport(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalAccounts)
	assert.Equal(t, 3, report.ReconciledAccounts, "accounts without activity reconcile at zero")
	assert.Empty(t, report.Discrepancies)
	assert.True(t, report.LedgerConsistent)
	assert.Equal(t, "500", report.TotalDebits.String())
	assert.Equal(t, "500", report.TotalCredits.String())

	assert.NoError(t, uc.CheckLedgerConsistency(context.Background()))
}

func TestReconciliationUseCase_Drift(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockReportRepository(ctrl)
	repo.EXPECT().AccountActivity(gomock.Any(), gomock.Any(), gomock.Any()).Return([]domain.AccountActivity{
		{AccountNumber: "6110", AccountType: domain.AccountTypeExpense, PeriodDebits: dec("500")},
		{AccountNumber: "1930", AccountType: domain.AccountTypeAsset, PeriodCredits: dec("400")},
	}, nil).Times(2)

	uc := usecase.NewReconciliationUseCase(reconciliationAccounts(t), repo)

	report, err := uc.GenerateReconciliationReport(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Discrepancies, 1)
	d := report.Discrepancies[0]
	assert.Equal(t, "1930", d.AccountNumber)
	assert.Equal(t, "-500", d.RecordedBalance.String())
	assert.Equal(t, "-400", d.CalculatedBalance.String())
	assert.Equal(t, "-100", d.Difference.String())
	assert.False(t, report.LedgerConsistent)

	err = uc.CheckLedgerConsistency(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger inconsistency")
}

func TestReconciliationUseCase_StoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	storeErr := errors.New("connection reset")
	repo := mocks.NewMockReportRepository(ctrl)
	repo.EXPECT().AccountActivity(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, storeErr)

	uc := usecase.NewReconciliationUseCase(reconciliationAccounts(t), repo)

	_, err := uc.GenerateReconciliationReport(context.Background())
	assert.ErrorIs(t, err, storeErr)
}

package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/construction-backend/internal/models"
	"github.com/ignatzorin/construction-backend/internal/pkg/apperror"
)

type mockWalletRepo struct {
	mock.Mock
}

func (m *mockWalletRepo) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wallet), args.Error(1)
}

func (m *mockWalletRepo) Apply(ctx context.Context, userID uuid.UUID, txType string, delta float64, refType string, refID *uuid.UUID, description string) (*models.WalletTransaction, error) {
	args := m.Called(ctx, userID, txType, delta, refType, refID, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WalletTransaction), args.Error(1)
}

func (m *mockWalletRepo) ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	args := m.Called(ctx, walletID, limit, offset)
	return args.Get(0).([]models.WalletTransaction), args.Error(1)
}

func (m *mockWalletRepo) ListAllTransactions(ctx context.Context, walletID uuid.UUID) ([]models.WalletTransaction, error) {
	args := m.Called(ctx, walletID)
	return args.Get(0).([]models.WalletTransaction), args.Error(1)
}

func TestWalletService_Withdraw_NegativeDelta(t *testing.T) {
	repo := new(mockWalletRepo)
	svc := NewWalletService(repo)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("Apply", ctx, userID, models.WalletTxTypeWithdrawal, float64(-50000), "wallet", (*uuid.UUID)(nil), "вывод средств").
		Return(&models.WalletTransaction{ID: uuid.New(), Amount: -50000}, nil)

	tx, err := svc.Withdraw(ctx, userID, 50000)
	assert.NoError(t, err)
	assert.Equal(t, float64(-50000), tx.Amount)
	repo.AssertExpectations(t)
}

func TestWalletService_Withdraw_InvalidAmount(t *testing.T) {
	svc := NewWalletService(new(mockWalletRepo))

	_, err := svc.Withdraw(context.Background(), uuid.New(), 0)
	assert.Error(t, err)

	_, err = svc.Withdraw(context.Background(), uuid.New(), 100.25)
	assert.Error(t, err)
}

func TestWalletService_VerifyLedger_Consistent(t *testing.T) {
	repo := new(mockWalletRepo)
	svc := NewWalletService(repo)
	ctx := context.Background()
	userID := uuid.New()
	walletID := uuid.New()

	repo.On("GetOrCreate", ctx, userID).Return(&models.Wallet{ID: walletID, Balance: 70000}, nil)
	repo.On("ListAllTransactions", ctx, walletID).Return([]models.WalletTransaction{
		{ID: uuid.New(), Amount: 100000, BalanceBefore: 0, BalanceAfter: 100000},
		{ID: uuid.New(), Amount: -30000, BalanceBefore: 100000, BalanceAfter: 70000},
	}, nil)

	report, err := svc.VerifyLedger(ctx, userID)
	assert.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, float64(70000), report.ReplayedAmount)
	assert.Equal(t, 2, report.Transactions)
}

func TestWalletService_VerifyLedger_BrokenChain(t *testing.T) {
	repo := new(mockWalletRepo)
	svc := NewWalletService(repo)
	ctx := context.Background()
	userID := uuid.New()
	walletID := uuid.New()

	repo.On("GetOrCreate", ctx, userID).Return(&models.Wallet{ID: walletID, Balance: 70000}, nil)
	repo.On("ListAllTransactions", ctx, walletID).Return([]models.WalletTransaction{
		{ID: uuid.New(), Amount: 100000, BalanceBefore: 0, BalanceAfter: 100000},
		{ID: uuid.New(), Amount: -30000, BalanceBefore: 90000, BalanceAfter: 60000},
	}, nil)

	_, err := svc.VerifyLedger(ctx, userID)
	assert.Error(t, err)
	assert.True(t, apperror.IsInvariant(err))
}

func TestWalletService_VerifyLedger_BalanceMismatch(t *testing.T) {
	repo := new(mockWalletRepo)
	svc := NewWalletService(repo)
	ctx := context.Background()
	userID := uuid.New()
	walletID := uuid.New()

	// Журнал корректен, но баланс кошелька разошёлся с суммой журнала
	repo.On("GetOrCreate", ctx, userID).Return(&models.Wallet{ID: walletID, Balance: 99999}, nil)
	repo.On("ListAllTransactions", ctx, walletID).Return([]models.WalletTransaction{
		{ID: uuid.New(), Amount: 100000, BalanceBefore: 0, BalanceAfter: 100000},
	}, nil)

	report, err := svc.VerifyLedger(ctx, userID)
	assert.NoError(t, err)
	assert.False(t, report.Consistent)
}

package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/construction-backend/internal/models"
	"github.com/ignatzorin/construction-backend/internal/pkg/apperror"
	"github.com/ignatzorin/construction-backend/internal/validation"
)

// WalletRepository описывает зависимости WalletService от слоя хранилища.
type WalletRepository interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	Apply(ctx context.Context, userID uuid.UUID, txType string, delta float64, refType string, refID *uuid.UUID, description string) (*models.WalletTransaction, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error)
	ListAllTransactions(ctx context.Context, walletID uuid.UUID) ([]models.WalletTransaction, error)
}

// WalletService управляет кошельками пользователей.
type WalletService struct {
	repo WalletRepository
}

// NewWalletService создаёт сервис кошельков.
func NewWalletService(repo WalletRepository) *WalletService {
	return &WalletService{repo: repo}
}

// Balance возвращает кошелёк пользователя, создавая его при первом
// обращении.
func (s *WalletService) Balance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return s.repo.GetOrCreate(ctx, userID)
}

// Deposit пополняет кошелёк пользователя.
func (s *WalletService) Deposit(ctx context.Context, userID uuid.UUID, amount float64) (*models.WalletTransaction, error) {
	if err := validation.ValidateAmount("сумма пополнения", amount); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	return s.repo.Apply(ctx, userID, models.WalletTxTypeDeposit, amount, "wallet", nil, "пополнение кошелька")
}

// Withdraw выводит средства с кошелька. Баланс не может уйти в минус.
func (s *WalletService) Withdraw(ctx context.Context, userID uuid.UUID, amount float64) (*models.WalletTransaction, error) {
	if err := validation.ValidateAmount("сумма вывода", amount); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	return s.repo.Apply(ctx, userID, models.WalletTxTypeWithdrawal, -amount, "wallet", nil, "вывод средств")
}

// Transactions возвращает журнал кошелька в порядке создания.
func (s *WalletService) Transactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	wallet, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListTransactions(ctx, wallet.ID, limit, offset)
}

// LedgerReport результат сверки журнала кошелька.
type LedgerReport struct {
	WalletID       uuid.UUID `json:"wallet_id"`
	Transactions   int       `json:"transactions"`
	ReplayedAmount float64   `json:"replayed_amount"`
	Balance        float64   `json:"balance"`
	Consistent     bool      `json:"consistent"`
}

// VerifyLedger воспроизводит журнал кошелька с нуля и сверяет результат с
// текущим балансом. Каждая запись проверяется на непрерывность цепочки
// balance_before/balance_after.
func (s *WalletService) VerifyLedger(ctx context.Context, userID uuid.UUID) (*LedgerReport, error) {
	wallet, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	txs, err := s.repo.ListAllTransactions(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}

	var replayed float64
	for i, tx := range txs {
		if tx.BalanceBefore != replayed {
			return nil, apperror.New(apperror.ErrCodeInvariantViolation,
				fmt.Sprintf("разрыв цепочки журнала на записи %d: ожидался баланс %.0f, записано %.0f", i, replayed, tx.BalanceBefore))
		}
		if tx.BalanceAfter != tx.BalanceBefore+tx.Amount {
			return nil, apperror.New(apperror.ErrCodeInvariantViolation,
				fmt.Sprintf("некорректная запись журнала %s: balance_after не равен balance_before + amount", tx.ID))
		}
		replayed = tx.BalanceAfter
	}

	return &LedgerReport{
		WalletID:       wallet.ID,
		Transactions:   len(txs),
		ReplayedAmount: replayed,
		Balance:        wallet.Balance,
		Consistent:     replayed == wallet.Balance,
	}, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/construction-backend/internal/models"
	"github.com/ignatzorin/construction-backend/internal/pkg/apperror"
	"github.com/ignatzorin/construction-backend/internal/repository/common"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletInactive    = errors.New("wallet is inactive")
)

type WalletRepository struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetOrCreate возвращает кошелёк пользователя, создаёт если не существует.
func (r *WalletRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	query := `
		INSERT INTO wallets (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING *
	`
	if err := r.db.GetContext(ctx, &wallet, query, userID); err != nil {
		return nil, fmt.Errorf("wallet repository: get or create %w", err)
	}
	return &wallet, nil
}

// lockWalletTx создаёт при необходимости и блокирует кошелёк пользователя
// на время транзакции. Upsert берёт блокировку строки до конца транзакции.
func lockWalletTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := tx.GetContext(ctx, &wallet, `
		INSERT INTO wallets (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING *
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("wallet repository: lock wallet %w", err)
	}
	if !wallet.IsActive {
		return nil, ErrWalletInactive
	}
	return &wallet, nil
}

// applyWalletDeltaTx атомарно изменяет баланс кошелька и дописывает запись
// журнала в той же транзакции. delta со знаком: дебет отрицательный.
// Баланс не может стать отрицательным.
func applyWalletDeltaTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, txType string, delta float64, refType string, refID *uuid.UUID, description string) (*models.WalletTransaction, error) {
	wallet, err := lockWalletTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	newBalance := wallet.Balance + delta
	if newBalance < 0 {
		return nil, ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance = $2, updated_at = NOW() WHERE id = $1
	`, wallet.ID, newBalance); err != nil {
		return nil, fmt.Errorf("wallet repository: update balance %w", err)
	}

	var refTypePtr *string
	if refType != "" {
		refTypePtr = &refType
	}
	var descPtr *string
	if description != "" {
		descPtr = &description
	}

	var entry models.WalletTransaction
	err = tx.GetContext(ctx, &entry, `
		INSERT INTO wallet_transactions (wallet_id, type, amount, balance_before, balance_after, reference_type, reference_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`, wallet.ID, txType, delta, wallet.Balance, newBalance, refTypePtr, refID, descPtr)
	if err != nil {
		return nil, fmt.Errorf("wallet repository: insert transaction %w", err)
	}

	// balance_after записи должен совпадать с новым балансом кошелька.
	if entry.BalanceAfter != entry.BalanceBefore+entry.Amount {
		return nil, apperror.New(apperror.ErrCodeInvariantViolation, "журнал кошелька не сходится с балансом")
	}

	return &entry, nil
}

// Apply выполняет одно изменение баланса как самостоятельную транзакцию.
func (r *WalletRepository) Apply(ctx context.Context, userID uuid.UUID, txType string, delta float64, refType string, refID *uuid.UUID, description string) (*models.WalletTransaction, error) {
	var entry *models.WalletTransaction
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var inner error
		entry, inner = applyWalletDeltaTx(ctx, tx, userID, txType, delta, refType, refID, description)
		return inner
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListTransactions возвращает журнал кошелька в порядке создания.
func (r *WalletRepository) ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	var entries []models.WalletTransaction
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM wallet_transactions WHERE wallet_id = $1 ORDER BY seq ASC LIMIT $2 OFFSET $3
	`, walletID, limit, offset)
	return entries, err
}

// ListAllTransactions возвращает весь журнал кошелька для воспроизведения.
func (r *WalletRepository) ListAllTransactions(ctx context.Context, walletID uuid.UUID) ([]models.WalletTransaction, error) {
	var entries []models.WalletTransaction
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM wallet_transactions WHERE wallet_id = $1 ORDER BY seq ASC
	`, walletID)
	return entries, err
}

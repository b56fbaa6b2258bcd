package models

import (
	"time"

	"github.com/google/uuid"
)

// Типы транзакций кошелька
const (
	WalletTxTypeDeposit    = "deposit"
	WalletTxTypeWithdrawal = "withdrawal"
	WalletTxTypePayment    = "payment"
	WalletTxTypeRefund     = "refund"
	WalletTxTypeCommission = "commission"
)

// ValidWalletTxTypes список валидных типов транзакций
var ValidWalletTxTypes = map[string]struct{}{
	WalletTxTypeDeposit:    {},
	WalletTxTypeWithdrawal: {},
	WalletTxTypePayment:    {},
	WalletTxTypeRefund:     {},
	WalletTxTypeCommission: {},
}

// WalletTxIsCredit сообщает, увеличивает ли тип транзакции баланс.
func WalletTxIsCredit(txType string) bool {
	return txType == WalletTxTypeDeposit || txType == WalletTxTypeRefund
}

// Wallet представляет кошелёк пользователя. Баланс меняется только через
// API кошелька, каждое изменение сопровождается записью в журнал.
type Wallet struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Balance   float64   `db:"balance" json:"balance"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// WalletTransaction запись журнала кошелька. Воспроизведение журнала в
// порядке seq должно давать текущий баланс кошелька.
type WalletTransaction struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Seq           int64      `db:"seq" json:"seq"`
	WalletID      uuid.UUID  `db:"wallet_id" json:"wallet_id"`
	Type          string     `db:"type" json:"type"`
	Amount        float64    `db:"amount" json:"amount"`
	BalanceBefore float64    `db:"balance_before" json:"balance_before"`
	BalanceAfter  float64    `db:"balance_after" json:"balance_after"`
	ReferenceType *string    `db:"reference_type" json:"reference_type,omitempty"`
	ReferenceID   *uuid.UUID `db:"reference_id" json:"reference_id,omitempty"`
	Description   *string    `db:"description" json:"description,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы платежей
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
	PaymentStatusCancelled = "cancelled"
)

// Типы платежей
const (
	PaymentTypeMilestone  = "milestone"
	PaymentTypeFull       = "full"
	PaymentTypeDeposit    = "deposit"
	PaymentTypeRefund     = "refund"
	PaymentTypeCommission = "commission"
)

// ValidPaymentTypes список валидных типов платежей
var ValidPaymentTypes = map[string]struct{}{
	PaymentTypeMilestone:  {},
	PaymentTypeFull:       {},
	PaymentTypeDeposit:    {},
	PaymentTypeRefund:     {},
	PaymentTypeCommission: {},
}

// Payment фиксирует одно движение денег с комиссией платформы.
// NetAmount вычисляется при создании и больше не пересчитывается.
type Payment struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ProjectID      uuid.UUID  `db:"project_id" json:"project_id"`
	MilestoneID    *uuid.UUID `db:"milestone_id" json:"milestone_id,omitempty"`
	PayerID        uuid.UUID  `db:"payer_id" json:"payer_id"`
	PayeeID        uuid.UUID  `db:"payee_id" json:"payee_id"`
	Amount         float64    `db:"amount" json:"amount"`
	PlatformFee    float64    `db:"platform_fee" json:"platform_fee"`
	NetAmount      float64    `db:"net_amount" json:"net_amount"`
	PaymentType    string     `db:"payment_type" json:"payment_type"`
	Status         string     `db:"status" json:"status"`
	PaymentMethod  *string    `db:"payment_method" json:"payment_method,omitempty"`
	TransactionID  *string    `db:"transaction_id" json:"transaction_id,omitempty"`
	PaymentGateway *string    `db:"payment_gateway" json:"payment_gateway,omitempty"`
	RefundAmount   float64    `db:"refund_amount" json:"refund_amount"`
	RefundDate     *time.Time `db:"refund_date" json:"refund_date,omitempty"`
	RefundReason   *string    `db:"refund_reason" json:"refund_reason,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

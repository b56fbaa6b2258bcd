package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Статусы escrow
const (
	EscrowStatusPending           = "pending"
	EscrowStatusHeld              = "held"
	EscrowStatusPartiallyReleased = "partially_released"
	EscrowStatusReleased          = "released"
	EscrowStatusRefunded          = "refunded"
	EscrowStatusDisputed          = "disputed"
	EscrowStatusCancelled         = "cancelled"
)

// EscrowTerminalStatuses статусы, из которых движение средств невозможно.
var EscrowTerminalStatuses = map[string]struct{}{
	EscrowStatusReleased:  {},
	EscrowStatusRefunded:  {},
	EscrowStatusCancelled: {},
}

// Escrow представляет защищённое удержание средств по проекту или этапу.
// Инвариант сохранения: held + released + refunded == amount, все три >= 0.
type Escrow struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	ProjectID          uuid.UUID  `db:"project_id" json:"project_id"`
	MilestoneID        *uuid.UUID `db:"milestone_id" json:"milestone_id,omitempty"`
	PayerID            uuid.UUID  `db:"payer_id" json:"payer_id"`
	PayeeID            uuid.UUID  `db:"payee_id" json:"payee_id"`
	Amount             float64    `db:"amount" json:"amount"`
	HeldAmount         float64    `db:"held_amount" json:"held_amount"`
	ReleasedAmount     float64    `db:"released_amount" json:"released_amount"`
	RefundedAmount     float64    `db:"refunded_amount" json:"refunded_amount"`
	Status             string     `db:"status" json:"status"`
	AutoReleaseEnabled bool       `db:"auto_release_enabled" json:"auto_release_enabled"`
	AutoReleaseDays    int        `db:"auto_release_days" json:"auto_release_days"`
	HeldAt             *time.Time `db:"held_at" json:"held_at,omitempty"`
	ReleaseScheduledAt *time.Time `db:"release_scheduled_at" json:"release_scheduled_at,omitempty"`
	ReleasedAt         *time.Time `db:"released_at" json:"released_at,omitempty"`
	RefundedAt         *time.Time `db:"refunded_at" json:"refunded_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// RemainingAmount возвращает сумму, остающуюся под удержанием.
func (e *Escrow) RemainingAmount() float64 {
	return e.HeldAmount
}

// ConservationHolds проверяет инвариант сохранения средств.
func (e *Escrow) ConservationHolds() bool {
	if e.HeldAmount < 0 || e.ReleasedAmount < 0 || e.RefundedAmount < 0 {
		return false
	}
	return e.HeldAmount+e.ReleasedAmount+e.RefundedAmount == e.Amount
}

// IsTerminal сообщает, достиг ли escrow конечного состояния.
func (e *Escrow) IsTerminal() bool {
	_, ok := EscrowTerminalStatuses[e.Status]
	return ok
}

// Movable сообщает, допускает ли текущий статус движение средств.
// Спорный escrow двигается только путём разрешения спора.
func (e *Escrow) Movable(fromDispute bool) bool {
	switch e.Status {
	case EscrowStatusHeld, EscrowStatusPartiallyReleased:
		return true
	case EscrowStatusDisputed:
		return fromDispute
	default:
		return false
	}
}

// ApplyRelease перемещает sum из удержания в освобождённые и пересчитывает
// статус. Границы суммы проверяет вызывающий.
func (e *Escrow) ApplyRelease(sum float64, now time.Time) {
	e.HeldAmount -= sum
	e.ReleasedAmount += sum
	if e.HeldAmount == 0 {
		e.Status = EscrowStatusReleased
		e.ReleasedAt = &now
	} else {
		e.Status = EscrowStatusPartiallyReleased
	}
}

// ApplyRefund перемещает sum из удержания в возвращённые и пересчитывает
// статус. Остаток после частичных освобождений закрывает escrow как released.
func (e *Escrow) ApplyRefund(sum float64, now time.Time) {
	e.HeldAmount -= sum
	e.RefundedAmount += sum
	switch {
	case e.HeldAmount == 0 && e.ReleasedAmount == 0:
		e.Status = EscrowStatusRefunded
	case e.HeldAmount == 0:
		e.Status = EscrowStatusReleased
	case e.ReleasedAmount > 0:
		e.Status = EscrowStatusPartiallyReleased
	default:
		e.Status = EscrowStatusHeld
	}
	e.RefundedAt = &now
}

// ApplyCancel возвращает весь удержанный остаток плательщику и закрывает
// escrow. Возвращает сумму к зачислению.
func (e *Escrow) ApplyCancel(now time.Time) float64 {
	refunded := e.HeldAmount
	e.HeldAmount = 0
	e.RefundedAmount += refunded
	e.Status = EscrowStatusCancelled
	e.RefundedAt = &now
	return refunded
}

// PlatformFee считает комиссию платформы с округлением вверх до целого
// динара.
func PlatformFee(amount, commissionPercent float64) float64 {
	return math.Ceil(amount * commissionPercent / 100)
}

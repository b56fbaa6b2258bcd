package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Типы доменных событий
const (
	EventContractActivated = "contract.activated"
	EventMilestoneApproved = "milestone.approved"
	EventEscrowReleased    = "escrow.released"
	EventEscrowRefunded    = "escrow.refunded"
	EventDisputeRaised     = "dispute.raised"
	EventDisputeResolved   = "dispute.resolved"
	EventPaymentCompleted  = "payment.completed"
)

// DomainEvent запись журнала событий проекта. Строка пишется в той же
// транзакции, что и породившее её изменение; рассылка подписчикам
// происходит после фиксации (at-least-once, потребители идемпотентны по id).
type DomainEvent struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	ProjectID uuid.UUID       `db:"project_id" json:"project_id"`
	Type      string          `db:"type" json:"type"`
	Payload   json.RawMessage `db:"payload" json:"payload,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

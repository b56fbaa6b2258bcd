package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Статусы споров
const (
	DisputeStatusOpen        = "open"
	DisputeStatusUnderReview = "under_review"
	DisputeStatusResolved    = "resolved"
	DisputeStatusClosed      = "closed"
)

// Типы споров
const (
	DisputeTypeQuality      = "quality"
	DisputeTypeDelay        = "delay"
	DisputeTypePayment      = "payment"
	DisputeTypeCancellation = "cancellation"
	DisputeTypeOther        = "other"
)

// Исходы разрешения споров
const (
	DisputeOutcomeFavorClient   = "favor_client"
	DisputeOutcomeFavorProvider = "favor_provider"
	DisputeOutcomeSplit         = "split"
	DisputeOutcomeNoAction      = "no_action"
)

// ValidDisputeTypes список валидных типов споров
var ValidDisputeTypes = map[string]struct{}{
	DisputeTypeQuality:      {},
	DisputeTypeDelay:        {},
	DisputeTypePayment:      {},
	DisputeTypeCancellation: {},
	DisputeTypeOther:        {},
}

// ValidDisputeOutcomes список валидных исходов
var ValidDisputeOutcomes = map[string]struct{}{
	DisputeOutcomeFavorClient:   {},
	DisputeOutcomeFavorProvider: {},
	DisputeOutcomeSplit:         {},
	DisputeOutcomeNoAction:      {},
}

// Dispute представляет спор по проекту. Пока PaymentHeld равен true,
// все неконечные escrow проекта находятся в статусе disputed.
type Dispute struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	ProjectID         uuid.UUID       `db:"project_id" json:"project_id"`
	RaisedByID        uuid.UUID       `db:"raised_by_id" json:"raised_by_id"`
	AgainstID         uuid.UUID       `db:"against_id" json:"against_id"`
	DisputeType       string          `db:"dispute_type" json:"dispute_type"`
	Description       string          `db:"description" json:"description"`
	Evidence          json.RawMessage `db:"evidence" json:"evidence,omitempty"`
	Status            string          `db:"status" json:"status"`
	AssignedAdminID   *uuid.UUID      `db:"assigned_admin_id" json:"assigned_admin_id,omitempty"`
	ResolutionOutcome *string         `db:"resolution_outcome" json:"resolution_outcome,omitempty"`
	ResolutionDetails *string         `db:"resolution_details" json:"resolution_details,omitempty"`
	PaymentHeld       bool            `db:"payment_held" json:"payment_held"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	ResolvedAt        *time.Time      `db:"resolved_at" json:"resolved_at,omitempty"`
}

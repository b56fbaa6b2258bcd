package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы этапов работ
const (
	MilestoneStatusPending    = "pending"
	MilestoneStatusInProgress = "in_progress"
	MilestoneStatusSubmitted  = "submitted"
	MilestoneStatusApproved   = "approved"
	MilestoneStatusRejected   = "rejected"
)

// ValidMilestoneStatuses список валидных статусов этапов
var ValidMilestoneStatuses = map[string]struct{}{
	MilestoneStatusPending:    {},
	MilestoneStatusInProgress: {},
	MilestoneStatusSubmitted:  {},
	MilestoneStatusApproved:   {},
	MilestoneStatusRejected:   {},
}

// ProjectMilestone описывает этап работ с суммой оплаты.
type ProjectMilestone struct {
	ID                     uuid.UUID  `db:"id" json:"id"`
	ProjectID              uuid.UUID  `db:"project_id" json:"project_id"`
	Title                  string     `db:"title" json:"title"`
	Description            *string    `db:"description" json:"description,omitempty"`
	MilestoneOrder         int        `db:"milestone_order" json:"milestone_order"`
	Amount                 float64    `db:"amount" json:"amount"`
	Status                 string     `db:"status" json:"status"`
	ClientApproved         bool       `db:"client_approved" json:"client_approved"`
	PaymentReleased        bool       `db:"payment_released" json:"payment_released"`
	RejectionReason        *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ExpectedCompletionDate *time.Time `db:"expected_completion_date" json:"expected_completion_date,omitempty"`
	SubmittedAt            *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	ApprovedAt             *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updated_at"`
}

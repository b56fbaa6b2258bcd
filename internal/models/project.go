package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы проектов
const (
	ProjectStatusPending    = "pending"
	ProjectStatusAccepted   = "accepted"
	ProjectStatusRejected   = "rejected"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusCompleted  = "completed"
	ProjectStatusCancelled  = "cancelled"
	ProjectStatusDisputed   = "disputed"
)

// ValidProjectStatuses список валидных статусов проектов
var ValidProjectStatuses = map[string]struct{}{
	ProjectStatusPending:    {},
	ProjectStatusAccepted:   {},
	ProjectStatusRejected:   {},
	ProjectStatusInProgress: {},
	ProjectStatusCompleted:  {},
	ProjectStatusCancelled:  {},
	ProjectStatusDisputed:   {},
}

// projectTransitions описывает допустимые переходы статусов проекта.
var projectTransitions = map[string][]string{
	ProjectStatusPending:    {ProjectStatusAccepted, ProjectStatusRejected, ProjectStatusCancelled},
	ProjectStatusAccepted:   {ProjectStatusInProgress, ProjectStatusCancelled},
	ProjectStatusInProgress: {ProjectStatusCompleted, ProjectStatusDisputed, ProjectStatusCancelled},
	ProjectStatusDisputed:   {ProjectStatusInProgress, ProjectStatusCancelled},
	ProjectStatusRejected:   {},
	ProjectStatusCompleted:  {},
	ProjectStatusCancelled:  {},
}

// ProjectCanTransition проверяет, допустим ли переход статуса проекта.
func ProjectCanTransition(from, to string) bool {
	for _, s := range projectTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Project описывает проект строительных работ между клиентом и подрядчиком.
type Project struct {
	ID                        uuid.UUID `db:"id" json:"id"`
	ClientID                  uuid.UUID `db:"client_id" json:"client_id"`
	ProviderID                uuid.UUID `db:"provider_id" json:"provider_id"`
	Title                     string    `db:"title" json:"title"`
	Description               *string   `db:"description" json:"description,omitempty"`
	Status                    string    `db:"status" json:"status"`
	TotalBudget               float64   `db:"total_budget" json:"total_budget"`
	PlatformCommissionPercent float64   `db:"platform_commission_percent" json:"platform_commission_percent"`
	ClientRating              *float64  `db:"client_rating" json:"client_rating,omitempty"`
	ProviderRating            *float64  `db:"provider_rating" json:"provider_rating,omitempty"`
	RejectionReason           *string   `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt                 time.Time `db:"created_at" json:"created_at"`
	UpdatedAt                 time.Time `db:"updated_at" json:"updated_at"`
}

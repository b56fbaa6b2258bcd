package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы ставок
const (
	BidStatusPending   = "pending"
	BidStatusAccepted  = "accepted"
	BidStatusRejected  = "rejected"
	BidStatusExpired   = "expired"
	BidStatusConverted = "converted"
)

// ValidBidStatuses список валидных статусов ставок
var ValidBidStatuses = map[string]struct{}{
	BidStatusPending:   {},
	BidStatusAccepted:  {},
	BidStatusRejected:  {},
	BidStatusExpired:   {},
	BidStatusConverted: {},
}

// Bid представляет ставку клиента на услуги подрядчика.
type Bid struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	ClientID              uuid.UUID  `db:"client_id" json:"client_id"`
	ProviderID            uuid.UUID  `db:"provider_id" json:"provider_id"`
	ServiceType           string     `db:"service_type" json:"service_type"`
	OfferedPrice          float64    `db:"offered_price" json:"offered_price"`
	EstimatedDurationDays int        `db:"estimated_duration_days" json:"estimated_duration_days"`
	Proposal              *string    `db:"proposal" json:"proposal,omitempty"`
	Status                string     `db:"status" json:"status"`
	ExpiresAt             time.Time  `db:"expires_at" json:"expires_at"`
	ConvertedToProjectID  *uuid.UUID `db:"converted_to_project_id" json:"converted_to_project_id,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

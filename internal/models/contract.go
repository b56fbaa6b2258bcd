package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы контрактов
const (
	ContractStatusPendingSignature = "pending_signature"
	ContractStatusActive           = "active"
	ContractStatusCompleted        = "completed"
	ContractStatusTerminated       = "terminated"
)

// Стороны контракта
const (
	ContractPartyClient   = "client"
	ContractPartyProvider = "provider"
)

// Contract представляет договор, привязанный к проекту один к одному.
// Статус становится active только после подписей обеих сторон.
type Contract struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	ProjectID          uuid.UUID  `db:"project_id" json:"project_id"`
	ClientID           uuid.UUID  `db:"client_id" json:"client_id"`
	ProviderID         uuid.UUID  `db:"provider_id" json:"provider_id"`
	ContractTerms      string     `db:"contract_terms" json:"contract_terms"`
	PaymentTerms       *string    `db:"payment_terms" json:"payment_terms,omitempty"`
	DeliveryTerms      *string    `db:"delivery_terms" json:"delivery_terms,omitempty"`
	CancellationPolicy *string    `db:"cancellation_policy" json:"cancellation_policy,omitempty"`
	ClientSigned       bool       `db:"client_signed" json:"client_signed"`
	ClientSignedAt     *time.Time `db:"client_signed_at" json:"client_signed_at,omitempty"`
	ProviderSigned     bool       `db:"provider_signed" json:"provider_signed"`
	ProviderSignedAt   *time.Time `db:"provider_signed_at" json:"provider_signed_at,omitempty"`
	Status             string     `db:"status" json:"status"`
	TerminationReason  *string    `db:"termination_reason" json:"termination_reason,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// FullySigned сообщает, подписали ли контракт обе стороны.
func (c *Contract) FullySigned() bool {
	return c.ClientSigned && c.ProviderSigned
}

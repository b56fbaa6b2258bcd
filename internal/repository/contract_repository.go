package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/construction-backend/internal/models"
	"github.com/ignatzorin/construction-backend/internal/pkg/apperror"
	"github.com/ignatzorin/construction-backend/internal/repository/common"
)

type ContractRepository struct {
	db *sqlx.DB
}

func NewContractRepository(db *sqlx.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// Create создаёт контракт в статусе pending_signature.
// На проект допускается ровно один контракт.
func (r *ContractRepository) Create(ctx context.Context, c *models.Contract) (*models.Contract, error) {
	var created models.Contract
	err := r.db.GetContext(ctx, &created, `
		INSERT INTO contracts (project_id, client_id, provider_id, contract_terms, payment_terms, delivery_terms, cancellation_policy, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`, c.ProjectID, c.ClientID, c.ProviderID, c.ContractTerms, c.PaymentTerms, c.DeliveryTerms, c.CancellationPolicy, models.ContractStatusPendingSignature)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, apperror.New(apperror.ErrCodeConflict, "контракт по этому проекту уже существует")
		}
		return nil, fmt.Errorf("contract repository: create %w", err)
	}
	return &created, nil
}

// GetByID возвращает контракт по ID.
func (r *ContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	return common.GetByID[models.Contract](ctx, r.db, "contracts", id, apperror.ErrContractNotFound)
}

// GetByProjectID возвращает контракт проекта.
func (r *ContractRepository) GetByProjectID(ctx context.Context, projectID uuid.UUID) (*models.Contract, error) {
	return common.GetByField[models.Contract](ctx, r.db, "contracts", "project_id", projectID, apperror.ErrContractNotFound)
}

// Sign ставит подпись стороны. Подпись идемпотентна: повторное подписание
// той же стороной не меняет отметку времени. Если после подписи обе стороны
// подписали, контракт атомарно переходит в active и пишется событие
// активации. Возвращает контракт и признак, что активация произошла сейчас.
func (r *ContractRepository) Sign(ctx context.Context, id uuid.UUID, party string, now time.Time) (*models.Contract, *models.DomainEvent, error) {
	var contract *models.Contract
	var event *models.DomainEvent

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		locked, err := common.GetByIDForUpdate[models.Contract](ctx, tx, "contracts", id, apperror.ErrContractNotFound)
		if err != nil {
			return err
		}

		if locked.Status != models.ContractStatusPendingSignature {
			// Повторная подпись уже подписанного контракта: для active
			// это конфликт, контракт уже в силе.
			return apperror.New(apperror.ErrCodeConflict, "контракт не ожидает подписания")
		}

		switch party {
		case models.ContractPartyClient:
			if locked.ClientSigned {
				contract = locked
				return nil
			}
			locked.ClientSigned = true
			locked.ClientSignedAt = &now
		case models.ContractPartyProvider:
			if locked.ProviderSigned {
				contract = locked
				return nil
			}
			locked.ProviderSigned = true
			locked.ProviderSignedAt = &now
		default:
			return apperror.New(apperror.ErrCodeValidation, "неизвестная сторона контракта")
		}

		if locked.FullySigned() {
			locked.Status = models.ContractStatusActive
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE contracts
			SET client_signed = $2, client_signed_at = $3, provider_signed = $4, provider_signed_at = $5, status = $6, updated_at = NOW()
			WHERE id = $1
		`, locked.ID, locked.ClientSigned, locked.ClientSignedAt, locked.ProviderSigned, locked.ProviderSignedAt, locked.Status)
		if err != nil {
			return fmt.Errorf("contract repository: sign %w", err)
		}

		if locked.Status == models.ContractStatusActive {
			event, err = insertEventTx(ctx, tx, locked.ProjectID, models.EventContractActivated, map[string]interface{}{
				"contract_id": locked.ID,
				"project_id":  locked.ProjectID,
			})
			if err != nil {
				return err
			}
		}

		contract = locked
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return contract, event, nil
}

// Terminate расторгает действующий контракт. Средства в escrow при этом не
// трогаются: их судьбу решает спор или явный возврат.
func (r *ContractRepository) Terminate(ctx context.Context, id uuid.UUID, reason string) (*models.Contract, error) {
	var contract *models.Contract
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		locked, err := common.GetByIDForUpdate[models.Contract](ctx, tx, "contracts", id, apperror.ErrContractNotFound)
		if err != nil {
			return err
		}
		if locked.Status != models.ContractStatusActive {
			return apperror.New(apperror.ErrCodeConflict, "расторгнуть можно только действующий контракт")
		}

		err = tx.GetContext(ctx, locked, `
			UPDATE contracts SET status = $2, termination_reason = $3, updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`, locked.ID, models.ContractStatusTerminated, reason)
		if err != nil {
			return fmt.Errorf("contract repository: terminate %w", err)
		}
		contract = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// Complete помечает контракт завершённым при завершении проекта.
func (r *ContractRepository) Complete(ctx context.Context, projectID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contracts SET status = $2, updated_at = NOW()
		WHERE project_id = $1 AND status = $3
	`, projectID, models.ContractStatusCompleted, models.ContractStatusActive)
	if err != nil {
		return fmt.Errorf("contract repository: complete %w", err)
	}
	return nil
}

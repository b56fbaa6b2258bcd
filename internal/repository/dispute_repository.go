package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/construction-backend/internal/models"
	"github.com/ignatzorin/construction-backend/internal/pkg/apperror"
	"github.com/ignatzorin/construction-backend/internal/repository/common"
)

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// CreateWithFreeze открывает спор и в той же транзакции замораживает все
// неконечные escrow проекта и переводит проект в статус disputed. По
// проекту может быть не более одного открытого спора.
func (r *DisputeRepository) CreateWithFreeze(ctx context.Context, d *models.Dispute) (*models.Dispute, *models.DomainEvent, error) {
	var created models.Dispute
	var event *models.DomainEvent

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		project, err := common.GetByIDForUpdate[models.Project](ctx, tx, "projects", d.ProjectID, apperror.ErrProjectNotFound)
		if err != nil {
			return err
		}
		if project.Status == models.ProjectStatusCompleted || project.Status == models.ProjectStatusCancelled {
			return apperror.New(apperror.ErrCodeConflict, "нельзя открыть спор по завершённому проекту")
		}

		var openCount int
		err = tx.GetContext(ctx, &openCount, `
			SELECT COUNT(*) FROM disputes WHERE project_id = $1 AND status IN ($2, $3)
		`, d.ProjectID, models.DisputeStatusOpen, models.DisputeStatusUnderReview)
		if err != nil {
			return fmt.Errorf("dispute repository: count open %w", err)
		}
		if openCount > 0 {
			return apperror.New(apperror.ErrCodeConflict, "по проекту уже открыт спор")
		}

		err = tx.GetContext(ctx, &created, `
			INSERT INTO disputes (project_id, raised_by_id, against_id, dispute_type, description, evidence, status, payment_held)
			VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
			RETURNING *
		`, d.ProjectID, d.RaisedByID, d.AgainstID, d.DisputeType, d.Description, d.Evidence, models.DisputeStatusOpen)
		if err != nil {
			return fmt.Errorf("dispute repository: insert %w", err)
		}

		frozen, err := freezeProjectEscrowsTx(ctx, tx, d.ProjectID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE projects SET status = $2, updated_at = NOW() WHERE id = $1
		`, d.ProjectID, models.ProjectStatusDisputed)
		if err != nil {
			return fmt.Errorf("dispute repository: freeze project %w", err)
		}

		event, err = insertEventTx(ctx, tx, d.ProjectID, models.EventDisputeRaised, map[string]interface{}{
			"dispute_id":     created.ID,
			"dispute_type":   created.DisputeType,
			"raised_by_id":   created.RaisedByID,
			"frozen_escrows": frozen,
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &created, event, nil
}

// GetByID возвращает спор по ID.
func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return common.GetByID[models.Dispute](ctx, r.db, "disputes", id, apperror.ErrDisputeNotFound)
}

// Assign назначает администратора и переводит спор в under_review.
func (r *DisputeRepository) Assign(ctx context.Context, id, adminID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		locked, err := common.GetByIDForUpdate[models.Dispute](ctx, tx, "disputes", id, apperror.ErrDisputeNotFound)
		if err != nil {
			return err
		}
		if locked.Status != models.DisputeStatusOpen && locked.Status != models.DisputeStatusUnderReview {
			return apperror.New(apperror.ErrCodeConflict,
				fmt.Sprintf("назначить администратора можно только на активный спор, текущий статус %s", locked.Status))
		}
		err = tx.GetContext(ctx, &dispute, `
			UPDATE disputes SET assigned_admin_id = $2, status = $3 WHERE id = $1 RETURNING *
		`, id, adminID, models.DisputeStatusUnderReview)
		if err != nil {
			return fmt.Errorf("dispute repository: assign %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

// MarkResolved фиксирует исход спора. Движения денег по escrow выполняются
// сервисным слоем до вызова; здесь спор переводится в resolved, снимается
// удержание и проект возвращается из disputed в рабочий статус.
func (r *DisputeRepository) MarkResolved(ctx context.Context, id uuid.UUID, outcome, details string, projectStatus string, now time.Time) (*models.Dispute, *models.DomainEvent, error) {
	var dispute models.Dispute
	var event *models.DomainEvent

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		locked, err := common.GetByIDForUpdate[models.Dispute](ctx, tx, "disputes", id, apperror.ErrDisputeNotFound)
		if err != nil {
			return err
		}
		if locked.Status != models.DisputeStatusUnderReview {
			return apperror.New(apperror.ErrCodeConflict,
				fmt.Sprintf("разрешить можно только спор на рассмотрении, текущий статус %s", locked.Status))
		}

		err = tx.GetContext(ctx, &dispute, `
			UPDATE disputes
			SET status = $2, resolution_outcome = $3, resolution_details = $4, payment_held = FALSE, resolved_at = $5
			WHERE id = $1
			RETURNING *
		`, id, models.DisputeStatusResolved, outcome, details, now)
		if err != nil {
			return fmt.Errorf("dispute repository: resolve %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE projects SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3
		`, dispute.ProjectID, projectStatus, models.ProjectStatusDisputed)
		if err != nil {
			return fmt.Errorf("dispute repository: unfreeze project %w", err)
		}

		event, err = insertEventTx(ctx, tx, dispute.ProjectID, models.EventDisputeResolved, map[string]interface{}{
			"dispute_id": dispute.ID,
			"outcome":    outcome,
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &dispute, event, nil
}

// Close закрывает разрешённый спор.
func (r *DisputeRepository) Close(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		locked, err := common.GetByIDForUpdate[models.Dispute](ctx, tx, "disputes", id, apperror.ErrDisputeNotFound)
		if err != nil {
			return err
		}
		if locked.Status != models.DisputeStatusResolved {
			return apperror.New(apperror.ErrCodeConflict, "закрыть можно только разрешённый спор")
		}
		err = tx.GetContext(ctx, &dispute, `
			UPDATE disputes SET status = $2 WHERE id = $1 RETURNING *
		`, id, models.DisputeStatusClosed)
		if err != nil {
			return fmt.Errorf("dispute repository: close %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

// ListByProject возвращает споры проекта.
func (r *DisputeRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes WHERE project_id = $1 ORDER BY created_at DESC
	`, projectID)
	return disputes, err
}

// ListByStatus возвращает споры в заданном статусе, новые первыми.
func (r *DisputeRepository) ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, status, limit, offset)
	return disputes, err
}

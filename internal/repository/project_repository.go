package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/construction-backend/internal/models"
	"github.com/ignatzorin/construction-backend/internal/pkg/apperror"
	"github.com/ignatzorin/construction-backend/internal/repository/common"
)

type ProjectRepository struct {
	db *sqlx.DB
}

func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// GetByID возвращает проект по ID.
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return common.GetByID[models.Project](ctx, r.db, "projects", id, apperror.ErrProjectNotFound)
}

// UpdateStatusGuarded переводит проект в новый статус, только если текущий
// статус входит в allowedFrom. Иначе возвращает Conflict.
func (r *ProjectRepository) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, to string, allowedFrom []string, reason *string) (*models.Project, error) {
	var project models.Project
	err := r.db.GetContext(ctx, &project, `
		UPDATE projects SET status = $2, rejection_reason = COALESCE($4, rejection_reason), updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
		RETURNING *
	`, id, to, pq.Array(allowedFrom), reason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			current, getErr := r.GetByID(ctx, id)
			if getErr != nil {
				return nil, getErr
			}
			return nil, apperror.New(apperror.ErrCodeConflict,
				fmt.Sprintf("переход проекта из статуса %s в %s недопустим", current.Status, to))
		}
		return nil, fmt.Errorf("project repository: update status %w", err)
	}
	return &project, nil
}

// CountUnapprovedMilestones возвращает число этапов проекта, ещё не принятых клиентом.
func (r *ProjectRepository) CountUnapprovedMilestones(ctx context.Context, projectID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM project_milestones WHERE project_id = $1 AND status <> $2
	`, projectID, models.MilestoneStatusApproved)
	return count, err
}

// CountMilestones возвращает число этапов проекта.
func (r *ProjectRepository) CountMilestones(ctx context.Context, projectID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM project_milestones WHERE project_id = $1`, projectID)
	return count, err
}

// CountUnsettledEscrows возвращает число escrow проекта, не достигших
// полного освобождения средств.
func (r *ProjectRepository) CountUnsettledEscrows(ctx context.Context, projectID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM escrows WHERE project_id = $1 AND status NOT IN ($2, $3)
	`, projectID, models.EscrowStatusReleased, models.EscrowStatusCancelled)
	return count, err
}

// HasCompletedFullPayment проверяет, покрыт ли весь бюджет проекта
// завершённым платежом полной оплаты.
func (r *ProjectRepository) HasCompletedFullPayment(ctx context.Context, projectID uuid.UUID, totalBudget float64) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM payments
		WHERE project_id = $1 AND payment_type = $2 AND status = $3 AND amount >= $4
	`, projectID, models.PaymentTypeFull, models.PaymentStatusCompleted, totalBudget)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ActiveContractExists проверяет наличие действующего контракта по проекту.
func (r *ProjectRepository) ActiveContractExists(ctx context.Context, projectID uuid.UUID) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM contracts WHERE project_id = $1 AND status = $2
	`, projectID, models.ContractStatusActive)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByUser возвращает проекты, где пользователь является стороной.
func (r *ProjectRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Project, error) {
	var projects []models.Project
	err := r.db.SelectContext(ctx, &projects, `
		SELECT * FROM projects WHERE client_id = $1 OR provider_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return projects, err
}

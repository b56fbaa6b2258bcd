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

type MilestoneRepository struct {
	db *sqlx.DB
}

func NewMilestoneRepository(db *sqlx.DB) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

// Create добавляет этап. Сумма всех этапов не может превысить бюджет
// проекта; порядковый номер уникален в рамках проекта. Обе проверки
// выполняются под блокировкой строки проекта.
func (r *MilestoneRepository) Create(ctx context.Context, m *models.ProjectMilestone) (*models.ProjectMilestone, error) {
	var created models.ProjectMilestone
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		project, err := common.GetByIDForUpdate[models.Project](ctx, tx, "projects", m.ProjectID, apperror.ErrProjectNotFound)
		if err != nil {
			return err
		}

		var allocated float64
		err = tx.GetContext(ctx, &allocated, `
			SELECT COALESCE(SUM(amount), 0) FROM project_milestones WHERE project_id = $1
		`, m.ProjectID)
		if err != nil {
			return fmt.Errorf("milestone repository: sum amounts %w", err)
		}
		if allocated+m.Amount > project.TotalBudget {
			return apperror.New(apperror.ErrCodeValidation,
				fmt.Sprintf("сумма этапов %.0f превысит бюджет проекта %.0f", allocated+m.Amount, project.TotalBudget))
		}

		err = tx.GetContext(ctx, &created, `
			INSERT INTO project_milestones (project_id, title, description, milestone_order, amount, status, expected_completion_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING *
		`, m.ProjectID, m.Title, m.Description, m.MilestoneOrder, m.Amount, models.MilestoneStatusPending, m.ExpectedCompletionDate)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				return apperror.New(apperror.ErrCodeValidation,
					fmt.Sprintf("этап с порядковым номером %d уже существует", m.MilestoneOrder))
			}
			return fmt.Errorf("milestone repository: create %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetByID возвращает этап по ID.
func (r *MilestoneRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ProjectMilestone, error) {
	return common.GetByID[models.ProjectMilestone](ctx, r.db, "project_milestones", id, apperror.ErrMilestoneNotFound)
}

// ListByProject возвращает этапы проекта в порядке выполнения.
func (r *MilestoneRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMilestone, error) {
	var milestones []models.ProjectMilestone
	err := r.db.SelectContext(ctx, &milestones, `
		SELECT * FROM project_milestones WHERE project_id = $1 ORDER BY milestone_order ASC
	`, projectID)
	return milestones, err
}

// Start переводит этап из pending в in_progress.
func (r *MilestoneRepository) Start(ctx context.Context, id uuid.UUID) (*models.ProjectMilestone, error) {
	return r.transition(ctx, id, models.MilestoneStatusInProgress,
		[]string{models.MilestoneStatusPending}, "начать можно только ожидающий этап", nil, nil)
}

// Submit помечает работу по этапу сданной подрядчиком.
func (r *MilestoneRepository) Submit(ctx context.Context, id uuid.UUID, now time.Time) (*models.ProjectMilestone, error) {
	return r.transition(ctx, id, models.MilestoneStatusSubmitted,
		[]string{models.MilestoneStatusPending, models.MilestoneStatusInProgress},
		"сдать можно только этап в работе", &now, nil)
}

// Approve принимает сданный этап. client_approved является предусловием
// освобождения escrow этого этапа. Пишет событие приёмки в той же транзакции.
func (r *MilestoneRepository) Approve(ctx context.Context, id uuid.UUID, now time.Time) (*models.ProjectMilestone, *models.DomainEvent, error) {
	var milestone models.ProjectMilestone
	var event *models.DomainEvent

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		locked, err := common.GetByIDForUpdate[models.ProjectMilestone](ctx, tx, "project_milestones", id, apperror.ErrMilestoneNotFound)
		if err != nil {
			return err
		}
		if locked.Status != models.MilestoneStatusSubmitted {
			return apperror.New(apperror.ErrCodeConflict, "принять можно только сданный этап")
		}

		err = tx.GetContext(ctx, &milestone, `
			UPDATE project_milestones
			SET status = $2, client_approved = TRUE, approved_at = $3, updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`, id, models.MilestoneStatusApproved, now)
		if err != nil {
			return fmt.Errorf("milestone repository: approve %w", err)
		}

		event, err = insertEventTx(ctx, tx, milestone.ProjectID, models.EventMilestoneApproved, map[string]interface{}{
			"milestone_id": milestone.ID,
			"project_id":   milestone.ProjectID,
			"amount":       milestone.Amount,
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &milestone, event, nil
}

// Reject отклоняет сданный этап и возвращает его в работу.
func (r *MilestoneRepository) Reject(ctx context.Context, id uuid.UUID, reason string) (*models.ProjectMilestone, error) {
	return r.transition(ctx, id, models.MilestoneStatusInProgress,
		[]string{models.MilestoneStatusSubmitted}, "отклонить можно только сданный этап", nil, &reason)
}

// transition выполняет охраняемый переход статуса этапа.
func (r *MilestoneRepository) transition(ctx context.Context, id uuid.UUID, to string, allowedFrom []string, conflictMsg string, submittedAt *time.Time, reason *string) (*models.ProjectMilestone, error) {
	var milestone *models.ProjectMilestone
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		locked, err := common.GetByIDForUpdate[models.ProjectMilestone](ctx, tx, "project_milestones", id, apperror.ErrMilestoneNotFound)
		if err != nil {
			return err
		}

		allowed := false
		for _, s := range allowedFrom {
			if locked.Status == s {
				allowed = true
				break
			}
		}
		if !allowed {
			return apperror.New(apperror.ErrCodeConflict, conflictMsg)
		}

		err = tx.GetContext(ctx, locked, `
			UPDATE project_milestones
			SET status = $2, submitted_at = COALESCE($3, submitted_at), rejection_reason = COALESCE($4, rejection_reason), updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`, id, to, submittedAt, reason)
		if err != nil {
			return fmt.Errorf("milestone repository: transition %w", err)
		}
		milestone = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return milestone, nil
}

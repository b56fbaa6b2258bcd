package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/construction-backend/internal/models"
	"github.com/ignatzorin/construction-backend/internal/pkg/apperror"
	"github.com/ignatzorin/construction-backend/internal/repository/common"
)

type BidRepository struct {
	db *sqlx.DB
}

func NewBidRepository(db *sqlx.DB) *BidRepository {
	return &BidRepository{db: db}
}

// Create создаёт ставку в статусе pending.
func (r *BidRepository) Create(ctx context.Context, bid *models.Bid) (*models.Bid, error) {
	var created models.Bid
	err := r.db.GetContext(ctx, &created, `
		INSERT INTO bids (client_id, provider_id, service_type, offered_price, estimated_duration_days, proposal, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`, bid.ClientID, bid.ProviderID, bid.ServiceType, bid.OfferedPrice, bid.EstimatedDurationDays, bid.Proposal, models.BidStatusPending, bid.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("bid repository: create %w", err)
	}
	return &created, nil
}

// GetByID возвращает ставку по ID.
func (r *BidRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	return common.GetByID[models.Bid](ctx, r.db, "bids", id, apperror.ErrBidNotFound)
}

// Respond переводит ставку из pending в accepted или rejected.
func (r *BidRepository) Respond(ctx context.Context, id uuid.UUID, status string) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.GetContext(ctx, &bid, `
		UPDATE bids SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING *
	`, id, status, models.BidStatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Строка существует, но не в pending, либо её нет вовсе.
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, apperror.New(apperror.ErrCodeConflict, "ответить можно только на ожидающую ставку")
		}
		return nil, fmt.Errorf("bid repository: respond %w", err)
	}
	return &bid, nil
}

// ConvertToProject атомарно помечает принятую ставку как конвертированную и
// создаёт проект. Повторный вызов не создаёт второй проект: если
// converted_to_project_id уже заполнен, возвращается существующий проект.
func (r *BidRepository) ConvertToProject(ctx context.Context, id uuid.UUID, commissionPercent float64) (*models.Project, error) {
	var project models.Project
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		bid, err := common.GetByIDForUpdate[models.Bid](ctx, tx, "bids", id, apperror.ErrBidNotFound)
		if err != nil {
			return err
		}

		// Идемпотентность: ставка уже конвертирована.
		if bid.ConvertedToProjectID != nil {
			return tx.GetContext(ctx, &project, `SELECT * FROM projects WHERE id = $1`, *bid.ConvertedToProjectID)
		}

		if bid.Status != models.BidStatusAccepted {
			return apperror.New(apperror.ErrCodeConflict, "конвертировать можно только принятую ставку")
		}

		err = tx.GetContext(ctx, &project, `
			INSERT INTO projects (client_id, provider_id, title, status, total_budget, platform_commission_percent)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING *
		`, bid.ClientID, bid.ProviderID, bid.ServiceType, models.ProjectStatusPending, bid.OfferedPrice, commissionPercent)
		if err != nil {
			return fmt.Errorf("bid repository: create project %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE bids SET status = $2, converted_to_project_id = $3, updated_at = NOW() WHERE id = $1
		`, bid.ID, models.BidStatusConverted, project.ID)
		if err != nil {
			return fmt.Errorf("bid repository: mark converted %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// SweepExpired помечает просроченные pending ставки как expired.
// Принятые и конвертированные ставки не затрагиваются.
func (r *BidRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bids SET status = $1, updated_at = NOW()
		WHERE status = $2 AND expires_at < $3
	`, models.BidStatusExpired, models.BidStatusPending, now)
	if err != nil {
		return 0, fmt.Errorf("bid repository: sweep expired %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// ListByUser возвращает ставки, где пользователь выступает любой из сторон.
func (r *BidRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.SelectContext(ctx, &bids, `
		SELECT * FROM bids WHERE client_id = $1 OR provider_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return bids, err
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/construction-backend/internal/models"
)

type EventRepository struct {
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// insertEventTx добавляет запись журнала событий внутри транзакции,
// породившей событие. Рассылка подписчикам выполняется после фиксации.
func insertEventTx(ctx context.Context, tx *sqlx.Tx, projectID uuid.UUID, eventType string, payload interface{}) (*models.DomainEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("event repository: marshal payload: %w", err)
	}

	var event models.DomainEvent
	err = tx.GetContext(ctx, &event, `
		INSERT INTO domain_events (project_id, type, payload)
		VALUES ($1, $2, $3)
		RETURNING id, project_id, type, payload, created_at
	`, projectID, eventType, raw)
	if err != nil {
		return nil, fmt.Errorf("event repository: insert %s: %w", eventType, err)
	}
	return &event, nil
}

// ListByProject возвращает журнал событий проекта в порядке создания.
func (r *EventRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.DomainEvent, error) {
	var events []models.DomainEvent
	err := r.db.SelectContext(ctx, &events, `
		SELECT * FROM domain_events WHERE project_id = $1 ORDER BY created_at ASC
	`, projectID)
	return events, err
}

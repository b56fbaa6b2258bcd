package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/construction-backend/internal/models"
	"github.com/ignatzorin/construction-backend/internal/pkg/apperror"
	"github.com/ignatzorin/construction-backend/internal/validation"
)

// DisputeRepository описывает зависимости DisputeService от слоя хранилища.
type DisputeRepository interface {
	CreateWithFreeze(ctx context.Context, d *models.Dispute) (*models.Dispute, *models.DomainEvent, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	Assign(ctx context.Context, id, adminID uuid.UUID) (*models.Dispute, error)
	MarkResolved(ctx context.Context, id uuid.UUID, outcome, details string, projectStatus string, now time.Time) (*models.Dispute, *models.DomainEvent, error)
	Close(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Dispute, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.Dispute, error)
}

// DisputeEscrowRepository выполняет движения средств при разрешении спора.
type DisputeEscrowRepository interface {
	ListDisputedByProject(ctx context.Context, projectID uuid.UUID) ([]models.Escrow, error)
	Release(ctx context.Context, id uuid.UUID, amount *float64, reason string, commissionPercent float64, fromDispute bool, now time.Time) (*models.Escrow, *models.Payment, *models.DomainEvent, error)
	Refund(ctx context.Context, id uuid.UUID, amount *float64, reason string, fromDispute bool, now time.Time) (*models.Escrow, *models.Payment, *models.DomainEvent, error)
	ClearDispute(ctx context.Context, id uuid.UUID) (*models.Escrow, error)
}

// DisputeProjectRepository даёт DisputeService доступ к проектам.
type DisputeProjectRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

// DisputeService управляет спорами и их разрешением.
type DisputeService struct {
	repo      DisputeRepository
	escrows   DisputeEscrowRepository
	projects  DisputeProjectRepository
	publisher EventPublisher
}

// NewDisputeService создаёт сервис споров.
func NewDisputeService(repo DisputeRepository, escrows DisputeEscrowRepository, projects DisputeProjectRepository, publisher EventPublisher) *DisputeService {
	return &DisputeService{
		repo:      repo,
		escrows:   escrows,
		projects:  projects,
		publisher: publisher,
	}
}

// RaiseDisputeInput содержит данные нового спора.
type RaiseDisputeInput struct {
	ProjectID   uuid.UUID
	DisputeType string
	Description string
	Evidence    json.RawMessage
}

// Raise открывает спор по проекту. Спор открывает участник проекта против
// второй стороны; все неконечные escrow проекта замораживаются.
func (s *DisputeService) Raise(ctx context.Context, in RaiseDisputeInput, actorID uuid.UUID) (*models.Dispute, error) {
	if _, ok := models.ValidDisputeTypes[in.DisputeType]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный тип спора")
	}
	if err := validation.ValidateLength("описание спора", in.Description, validation.MinDisputeDescriptionLength, validation.MaxDisputeDescriptionLength); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}

	var against uuid.UUID
	switch actorID {
	case project.ClientID:
		against = project.ProviderID
	case project.ProviderID:
		against = project.ClientID
	default:
		return nil, apperror.New(apperror.ErrCodeForbidden, "открыть спор может только участник проекта")
	}

	dispute := &models.Dispute{
		ProjectID:   in.ProjectID,
		RaisedByID:  actorID,
		AgainstID:   against,
		DisputeType: in.DisputeType,
		Description: in.Description,
		Evidence:    in.Evidence,
	}

	created, event, err := s.repo.CreateWithFreeze(ctx, dispute)
	if err != nil {
		return nil, err
	}
	publish(s.publisher, event)
	return created, nil
}

// Get возвращает спор, доступный сторонам и администраторам.
func (s *DisputeService) Get(ctx context.Context, id, actorID uuid.UUID, actorRole string) (*models.Dispute, error) {
	dispute, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && dispute.RaisedByID != actorID && dispute.AgainstID != actorID {
		return nil, apperror.ErrForbidden
	}
	return dispute, nil
}

// Assign назначает спор администратору. Назначать может только администратор.
func (s *DisputeService) Assign(ctx context.Context, id, adminID uuid.UUID, actorRole string) (*models.Dispute, error) {
	if actorRole != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "назначать споры может только администратор")
	}
	return s.repo.Assign(ctx, id, adminID)
}

// EscrowSplit задаёт раздел средств одного escrow при исходе split.
type EscrowSplit struct {
	EscrowID      uuid.UUID `json:"escrow_id"`
	ReleaseAmount float64   `json:"release_amount"`
	RefundAmount  float64   `json:"refund_amount"`
}

// ResolveDisputeInput содержит решение администратора по спору.
type ResolveDisputeInput struct {
	DisputeID uuid.UUID
	Outcome   string
	Details   string
	Splits    []EscrowSplit
}

// Resolve применяет исход спора к замороженным escrow проекта и снимает
// удержание. favor_client возвращает все средства клиенту и отменяет проект,
// favor_provider освобождает все средства подрядчику, split делит каждый
// escrow по заданным суммам, no_action размораживает escrow без движений.
func (s *DisputeService) Resolve(ctx context.Context, in ResolveDisputeInput, actorID uuid.UUID, actorRole string, now time.Time) (*models.Dispute, error) {
	if actorRole != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "разрешать споры может только администратор")
	}
	if _, ok := models.ValidDisputeOutcomes[in.Outcome]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный исход спора")
	}

	dispute, err := s.repo.GetByID(ctx, in.DisputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Status != models.DisputeStatusUnderReview {
		return nil, apperror.New(apperror.ErrCodeConflict, "разрешается только спор, назначенный на рассмотрение")
	}

	project, err := s.projects.GetByID(ctx, dispute.ProjectID)
	if err != nil {
		return nil, err
	}

	frozen, err := s.escrows.ListDisputedByProject(ctx, dispute.ProjectID)
	if err != nil {
		return nil, err
	}

	reason := fmt.Sprintf("разрешение спора: %s", in.Outcome)
	projectStatus := models.ProjectStatusInProgress

	switch in.Outcome {
	case models.DisputeOutcomeFavorClient:
		for _, e := range frozen {
			_, _, event, err := s.escrows.Refund(ctx, e.ID, nil, reason, true, now)
			if err != nil {
				return nil, err
			}
			publish(s.publisher, event)
		}
		projectStatus = models.ProjectStatusCancelled

	case models.DisputeOutcomeFavorProvider:
		for _, e := range frozen {
			_, _, event, err := s.escrows.Release(ctx, e.ID, nil, reason, project.PlatformCommissionPercent, true, now)
			if err != nil {
				return nil, err
			}
			publish(s.publisher, event)
		}

	case models.DisputeOutcomeSplit:
		if err := validateSplits(frozen, in.Splits); err != nil {
			return nil, err
		}
		for _, split := range in.Splits {
			if split.ReleaseAmount > 0 {
				amount := split.ReleaseAmount
				_, _, event, err := s.escrows.Release(ctx, split.EscrowID, &amount, reason, project.PlatformCommissionPercent, true, now)
				if err != nil {
					return nil, err
				}
				publish(s.publisher, event)
			}
			if split.RefundAmount > 0 {
				amount := split.RefundAmount
				_, _, event, err := s.escrows.Refund(ctx, split.EscrowID, &amount, reason, true, now)
				if err != nil {
					return nil, err
				}
				publish(s.publisher, event)
			}
		}

	case models.DisputeOutcomeNoAction:
		for _, e := range frozen {
			if _, err := s.escrows.ClearDispute(ctx, e.ID); err != nil {
				return nil, err
			}
		}
	}

	resolved, event, err := s.repo.MarkResolved(ctx, in.DisputeID, in.Outcome, in.Details, projectStatus, now)
	if err != nil {
		return nil, err
	}
	publish(s.publisher, event)
	return resolved, nil
}

// Close закрывает разрешённый спор. Закрыть может администратор или
// инициатор спора.
func (s *DisputeService) Close(ctx context.Context, id, actorID uuid.UUID, actorRole string) (*models.Dispute, error) {
	dispute, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && dispute.RaisedByID != actorID {
		return nil, apperror.ErrForbidden
	}
	return s.repo.Close(ctx, id)
}

// ListByProject возвращает споры проекта.
func (s *DisputeService) ListByProject(ctx context.Context, projectID, actorID uuid.UUID, actorRole string) ([]models.Dispute, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && project.ClientID != actorID && project.ProviderID != actorID {
		return nil, apperror.ErrForbidden
	}
	return s.repo.ListByProject(ctx, projectID)
}

// ListByStatus возвращает споры по статусу. Доступно администраторам.
func (s *DisputeService) ListByStatus(ctx context.Context, status string, actorRole string, limit, offset int) ([]models.Dispute, error) {
	if actorRole != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByStatus(ctx, status, limit, offset)
}

// validateSplits проверяет, что раздел покрывает каждый замороженный escrow
// ровно на его удержанный остаток.
func validateSplits(frozen []models.Escrow, splits []EscrowSplit) error {
	byID := make(map[uuid.UUID]*models.Escrow, len(frozen))
	for i := range frozen {
		byID[frozen[i].ID] = &frozen[i]
	}

	seen := make(map[uuid.UUID]struct{}, len(splits))
	for _, split := range splits {
		e, ok := byID[split.EscrowID]
		if !ok {
			return apperror.New(apperror.ErrCodeValidation, "escrow не заморожен по этому спору")
		}
		if _, dup := seen[split.EscrowID]; dup {
			return apperror.New(apperror.ErrCodeValidation, "escrow указан в разделе дважды")
		}
		seen[split.EscrowID] = struct{}{}

		if split.ReleaseAmount < 0 || split.RefundAmount < 0 {
			return apperror.New(apperror.ErrCodeValidation, "суммы раздела не могут быть отрицательными")
		}
		if split.ReleaseAmount > 0 {
			if err := validation.ValidateAmount("сумма освобождения в разделе", split.ReleaseAmount); err != nil {
				return apperror.New(apperror.ErrCodeValidation, err.Error())
			}
		}
		if split.RefundAmount > 0 {
			if err := validation.ValidateAmount("сумма возврата в разделе", split.RefundAmount); err != nil {
				return apperror.New(apperror.ErrCodeValidation, err.Error())
			}
		}
		if split.ReleaseAmount+split.RefundAmount != e.HeldAmount {
			return apperror.New(apperror.ErrCodeValidation,
				fmt.Sprintf("раздел escrow должен покрывать удержанный остаток %.0f полностью", e.HeldAmount))
		}
	}

	if len(seen) != len(frozen) {
		return apperror.New(apperror.ErrCodeValidation, "раздел должен охватывать все замороженные escrow")
	}
	return nil
}

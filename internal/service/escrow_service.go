package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/construction-backend/internal/logger"
	"github.com/ignatzorin/construction-backend/internal/models"
	"github.com/ignatzorin/construction-backend/internal/pkg/apperror"
	"github.com/ignatzorin/construction-backend/internal/validation"
)

// EscrowRepository описывает зависимости EscrowService от слоя хранилища.
type EscrowRepository interface {
	Hold(ctx context.Context, e *models.Escrow, fromWallet bool, now time.Time) (*models.Escrow, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Escrow, error)
	Release(ctx context.Context, id uuid.UUID, amount *float64, reason string, commissionPercent float64, fromDispute bool, now time.Time) (*models.Escrow, *models.Payment, *models.DomainEvent, error)
	Refund(ctx context.Context, id uuid.UUID, amount *float64, reason string, fromDispute bool, now time.Time) (*models.Escrow, *models.Payment, *models.DomainEvent, error)
	Cancel(ctx context.Context, id uuid.UUID, now time.Time) (*models.Escrow, error)
	ListAutoReleasable(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// EscrowProjectRepository даёт EscrowService доступ к проектам.
type EscrowProjectRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

// EscrowMilestoneRepository даёт EscrowService доступ к этапам.
type EscrowMilestoneRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProjectMilestone, error)
}

// EscrowService управляет удержанием и движением средств escrow.
type EscrowService struct {
	repo            EscrowRepository
	projects        EscrowProjectRepository
	milestones      EscrowMilestoneRepository
	publisher       EventPublisher
	autoReleaseDays int
}

// NewEscrowService создаёт сервис escrow.
func NewEscrowService(repo EscrowRepository, projects EscrowProjectRepository, milestones EscrowMilestoneRepository, publisher EventPublisher, autoReleaseDays int) *EscrowService {
	return &EscrowService{
		repo:            repo,
		projects:        projects,
		milestones:      milestones,
		publisher:       publisher,
		autoReleaseDays: autoReleaseDays,
	}
}

// HoldInput содержит данные нового удержания.
type HoldInput struct {
	ProjectID          uuid.UUID
	MilestoneID        *uuid.UUID
	Amount             float64
	FromWallet         bool
	AutoReleaseEnabled bool
	AutoReleaseDays    int
}

// Hold размещает средства клиента в escrow по выполняемому проекту.
func (s *EscrowService) Hold(ctx context.Context, in HoldInput, actorID uuid.UUID, now time.Time) (*models.Escrow, error) {
	if err := validation.ValidateAmount("сумма удержания", in.Amount); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.ClientID != actorID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "размещать средства в escrow может только клиент")
	}
	if project.Status != models.ProjectStatusInProgress {
		return nil, apperror.New(apperror.ErrCodeConflict, "escrow создаётся только по выполняемому проекту")
	}

	days := in.AutoReleaseDays
	if days <= 0 {
		days = s.autoReleaseDays
	}

	escrow := &models.Escrow{
		ProjectID:          in.ProjectID,
		MilestoneID:        in.MilestoneID,
		PayerID:            project.ClientID,
		PayeeID:            project.ProviderID,
		Amount:             in.Amount,
		AutoReleaseEnabled: in.AutoReleaseEnabled,
		AutoReleaseDays:    days,
	}
	if in.AutoReleaseEnabled {
		scheduled := now.AddDate(0, 0, days)
		escrow.ReleaseScheduledAt = &scheduled
	}

	return s.repo.Hold(ctx, escrow, in.FromWallet, now)
}

// Get возвращает escrow, доступный участникам и администраторам.
func (s *EscrowService) Get(ctx context.Context, id, actorID uuid.UUID, actorRole string) (*models.Escrow, error) {
	escrow, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && escrow.PayerID != actorID && escrow.PayeeID != actorID {
		return nil, apperror.ErrForbidden
	}
	return escrow, nil
}

// ListByProject возвращает escrow проекта.
func (s *EscrowService) ListByProject(ctx context.Context, projectID, actorID uuid.UUID, actorRole string) ([]models.Escrow, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && project.ClientID != actorID && project.ProviderID != actorID {
		return nil, apperror.ErrForbidden
	}
	return s.repo.ListByProject(ctx, projectID)
}

// Release освобождает средства подрядчику. Вызывает клиент или
// администратор; escrow этапа освобождается только после одобрения этапа
// клиентом. Комиссия платформы удерживается из освобождаемой суммы.
func (s *EscrowService) Release(ctx context.Context, id uuid.UUID, amount *float64, reason string, actorID uuid.UUID, actorRole string, now time.Time) (*models.Escrow, error) {
	if amount != nil {
		if err := validation.ValidateAmount("сумма освобождения", *amount); err != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
		}
	}

	escrow, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && escrow.PayerID != actorID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "освободить средства может только клиент")
	}

	if escrow.MilestoneID != nil {
		milestone, err := s.milestones.GetByID(ctx, *escrow.MilestoneID)
		if err != nil {
			return nil, err
		}
		if !milestone.ClientApproved {
			return nil, apperror.New(apperror.ErrCodeConflict, "этап ещё не одобрен клиентом")
		}
	}

	project, err := s.projects.GetByID(ctx, escrow.ProjectID)
	if err != nil {
		return nil, err
	}

	released, _, event, err := s.repo.Release(ctx, id, amount, reason, project.PlatformCommissionPercent, false, now)
	if err != nil {
		return nil, err
	}
	publish(s.publisher, event)
	return released, nil
}

// Refund возвращает средства клиенту. Добровольный возврат инициирует
// подрядчик или администратор; клиентский путь возврата — спор.
func (s *EscrowService) Refund(ctx context.Context, id uuid.UUID, amount *float64, reason string, actorID uuid.UUID, actorRole string, now time.Time) (*models.Escrow, error) {
	if amount != nil {
		if err := validation.ValidateAmount("сумма возврата", *amount); err != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
		}
	}

	escrow, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && escrow.PayeeID != actorID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "добровольный возврат инициирует подрядчик")
	}

	refunded, _, event, err := s.repo.Refund(ctx, id, amount, reason, false, now)
	if err != nil {
		return nil, err
	}
	publish(s.publisher, event)
	return refunded, nil
}

// Cancel отменяет escrow без движения средств по нему.
func (s *EscrowService) Cancel(ctx context.Context, id, actorID uuid.UUID, actorRole string, now time.Time) (*models.Escrow, error) {
	escrow, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && escrow.PayerID != actorID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "отменить escrow может только клиент")
	}
	return s.repo.Cancel(ctx, id, now)
}

// AutoReleaseSweep освобождает средства по escrow, чей срок автоосвобождения
// наступил. Ошибка по одному escrow не останавливает остальные; вызов
// идемпотентен.
func (s *EscrowService) AutoReleaseSweep(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.repo.ListAutoReleasable(ctx, now)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, id := range ids {
		escrow, err := s.repo.GetByID(ctx, id)
		if err != nil {
			continue
		}
		project, err := s.projects.GetByID(ctx, escrow.ProjectID)
		if err != nil {
			continue
		}

		_, _, event, err := s.repo.Release(ctx, id, nil, "auto-release", project.PlatformCommissionPercent, false, now)
		if err != nil {
			if logger.Log != nil {
				logger.Log.WithFields(map[string]interface{}{
					"escrow_id": id,
					"error":     err.Error(),
				}).Warn("escrow service: автоосвобождение не выполнено")
			}
			continue
		}
		publish(s.publisher, event)
		released++
	}
	return released, nil
}

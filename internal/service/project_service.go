package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/construction-backend/internal/models"
	"github.com/ignatzorin/construction-backend/internal/pkg/apperror"
)

// ProjectRepository описывает зависимости ProjectService от слоя хранилища.
type ProjectRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	UpdateStatusGuarded(ctx context.Context, id uuid.UUID, to string, allowedFrom []string, reason *string) (*models.Project, error)
	CountUnapprovedMilestones(ctx context.Context, projectID uuid.UUID) (int, error)
	CountMilestones(ctx context.Context, projectID uuid.UUID) (int, error)
	CountUnsettledEscrows(ctx context.Context, projectID uuid.UUID) (int, error)
	HasCompletedFullPayment(ctx context.Context, projectID uuid.UUID, totalBudget float64) (bool, error)
	ActiveContractExists(ctx context.Context, projectID uuid.UUID) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Project, error)
}

// ProjectEventRepository читает журнал событий проекта.
type ProjectEventRepository interface {
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.DomainEvent, error)
}

// ContractCompleter завершает контракт проекта при завершении проекта.
type ContractCompleter interface {
	Complete(ctx context.Context, projectID uuid.UUID) error
}

// ProjectService управляет жизненным циклом проектов.
type ProjectService struct {
	repo      ProjectRepository
	events    ProjectEventRepository
	contracts ContractCompleter
}

// NewProjectService создаёт сервис проектов.
func NewProjectService(repo ProjectRepository, events ProjectEventRepository, contracts ContractCompleter) *ProjectService {
	return &ProjectService{
		repo:      repo,
		events:    events,
		contracts: contracts,
	}
}

// ComputeSplit делит бюджет на комиссию платформы и долю подрядчика.
// Комиссия округляется вверх до целого динара, подрядчик получает остаток:
// commission + provider == totalBudget всегда.
func ComputeSplit(totalBudget, commissionPercent float64) (commission, provider float64) {
	commission = models.PlatformFee(totalBudget, commissionPercent)
	provider = totalBudget - commission
	return commission, provider
}

// Get возвращает проект, доступный участникам и администраторам.
func (s *ProjectService) Get(ctx context.Context, id, actorID uuid.UUID, actorRole string) (*models.Project, error) {
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && project.ClientID != actorID && project.ProviderID != actorID {
		return nil, apperror.ErrForbidden
	}
	return project, nil
}

// Accept подтверждает участие подрядчика в проекте.
func (s *ProjectService) Accept(ctx context.Context, id, actorID uuid.UUID) (*models.Project, error) {
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.ProviderID != actorID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "принять проект может только подрядчик")
	}
	return s.repo.UpdateStatusGuarded(ctx, id, models.ProjectStatusAccepted,
		[]string{models.ProjectStatusPending}, nil)
}

// Reject отклоняет проект с обязательной причиной.
func (s *ProjectService) Reject(ctx context.Context, id, actorID uuid.UUID, reason string) (*models.Project, error) {
	if reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "причина отклонения обязательна")
	}
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.ProviderID != actorID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "отклонить проект может только подрядчик")
	}
	return s.repo.UpdateStatusGuarded(ctx, id, models.ProjectStatusRejected,
		[]string{models.ProjectStatusPending}, &reason)
}

// Start переводит проект в работу. Требуется контракт, подписанный обеими
// сторонами.
func (s *ProjectService) Start(ctx context.Context, id, actorID uuid.UUID) (*models.Project, error) {
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.ClientID != actorID && project.ProviderID != actorID {
		return nil, apperror.ErrForbidden
	}

	hasContract, err := s.repo.ActiveContractExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !hasContract {
		return nil, apperror.New(apperror.ErrCodeConflict, "для начала работ требуется контракт, подписанный обеими сторонами")
	}

	return s.repo.UpdateStatusGuarded(ctx, id, models.ProjectStatusInProgress,
		[]string{models.ProjectStatusAccepted}, nil)
}

// Complete завершает проект. Все этапы должны быть одобрены, все escrow
// рассчитаны; проект без этапов требует завершённого платежа на полный
// бюджет.
func (s *ProjectService) Complete(ctx context.Context, id, actorID uuid.UUID) (*models.Project, error) {
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.ClientID != actorID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "завершить проект может только клиент")
	}

	total, err := s.repo.CountMilestones(ctx, id)
	if err != nil {
		return nil, err
	}
	if total > 0 {
		unapproved, err := s.repo.CountUnapprovedMilestones(ctx, id)
		if err != nil {
			return nil, err
		}
		if unapproved > 0 {
			return nil, apperror.New(apperror.ErrCodeConflict, "не все этапы одобрены клиентом")
		}
	} else {
		paid, err := s.repo.HasCompletedFullPayment(ctx, id, project.TotalBudget)
		if err != nil {
			return nil, err
		}
		if !paid {
			return nil, apperror.New(apperror.ErrCodeConflict, "проект без этапов завершается только после полной оплаты")
		}
	}

	unsettled, err := s.repo.CountUnsettledEscrows(ctx, id)
	if err != nil {
		return nil, err
	}
	if unsettled > 0 {
		return nil, apperror.New(apperror.ErrCodeConflict, "по проекту остались нерассчитанные escrow")
	}

	completed, err := s.repo.UpdateStatusGuarded(ctx, id, models.ProjectStatusCompleted,
		[]string{models.ProjectStatusInProgress}, nil)
	if err != nil {
		return nil, err
	}

	// Контракт закрывается вместе с проектом.
	if s.contracts != nil {
		if err := s.contracts.Complete(ctx, id); err != nil {
			return nil, err
		}
	}

	return completed, nil
}

// Cancel отменяет проект. Отмена проекта в работе возможна только когда по
// нему нет нерассчитанных escrow.
func (s *ProjectService) Cancel(ctx context.Context, id, actorID uuid.UUID, actorRole, reason string) (*models.Project, error) {
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && project.ClientID != actorID && project.ProviderID != actorID {
		return nil, apperror.ErrForbidden
	}

	if project.Status == models.ProjectStatusInProgress {
		unsettled, err := s.repo.CountUnsettledEscrows(ctx, id)
		if err != nil {
			return nil, err
		}
		if unsettled > 0 {
			return nil, apperror.New(apperror.ErrCodeConflict, "сначала рассчитайте escrow проекта")
		}
	}

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}

	return s.repo.UpdateStatusGuarded(ctx, id, models.ProjectStatusCancelled,
		[]string{models.ProjectStatusPending, models.ProjectStatusAccepted, models.ProjectStatusInProgress}, reasonPtr)
}

// ListByUser возвращает проекты пользователя.
func (s *ProjectService) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Project, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// History возвращает журнал доменных событий проекта.
func (s *ProjectService) History(ctx context.Context, id, actorID uuid.UUID, actorRole string) ([]models.DomainEvent, error) {
	if _, err := s.Get(ctx, id, actorID, actorRole); err != nil {
		return nil, err
	}
	return s.events.ListByProject(ctx, id)
}

package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/construction-backend/internal/models"
	"github.com/ignatzorin/construction-backend/internal/pkg/apperror"
	"github.com/ignatzorin/construction-backend/internal/validation"
)

// MilestoneRepository описывает зависимости MilestoneService от слоя хранилища.
type MilestoneRepository interface {
	Create(ctx context.Context, m *models.ProjectMilestone) (*models.ProjectMilestone, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProjectMilestone, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMilestone, error)
	Start(ctx context.Context, id uuid.UUID) (*models.ProjectMilestone, error)
	Submit(ctx context.Context, id uuid.UUID, now time.Time) (*models.ProjectMilestone, error)
	Approve(ctx context.Context, id uuid.UUID, now time.Time) (*models.ProjectMilestone, *models.DomainEvent, error)
	Reject(ctx context.Context, id uuid.UUID, reason string) (*models.ProjectMilestone, error)
}

// MilestoneProjectRepository даёт MilestoneService доступ к проектам.
type MilestoneProjectRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

// MilestoneService управляет этапами работ.
type MilestoneService struct {
	repo      MilestoneRepository
	projects  MilestoneProjectRepository
	publisher EventPublisher
}

// NewMilestoneService создаёт сервис этапов.
func NewMilestoneService(repo MilestoneRepository, projects MilestoneProjectRepository, publisher EventPublisher) *MilestoneService {
	return &MilestoneService{
		repo:      repo,
		projects:  projects,
		publisher: publisher,
	}
}

// CreateMilestoneInput содержит данные нового этапа.
type CreateMilestoneInput struct {
	ProjectID              uuid.UUID
	Title                  string
	Description            *string
	MilestoneOrder         int
	Amount                 float64
	ExpectedCompletionDate *time.Time
}

// Create добавляет этап в проект. Этапы добавляет клиент; сумма всех этапов
// не может превысить бюджет проекта.
func (s *MilestoneService) Create(ctx context.Context, in CreateMilestoneInput, actorID uuid.UUID) (*models.ProjectMilestone, error) {
	if err := validation.ValidateLength("название этапа", in.Title, validation.MinMilestoneTitleLength, validation.MaxMilestoneTitleLength); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateAmount("сумма этапа", in.Amount); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if in.MilestoneOrder <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "порядковый номер этапа должен быть положительным")
	}

	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.ClientID != actorID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "этапы добавляет только клиент")
	}
	if project.Status != models.ProjectStatusAccepted && project.Status != models.ProjectStatusInProgress {
		return nil, apperror.New(apperror.ErrCodeConflict, "этапы добавляются в принятый или выполняемый проект")
	}

	milestone := &models.ProjectMilestone{
		ProjectID:              in.ProjectID,
		Title:                  in.Title,
		Description:            in.Description,
		MilestoneOrder:         in.MilestoneOrder,
		Amount:                 in.Amount,
		Status:                 models.MilestoneStatusPending,
		ExpectedCompletionDate: in.ExpectedCompletionDate,
	}

	return s.repo.Create(ctx, milestone)
}

// List возвращает этапы проекта в порядке выполнения.
func (s *MilestoneService) List(ctx context.Context, projectID, actorID uuid.UUID, actorRole string) ([]models.ProjectMilestone, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && project.ClientID != actorID && project.ProviderID != actorID {
		return nil, apperror.ErrForbidden
	}
	return s.repo.ListByProject(ctx, projectID)
}

// Start переводит этап в работу. Начинает этап подрядчик.
func (s *MilestoneService) Start(ctx context.Context, id, actorID uuid.UUID) (*models.ProjectMilestone, error) {
	if err := s.requireParty(ctx, id, actorID, partyProvider, "начать этап может только подрядчик"); err != nil {
		return nil, err
	}
	return s.repo.Start(ctx, id)
}

// Submit сдаёт выполненный этап на приёмку клиенту.
func (s *MilestoneService) Submit(ctx context.Context, id, actorID uuid.UUID, now time.Time) (*models.ProjectMilestone, error) {
	if err := s.requireParty(ctx, id, actorID, partyProvider, "сдать этап может только подрядчик"); err != nil {
		return nil, err
	}
	return s.repo.Submit(ctx, id, now)
}

// Approve одобряет сданный этап. Одобрение открывает этап для выплаты.
func (s *MilestoneService) Approve(ctx context.Context, id, actorID uuid.UUID, now time.Time) (*models.ProjectMilestone, error) {
	if err := s.requireParty(ctx, id, actorID, partyClient, "одобрить этап может только клиент"); err != nil {
		return nil, err
	}
	milestone, event, err := s.repo.Approve(ctx, id, now)
	if err != nil {
		return nil, err
	}
	publish(s.publisher, event)
	return milestone, nil
}

// Reject возвращает сданный этап в работу с обязательной причиной.
func (s *MilestoneService) Reject(ctx context.Context, id, actorID uuid.UUID, reason string) (*models.ProjectMilestone, error) {
	if reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "причина отклонения обязательна")
	}
	if err := s.requireParty(ctx, id, actorID, partyClient, "отклонить этап может только клиент"); err != nil {
		return nil, err
	}
	return s.repo.Reject(ctx, id, reason)
}

const (
	partyClient   = "client"
	partyProvider = "provider"
)

func (s *MilestoneService) requireParty(ctx context.Context, milestoneID, actorID uuid.UUID, party, denyMsg string) error {
	milestone, err := s.repo.GetByID(ctx, milestoneID)
	if err != nil {
		return err
	}
	project, err := s.projects.GetByID(ctx, milestone.ProjectID)
	if err != nil {
		return err
	}

	var expected uuid.UUID
	if party == partyClient {
		expected = project.ClientID
	} else {
		expected = project.ProviderID
	}
	if actorID != expected {
		return apperror.New(apperror.ErrCodeForbidden, denyMsg)
	}
	return nil
}

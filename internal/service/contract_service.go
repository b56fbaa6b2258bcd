package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/construction-backend/internal/models"
	"github.com/ignatzorin/construction-backend/internal/pkg/apperror"
)

// ContractRepository описывает зависимости ContractService от слоя хранилища.
type ContractRepository interface {
	Create(ctx context.Context, c *models.Contract) (*models.Contract, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	GetByProjectID(ctx context.Context, projectID uuid.UUID) (*models.Contract, error)
	Sign(ctx context.Context, id uuid.UUID, party string, now time.Time) (*models.Contract, *models.DomainEvent, error)
	Terminate(ctx context.Context, id uuid.UUID, reason string) (*models.Contract, error)
}

// ContractProjectRepository даёт ContractService доступ к проектам.
type ContractProjectRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

// ContractService управляет контрактами проектов.
type ContractService struct {
	repo      ContractRepository
	projects  ContractProjectRepository
	publisher EventPublisher
}

// NewContractService создаёт сервис контрактов.
func NewContractService(repo ContractRepository, projects ContractProjectRepository, publisher EventPublisher) *ContractService {
	return &ContractService{
		repo:      repo,
		projects:  projects,
		publisher: publisher,
	}
}

// DraftContractInput содержит условия нового контракта.
type DraftContractInput struct {
	ProjectID          uuid.UUID
	ContractTerms      string
	PaymentTerms       *string
	DeliveryTerms      *string
	CancellationPolicy *string
}

// Draft создаёт контракт по принятому проекту. На проект допускается один
// контракт.
func (s *ContractService) Draft(ctx context.Context, in DraftContractInput, actorID uuid.UUID) (*models.Contract, error) {
	if in.ContractTerms == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "условия контракта обязательны")
	}

	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.ClientID != actorID && project.ProviderID != actorID {
		return nil, apperror.ErrForbidden
	}
	if project.Status != models.ProjectStatusAccepted {
		return nil, apperror.New(apperror.ErrCodeConflict, "контракт создаётся только по принятому проекту")
	}

	contract := &models.Contract{
		ProjectID:          in.ProjectID,
		ClientID:           project.ClientID,
		ProviderID:         project.ProviderID,
		ContractTerms:      in.ContractTerms,
		PaymentTerms:       in.PaymentTerms,
		DeliveryTerms:      in.DeliveryTerms,
		CancellationPolicy: in.CancellationPolicy,
		Status:             models.ContractStatusPendingSignature,
	}

	return s.repo.Create(ctx, contract)
}

// Get возвращает контракт, доступный участникам и администраторам.
func (s *ContractService) Get(ctx context.Context, id, actorID uuid.UUID, actorRole string) (*models.Contract, error) {
	contract, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && contract.ClientID != actorID && contract.ProviderID != actorID {
		return nil, apperror.ErrForbidden
	}
	return contract, nil
}

// GetByProject возвращает контракт проекта.
func (s *ContractService) GetByProject(ctx context.Context, projectID, actorID uuid.UUID, actorRole string) (*models.Contract, error) {
	contract, err := s.repo.GetByProjectID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && contract.ClientID != actorID && contract.ProviderID != actorID {
		return nil, apperror.ErrForbidden
	}
	return contract, nil
}

// Sign подписывает контракт от имени вызывающей стороны. Повторная подпись
// той же стороной — no-op; после подписей обеих сторон контракт становится
// активным.
func (s *ContractService) Sign(ctx context.Context, id, actorID uuid.UUID, now time.Time) (*models.Contract, error) {
	contract, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var party string
	switch actorID {
	case contract.ClientID:
		party = models.ContractPartyClient
	case contract.ProviderID:
		party = models.ContractPartyProvider
	default:
		return nil, apperror.New(apperror.ErrCodeForbidden, "подписывать контракт могут только его стороны")
	}

	signed, event, err := s.repo.Sign(ctx, id, party, now)
	if err != nil {
		return nil, err
	}
	publish(s.publisher, event)
	return signed, nil
}

// Terminate расторгает активный контракт.
func (s *ContractService) Terminate(ctx context.Context, id, actorID uuid.UUID, actorRole, reason string) (*models.Contract, error) {
	if reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "причина расторжения обязательна")
	}
	contract, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && contract.ClientID != actorID && contract.ProviderID != actorID {
		return nil, apperror.ErrForbidden
	}
	return s.repo.Terminate(ctx, id, reason)
}

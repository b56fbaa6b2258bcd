package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/construction-backend/internal/models"
)

type mockContractRepo struct {
	mock.Mock
}

func (m *mockContractRepo) Create(ctx context.Context, c *models.Contract) (*models.Contract, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func (m *mockContractRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func (m *mockContractRepo) GetByProjectID(ctx context.Context, projectID uuid.UUID) (*models.Contract, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func (m *mockContractRepo) Sign(ctx context.Context, id uuid.UUID, party string, now time.Time) (*models.Contract, *models.DomainEvent, error) {
	args := m.Called(ctx, id, party, now)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Contract), nil, args.Error(2)
}

func (m *mockContractRepo) Terminate(ctx context.Context, id uuid.UUID, reason string) (*models.Contract, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func TestContractService_Draft_ProjectNotAccepted(t *testing.T) {
	repo := new(mockContractRepo)
	projects := new(mockProjectGetter)
	svc := NewContractService(repo, projects, nil)
	ctx := context.Background()

	clientID := uuid.New()
	projectID := uuid.New()
	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:       projectID,
		ClientID: clientID,
		Status:   models.ProjectStatusPending,
	}, nil)

	_, err := svc.Draft(ctx, DraftContractInput{
		ProjectID:     projectID,
		ContractTerms: "выполнение работ по смете",
	}, clientID)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "принятому проекту")
}

func TestContractService_Draft_EmptyTerms(t *testing.T) {
	svc := NewContractService(new(mockContractRepo), new(mockProjectGetter), nil)

	_, err := svc.Draft(context.Background(), DraftContractInput{ProjectID: uuid.New()}, uuid.New())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "обязательны")
}

func TestContractService_Sign_ResolvesParty(t *testing.T) {
	repo := new(mockContractRepo)
	svc := NewContractService(repo, new(mockProjectGetter), nil)
	ctx := context.Background()
	now := time.Now()

	clientID := uuid.New()
	providerID := uuid.New()
	contractID := uuid.New()

	repo.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:         contractID,
		ClientID:   clientID,
		ProviderID: providerID,
		Status:     models.ContractStatusPendingSignature,
	}, nil)
	repo.On("Sign", ctx, contractID, models.ContractPartyProvider, now).
		Return(&models.Contract{ID: contractID, ProviderSigned: true}, nil, nil)

	contract, err := svc.Sign(ctx, contractID, providerID, now)
	assert.NoError(t, err)
	assert.True(t, contract.ProviderSigned)
	repo.AssertExpectations(t)
}

func TestContractService_Sign_Stranger(t *testing.T) {
	repo := new(mockContractRepo)
	svc := NewContractService(repo, new(mockProjectGetter), nil)
	ctx := context.Background()

	contractID := uuid.New()
	repo.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:         contractID,
		ClientID:   uuid.New(),
		ProviderID: uuid.New(),
	}, nil)

	_, err := svc.Sign(ctx, contractID, uuid.New(), time.Now())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "стороны")
}

func TestContractService_Terminate_RequiresReason(t *testing.T) {
	svc := NewContractService(new(mockContractRepo), new(mockProjectGetter), nil)

	_, err := svc.Terminate(context.Background(), uuid.New(), uuid.New(), models.RoleClient, "")
	assert.Error(t, err)
}

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

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(event *models.DomainEvent) {
	m.Called(event)
}

type mockMilestoneRepo struct {
	mock.Mock
}

func (m *mockMilestoneRepo) Create(ctx context.Context, ms *models.ProjectMilestone) (*models.ProjectMilestone, error) {
	args := m.Called(ctx, ms)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProjectMilestone), args.Error(1)
}

func (m *mockMilestoneRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ProjectMilestone, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProjectMilestone), args.Error(1)
}

func (m *mockMilestoneRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMilestone, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ProjectMilestone), args.Error(1)
}

func (m *mockMilestoneRepo) Start(ctx context.Context, id uuid.UUID) (*models.ProjectMilestone, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProjectMilestone), args.Error(1)
}

func (m *mockMilestoneRepo) Submit(ctx context.Context, id uuid.UUID, now time.Time) (*models.ProjectMilestone, error) {
	args := m.Called(ctx, id, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProjectMilestone), args.Error(1)
}

func (m *mockMilestoneRepo) Approve(ctx context.Context, id uuid.UUID, now time.Time) (*models.ProjectMilestone, *models.DomainEvent, error) {
	args := m.Called(ctx, id, now)
	var ms *models.ProjectMilestone
	if args.Get(0) != nil {
		ms = args.Get(0).(*models.ProjectMilestone)
	}
	var event *models.DomainEvent
	if args.Get(1) != nil {
		event = args.Get(1).(*models.DomainEvent)
	}
	return ms, event, args.Error(2)
}

func (m *mockMilestoneRepo) Reject(ctx context.Context, id uuid.UUID, reason string) (*models.ProjectMilestone, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProjectMilestone), args.Error(1)
}

func TestMilestoneService_Create_Success(t *testing.T) {
	repo := new(mockMilestoneRepo)
	projects := new(mockProjectGetter)
	svc := NewMilestoneService(repo, projects, nil)
	ctx := context.Background()

	clientID := uuid.New()
	projectID := uuid.New()

	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:       projectID,
		ClientID: clientID,
		Status:   models.ProjectStatusAccepted,
	}, nil)
	repo.On("Create", ctx, mock.MatchedBy(func(ms *models.ProjectMilestone) bool {
		return ms.ProjectID == projectID &&
			ms.MilestoneOrder == 1 &&
			ms.Amount == float64(500000) &&
			ms.Status == models.MilestoneStatusPending
	})).Return(&models.ProjectMilestone{ID: uuid.New()}, nil)

	_, err := svc.Create(ctx, CreateMilestoneInput{
		ProjectID:      projectID,
		Title:          "Заливка фундамента",
		MilestoneOrder: 1,
		Amount:         500000,
	}, clientID)

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestMilestoneService_Create_NotClient(t *testing.T) {
	repo := new(mockMilestoneRepo)
	projects := new(mockProjectGetter)
	svc := NewMilestoneService(repo, projects, nil)
	ctx := context.Background()

	projectID := uuid.New()
	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:       projectID,
		ClientID: uuid.New(),
		Status:   models.ProjectStatusAccepted,
	}, nil)

	_, err := svc.Create(ctx, CreateMilestoneInput{
		ProjectID:      projectID,
		Title:          "Заливка фундамента",
		MilestoneOrder: 1,
		Amount:         500000,
	}, uuid.New())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "только клиент")
	repo.AssertNotCalled(t, "Create")
}

func TestMilestoneService_Create_FractionalAmount(t *testing.T) {
	svc := NewMilestoneService(new(mockMilestoneRepo), new(mockProjectGetter), nil)

	_, err := svc.Create(context.Background(), CreateMilestoneInput{
		ProjectID:      uuid.New(),
		Title:          "Заливка фундамента",
		MilestoneOrder: 1,
		Amount:         500000.5,
	}, uuid.New())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "целым числом динаров")
}

func TestMilestoneService_Create_BadOrder(t *testing.T) {
	svc := NewMilestoneService(new(mockMilestoneRepo), new(mockProjectGetter), nil)

	_, err := svc.Create(context.Background(), CreateMilestoneInput{
		ProjectID:      uuid.New(),
		Title:          "Заливка фундамента",
		MilestoneOrder: 0,
		Amount:         500000,
	}, uuid.New())

	assert.Error(t, err)
}

func TestMilestoneService_Start_NotProvider(t *testing.T) {
	repo := new(mockMilestoneRepo)
	projects := new(mockProjectGetter)
	svc := NewMilestoneService(repo, projects, nil)
	ctx := context.Background()

	milestoneID := uuid.New()
	projectID := uuid.New()

	repo.On("GetByID", ctx, milestoneID).Return(&models.ProjectMilestone{
		ID:        milestoneID,
		ProjectID: projectID,
	}, nil)
	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:         projectID,
		ClientID:   uuid.New(),
		ProviderID: uuid.New(),
	}, nil)

	_, err := svc.Start(ctx, milestoneID, uuid.New())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "только подрядчик")
	repo.AssertNotCalled(t, "Start")
}

func TestMilestoneService_Approve_PublishesEvent(t *testing.T) {
	repo := new(mockMilestoneRepo)
	projects := new(mockProjectGetter)
	publisher := new(mockPublisher)
	svc := NewMilestoneService(repo, projects, publisher)
	ctx := context.Background()

	clientID := uuid.New()
	milestoneID := uuid.New()
	projectID := uuid.New()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	repo.On("GetByID", ctx, milestoneID).Return(&models.ProjectMilestone{
		ID:        milestoneID,
		ProjectID: projectID,
	}, nil)
	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:         projectID,
		ClientID:   clientID,
		ProviderID: uuid.New(),
	}, nil)
	event := &models.DomainEvent{ID: uuid.New(), ProjectID: projectID}
	repo.On("Approve", ctx, milestoneID, now).Return(&models.ProjectMilestone{
		ID:     milestoneID,
		Status: models.MilestoneStatusApproved,
	}, event, nil)
	publisher.On("Publish", event).Return()

	milestone, err := svc.Approve(ctx, milestoneID, clientID, now)

	assert.NoError(t, err)
	assert.Equal(t, models.MilestoneStatusApproved, milestone.Status)
	publisher.AssertExpectations(t)
}

func TestMilestoneService_Reject_RequiresReason(t *testing.T) {
	repo := new(mockMilestoneRepo)
	svc := NewMilestoneService(repo, new(mockProjectGetter), nil)

	_, err := svc.Reject(context.Background(), uuid.New(), uuid.New(), "")

	assert.Error(t, err)
	repo.AssertNotCalled(t, "Reject")
}

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

type mockBidRepo struct {
	mock.Mock
}

func (m *mockBidRepo) Create(ctx context.Context, bid *models.Bid) (*models.Bid, error) {
	args := m.Called(ctx, bid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

func (m *mockBidRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

func (m *mockBidRepo) Respond(ctx context.Context, id uuid.UUID, status string) (*models.Bid, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

func (m *mockBidRepo) ConvertToProject(ctx context.Context, id uuid.UUID, commissionPercent float64) (*models.Project, error) {
	args := m.Called(ctx, id, commissionPercent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *mockBidRepo) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockBidRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Bid, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Bid), args.Error(1)
}

func TestBidService_Create_SetsExpiry(t *testing.T) {
	repo := new(mockBidRepo)
	svc := NewBidService(repo, 72*time.Hour, 10)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	repo.On("Create", ctx, mock.MatchedBy(func(b *models.Bid) bool {
		return b.Status == models.BidStatusPending && b.ExpiresAt.Equal(now.Add(72*time.Hour))
	})).Return(&models.Bid{ID: uuid.New(), Status: models.BidStatusPending}, nil)

	bid, err := svc.Create(ctx, CreateBidInput{
		ClientID:              uuid.New(),
		ProviderID:            uuid.New(),
		ServiceType:           "electrical",
		OfferedPrice:          250000,
		EstimatedDurationDays: 14,
	}, now)
	assert.NoError(t, err)
	assert.NotNil(t, bid)
	repo.AssertExpectations(t)
}

func TestBidService_Create_SelfBid(t *testing.T) {
	svc := NewBidService(new(mockBidRepo), 72*time.Hour, 10)
	userID := uuid.New()

	_, err := svc.Create(context.Background(), CreateBidInput{
		ClientID:              userID,
		ProviderID:            userID,
		ServiceType:           "plumbing",
		OfferedPrice:          100000,
		EstimatedDurationDays: 7,
	}, time.Now())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "самому себе")
}

func TestBidService_Respond_NotProvider(t *testing.T) {
	repo := new(mockBidRepo)
	svc := NewBidService(repo, 72*time.Hour, 10)
	ctx := context.Background()

	bidID := uuid.New()
	repo.On("GetByID", ctx, bidID).Return(&models.Bid{
		ID:         bidID,
		ProviderID: uuid.New(),
		ExpiresAt:  time.Now().Add(time.Hour),
	}, nil)

	_, err := svc.Respond(ctx, bidID, uuid.New(), true, time.Now())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "подрядчик")
}

func TestBidService_Respond_Expired(t *testing.T) {
	repo := new(mockBidRepo)
	svc := NewBidService(repo, 72*time.Hour, 10)
	ctx := context.Background()

	providerID := uuid.New()
	bidID := uuid.New()
	now := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	repo.On("GetByID", ctx, bidID).Return(&models.Bid{
		ID:         bidID,
		ProviderID: providerID,
		ExpiresAt:  now.Add(-time.Minute),
	}, nil)

	_, err := svc.Respond(ctx, bidID, providerID, true, now)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "истёк")
}

func TestBidService_Respond_Accept(t *testing.T) {
	repo := new(mockBidRepo)
	svc := NewBidService(repo, 72*time.Hour, 10)
	ctx := context.Background()

	providerID := uuid.New()
	bidID := uuid.New()
	now := time.Now()
	repo.On("GetByID", ctx, bidID).Return(&models.Bid{
		ID:         bidID,
		ProviderID: providerID,
		ExpiresAt:  now.Add(time.Hour),
	}, nil)
	repo.On("Respond", ctx, bidID, models.BidStatusAccepted).
		Return(&models.Bid{ID: bidID, Status: models.BidStatusAccepted}, nil)

	bid, err := svc.Respond(ctx, bidID, providerID, true, now)
	assert.NoError(t, err)
	assert.Equal(t, models.BidStatusAccepted, bid.Status)
}

func TestBidService_ConvertToProject(t *testing.T) {
	repo := new(mockBidRepo)
	svc := NewBidService(repo, 72*time.Hour, 12)
	ctx := context.Background()

	clientID := uuid.New()
	bidID := uuid.New()
	repo.On("GetByID", ctx, bidID).Return(&models.Bid{
		ID:       bidID,
		ClientID: clientID,
		Status:   models.BidStatusAccepted,
	}, nil)
	repo.On("ConvertToProject", ctx, bidID, float64(12)).
		Return(&models.Project{ID: uuid.New(), Status: models.ProjectStatusPending, PlatformCommissionPercent: 12}, nil)

	project, err := svc.ConvertToProject(ctx, bidID, clientID)
	assert.NoError(t, err)
	assert.Equal(t, float64(12), project.PlatformCommissionPercent)
	repo.AssertExpectations(t)
}

func TestBidService_ConvertToProject_NotClient(t *testing.T) {
	repo := new(mockBidRepo)
	svc := NewBidService(repo, 72*time.Hour, 10)
	ctx := context.Background()

	bidID := uuid.New()
	repo.On("GetByID", ctx, bidID).Return(&models.Bid{
		ID:       bidID,
		ClientID: uuid.New(),
	}, nil)

	_, err := svc.ConvertToProject(ctx, bidID, uuid.New())
	assert.Error(t, err)
}

func TestBidService_SweepExpired(t *testing.T) {
	repo := new(mockBidRepo)
	svc := NewBidService(repo, 72*time.Hour, 10)
	ctx := context.Background()
	now := time.Now()

	repo.On("SweepExpired", ctx, now).Return(int64(3), nil)

	expired, err := svc.SweepExpired(ctx, now)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), expired)
}

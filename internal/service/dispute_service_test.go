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

type mockDisputeRepo struct {
	mock.Mock
}

func (m *mockDisputeRepo) CreateWithFreeze(ctx context.Context, d *models.Dispute) (*models.Dispute, *models.DomainEvent, error) {
	args := m.Called(ctx, d)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Dispute), nil, args.Error(2)
}

func (m *mockDisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) Assign(ctx context.Context, id, adminID uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id, adminID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) MarkResolved(ctx context.Context, id uuid.UUID, outcome, details string, projectStatus string, now time.Time) (*models.Dispute, *models.DomainEvent, error) {
	args := m.Called(ctx, id, outcome, details, projectStatus, now)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Dispute), nil, args.Error(2)
}

func (m *mockDisputeRepo) Close(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Dispute, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, status, limit, offset)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

type mockDisputeEscrows struct {
	mock.Mock
}

func (m *mockDisputeEscrows) ListDisputedByProject(ctx context.Context, projectID uuid.UUID) ([]models.Escrow, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).([]models.Escrow), args.Error(1)
}

func (m *mockDisputeEscrows) Release(ctx context.Context, id uuid.UUID, amount *float64, reason string, commissionPercent float64, fromDispute bool, now time.Time) (*models.Escrow, *models.Payment, *models.DomainEvent, error) {
	args := m.Called(ctx, id, amount, reason, commissionPercent, fromDispute, now)
	if args.Get(0) == nil {
		return nil, nil, nil, args.Error(3)
	}
	return args.Get(0).(*models.Escrow), nil, nil, args.Error(3)
}

func (m *mockDisputeEscrows) Refund(ctx context.Context, id uuid.UUID, amount *float64, reason string, fromDispute bool, now time.Time) (*models.Escrow, *models.Payment, *models.DomainEvent, error) {
	args := m.Called(ctx, id, amount, reason, fromDispute, now)
	if args.Get(0) == nil {
		return nil, nil, nil, args.Error(3)
	}
	return args.Get(0).(*models.Escrow), nil, nil, args.Error(3)
}

func (m *mockDisputeEscrows) ClearDispute(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func TestDisputeService_Raise_NotParticipant(t *testing.T) {
	repo := new(mockDisputeRepo)
	projects := new(mockProjectGetter)
	svc := NewDisputeService(repo, new(mockDisputeEscrows), projects, nil)
	ctx := context.Background()

	projectID := uuid.New()
	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:         projectID,
		ClientID:   uuid.New(),
		ProviderID: uuid.New(),
	}, nil)

	_, err := svc.Raise(ctx, RaiseDisputeInput{
		ProjectID:   projectID,
		DisputeType: models.DisputeTypeQuality,
		Description: "работы выполнены с существенными дефектами",
	}, uuid.New())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "участник проекта")
}

func TestDisputeService_Raise_SetsAgainstParty(t *testing.T) {
	repo := new(mockDisputeRepo)
	projects := new(mockProjectGetter)
	svc := NewDisputeService(repo, new(mockDisputeEscrows), projects, nil)
	ctx := context.Background()

	clientID := uuid.New()
	providerID := uuid.New()
	projectID := uuid.New()
	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:         projectID,
		ClientID:   clientID,
		ProviderID: providerID,
	}, nil)
	repo.On("CreateWithFreeze", ctx, mock.MatchedBy(func(d *models.Dispute) bool {
		return d.RaisedByID == clientID && d.AgainstID == providerID
	})).Return(&models.Dispute{ID: uuid.New(), Status: models.DisputeStatusOpen, PaymentHeld: true}, nil, nil)

	dispute, err := svc.Raise(ctx, RaiseDisputeInput{
		ProjectID:   projectID,
		DisputeType: models.DisputeTypeDelay,
		Description: "подрядчик сорвал сроки сдачи этапа более чем на месяц",
	}, clientID)
	assert.NoError(t, err)
	assert.True(t, dispute.PaymentHeld)
	repo.AssertExpectations(t)
}

func TestDisputeService_Resolve_NotAdmin(t *testing.T) {
	svc := NewDisputeService(new(mockDisputeRepo), new(mockDisputeEscrows), new(mockProjectGetter), nil)

	_, err := svc.Resolve(context.Background(), ResolveDisputeInput{
		DisputeID: uuid.New(),
		Outcome:   models.DisputeOutcomeNoAction,
	}, uuid.New(), models.RoleClient, time.Now())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "администратор")
}

func TestDisputeService_Resolve_FavorClient(t *testing.T) {
	repo := new(mockDisputeRepo)
	escrows := new(mockDisputeEscrows)
	projects := new(mockProjectGetter)
	svc := NewDisputeService(repo, escrows, projects, nil)
	ctx := context.Background()
	now := time.Now()

	projectID := uuid.New()
	disputeID := uuid.New()
	escrowID := uuid.New()

	repo.On("GetByID", ctx, disputeID).Return(&models.Dispute{
		ID:        disputeID,
		ProjectID: projectID,
		Status:    models.DisputeStatusUnderReview,
	}, nil)
	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:                        projectID,
		PlatformCommissionPercent: 10,
	}, nil)
	escrows.On("ListDisputedByProject", ctx, projectID).Return([]models.Escrow{
		{ID: escrowID, HeldAmount: 400000, Status: models.EscrowStatusDisputed},
	}, nil)
	escrows.On("Refund", ctx, escrowID, (*float64)(nil), "разрешение спора: favor_client", true, now).
		Return(&models.Escrow{ID: escrowID, Status: models.EscrowStatusRefunded}, nil, nil, nil)
	repo.On("MarkResolved", ctx, disputeID, models.DisputeOutcomeFavorClient, "дефекты подтверждены", models.ProjectStatusCancelled, now).
		Return(&models.Dispute{ID: disputeID, Status: models.DisputeStatusResolved}, nil, nil)

	resolved, err := svc.Resolve(ctx, ResolveDisputeInput{
		DisputeID: disputeID,
		Outcome:   models.DisputeOutcomeFavorClient,
		Details:   "дефекты подтверждены",
	}, uuid.New(), models.RoleAdmin, now)
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolved, resolved.Status)
	escrows.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestDisputeService_Resolve_FavorProvider(t *testing.T) {
	repo := new(mockDisputeRepo)
	escrows := new(mockDisputeEscrows)
	projects := new(mockProjectGetter)
	svc := NewDisputeService(repo, escrows, projects, nil)
	ctx := context.Background()
	now := time.Now()

	projectID := uuid.New()
	disputeID := uuid.New()
	escrowID := uuid.New()

	repo.On("GetByID", ctx, disputeID).Return(&models.Dispute{
		ID:        disputeID,
		ProjectID: projectID,
		Status:    models.DisputeStatusUnderReview,
	}, nil)
	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:                        projectID,
		PlatformCommissionPercent: 10,
	}, nil)
	escrows.On("ListDisputedByProject", ctx, projectID).Return([]models.Escrow{
		{ID: escrowID, HeldAmount: 250000, Status: models.EscrowStatusDisputed},
	}, nil)
	escrows.On("Release", ctx, escrowID, (*float64)(nil), "разрешение спора: favor_provider", float64(10), true, now).
		Return(&models.Escrow{ID: escrowID, Status: models.EscrowStatusReleased}, nil, nil, nil)
	repo.On("MarkResolved", ctx, disputeID, models.DisputeOutcomeFavorProvider, "претензия не подтвердилась", models.ProjectStatusInProgress, now).
		Return(&models.Dispute{ID: disputeID, Status: models.DisputeStatusResolved}, nil, nil)

	_, err := svc.Resolve(ctx, ResolveDisputeInput{
		DisputeID: disputeID,
		Outcome:   models.DisputeOutcomeFavorProvider,
		Details:   "претензия не подтвердилась",
	}, uuid.New(), models.RoleAdmin, now)
	assert.NoError(t, err)
	escrows.AssertExpectations(t)
}

func TestDisputeService_Resolve_Split_BadCoverage(t *testing.T) {
	repo := new(mockDisputeRepo)
	escrows := new(mockDisputeEscrows)
	projects := new(mockProjectGetter)
	svc := NewDisputeService(repo, escrows, projects, nil)
	ctx := context.Background()

	projectID := uuid.New()
	disputeID := uuid.New()
	escrowID := uuid.New()

	repo.On("GetByID", ctx, disputeID).Return(&models.Dispute{
		ID:        disputeID,
		ProjectID: projectID,
		Status:    models.DisputeStatusUnderReview,
	}, nil)
	projects.On("GetByID", ctx, projectID).Return(&models.Project{ID: projectID}, nil)
	escrows.On("ListDisputedByProject", ctx, projectID).Return([]models.Escrow{
		{ID: escrowID, HeldAmount: 100000, Status: models.EscrowStatusDisputed},
	}, nil)

	// Раздел покрывает только 90000 из 100000 удержанных
	_, err := svc.Resolve(ctx, ResolveDisputeInput{
		DisputeID: disputeID,
		Outcome:   models.DisputeOutcomeSplit,
		Details:   "частичный зачёт",
		Splits:    []EscrowSplit{{EscrowID: escrowID, ReleaseAmount: 50000, RefundAmount: 40000}},
	}, uuid.New(), models.RoleAdmin, time.Now())
	assert.Error(t, err)
}

func TestDisputeService_Resolve_NoAction_Unfreezes(t *testing.T) {
	repo := new(mockDisputeRepo)
	escrows := new(mockDisputeEscrows)
	projects := new(mockProjectGetter)
	svc := NewDisputeService(repo, escrows, projects, nil)
	ctx := context.Background()
	now := time.Now()

	projectID := uuid.New()
	disputeID := uuid.New()
	escrowID := uuid.New()

	repo.On("GetByID", ctx, disputeID).Return(&models.Dispute{
		ID:        disputeID,
		ProjectID: projectID,
		Status:    models.DisputeStatusUnderReview,
	}, nil)
	projects.On("GetByID", ctx, projectID).Return(&models.Project{ID: projectID}, nil)
	escrows.On("ListDisputedByProject", ctx, projectID).Return([]models.Escrow{
		{ID: escrowID, HeldAmount: 100000, Status: models.EscrowStatusDisputed},
	}, nil)
	escrows.On("ClearDispute", ctx, escrowID).
		Return(&models.Escrow{ID: escrowID, Status: models.EscrowStatusHeld}, nil)
	repo.On("MarkResolved", ctx, disputeID, models.DisputeOutcomeNoAction, "стороны договорились", models.ProjectStatusInProgress, now).
		Return(&models.Dispute{ID: disputeID, Status: models.DisputeStatusResolved}, nil, nil)

	_, err := svc.Resolve(ctx, ResolveDisputeInput{
		DisputeID: disputeID,
		Outcome:   models.DisputeOutcomeNoAction,
		Details:   "стороны договорились",
	}, uuid.New(), models.RoleAdmin, now)
	assert.NoError(t, err)
	escrows.AssertExpectations(t)
}

func TestDisputeService_Resolve_AlreadyResolved(t *testing.T) {
	repo := new(mockDisputeRepo)
	svc := NewDisputeService(repo, new(mockDisputeEscrows), new(mockProjectGetter), nil)
	ctx := context.Background()

	disputeID := uuid.New()
	repo.On("GetByID", ctx, disputeID).Return(&models.Dispute{
		ID:     disputeID,
		Status: models.DisputeStatusResolved,
	}, nil)

	_, err := svc.Resolve(ctx, ResolveDisputeInput{
		DisputeID: disputeID,
		Outcome:   models.DisputeOutcomeNoAction,
	}, uuid.New(), models.RoleAdmin, time.Now())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "на рассмотрение")
}

func TestDisputeService_Resolve_OpenWithoutAssignment(t *testing.T) {
	repo := new(mockDisputeRepo)
	escrows := new(mockDisputeEscrows)
	svc := NewDisputeService(repo, escrows, new(mockProjectGetter), nil)
	ctx := context.Background()

	disputeID := uuid.New()
	repo.On("GetByID", ctx, disputeID).Return(&models.Dispute{
		ID:     disputeID,
		Status: models.DisputeStatusOpen,
	}, nil)

	_, err := svc.Resolve(ctx, ResolveDisputeInput{
		DisputeID: disputeID,
		Outcome:   models.DisputeOutcomeNoAction,
	}, uuid.New(), models.RoleAdmin, time.Now())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "на рассмотрение")
	repo.AssertNotCalled(t, "MarkResolved")
	escrows.AssertNotCalled(t, "ClearDispute")
}

func TestValidateSplits(t *testing.T) {
	e1 := uuid.New()
	e2 := uuid.New()
	frozen := []models.Escrow{
		{ID: e1, HeldAmount: 100000},
		{ID: e2, HeldAmount: 50000},
	}

	err := validateSplits(frozen, []EscrowSplit{
		{EscrowID: e1, ReleaseAmount: 60000, RefundAmount: 40000},
		{EscrowID: e2, ReleaseAmount: 0, RefundAmount: 50000},
	})
	assert.NoError(t, err)

	// Не все замороженные escrow покрыты
	err = validateSplits(frozen, []EscrowSplit{
		{EscrowID: e1, ReleaseAmount: 60000, RefundAmount: 40000},
	})
	assert.Error(t, err)

	// Неизвестный escrow
	err = validateSplits(frozen, []EscrowSplit{
		{EscrowID: e1, ReleaseAmount: 60000, RefundAmount: 40000},
		{EscrowID: uuid.New(), ReleaseAmount: 50000},
	})
	assert.Error(t, err)

	// Отрицательная сумма
	err = validateSplits(frozen, []EscrowSplit{
		{EscrowID: e1, ReleaseAmount: 110000, RefundAmount: -10000},
		{EscrowID: e2, RefundAmount: 50000},
	})
	assert.Error(t, err)

	// Дробные суммы не принимаются, даже если покрытие сходится
	err = validateSplits(frozen, []EscrowSplit{
		{EscrowID: e1, ReleaseAmount: 99999.5, RefundAmount: 0.5},
		{EscrowID: e2, RefundAmount: 50000},
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "целым числом динаров")
}

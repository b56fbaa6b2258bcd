package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/construction-backend/internal/gateway"
	"github.com/ignatzorin/construction-backend/internal/models"
	"github.com/ignatzorin/construction-backend/internal/pkg/apperror"
)

type mockPaymentRepo struct {
	mock.Mock
}

func (m *mockPaymentRepo) Create(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentRepo) MarkCompleted(ctx context.Context, id uuid.UUID, transactionID, gw string) (*models.Payment, *models.DomainEvent, error) {
	args := m.Called(ctx, id, transactionID, gw)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Payment), nil, args.Error(2)
}

func (m *mockPaymentRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*models.Payment, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentRepo) Refund(ctx context.Context, id uuid.UUID, amount float64, reason string, now time.Time) (*models.Payment, error) {
	args := m.Called(ctx, id, amount, reason, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentRepo) ListByProject(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]models.Payment, error) {
	args := m.Called(ctx, projectID, limit, offset)
	return args.Get(0).([]models.Payment), args.Error(1)
}

func (m *mockPaymentRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Payment, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Payment), args.Error(1)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Charge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.ChargeResult), args.Error(1)
}

func (m *mockGateway) Refund(ctx context.Context, req gateway.RefundRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *mockGateway) Name() string {
	return "mock"
}

func TestPaymentService_Charge_Success(t *testing.T) {
	repo := new(mockPaymentRepo)
	projects := new(mockProjectGetter)
	gw := new(mockGateway)
	svc := NewPaymentService(repo, projects, gw, nil)
	ctx := context.Background()
	now := time.Now()

	clientID := uuid.New()
	providerID := uuid.New()
	projectID := uuid.New()
	paymentID := uuid.New()

	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:                        projectID,
		ClientID:                  clientID,
		ProviderID:                providerID,
		PlatformCommissionPercent: 10,
	}, nil)
	repo.On("Create", ctx, mock.MatchedBy(func(p *models.Payment) bool {
		return p.Amount == 300000 && p.PlatformFee == 30000 && p.NetAmount == 270000 &&
			p.PayerID == clientID && p.PayeeID == providerID
	})).Return(&models.Payment{ID: paymentID, Amount: 300000, Status: models.PaymentStatusPending}, nil)
	gw.On("Charge", ctx, mock.MatchedBy(func(req gateway.ChargeRequest) bool {
		return req.PaymentID == paymentID && req.Amount == 300000 && req.Currency == "IQD"
	})).Return(&gateway.ChargeResult{TransactionID: "tx-1", Gateway: "sandbox"}, nil)
	repo.On("MarkCompleted", ctx, paymentID, "tx-1", "sandbox").
		Return(&models.Payment{ID: paymentID, Status: models.PaymentStatusCompleted}, nil, nil)

	payment, err := svc.Charge(ctx, ChargeInput{
		ProjectID:   projectID,
		Amount:      300000,
		PaymentType: models.PaymentTypeMilestone,
	}, clientID, now)
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	repo.AssertExpectations(t)
	gw.AssertExpectations(t)
}

func TestPaymentService_Charge_GatewayFailure(t *testing.T) {
	repo := new(mockPaymentRepo)
	projects := new(mockProjectGetter)
	gw := new(mockGateway)
	svc := NewPaymentService(repo, projects, gw, nil)
	ctx := context.Background()

	clientID := uuid.New()
	projectID := uuid.New()
	paymentID := uuid.New()

	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:                        projectID,
		ClientID:                  clientID,
		ProviderID:                uuid.New(),
		PlatformCommissionPercent: 10,
	}, nil)
	repo.On("Create", ctx, mock.Anything).
		Return(&models.Payment{ID: paymentID, Status: models.PaymentStatusPending}, nil)
	gwErr := apperror.New(apperror.ErrCodeExternalDependency, "платёжный шлюз отклонил запрос")
	gw.On("Charge", ctx, mock.Anything).Return(nil, gwErr)
	repo.On("MarkFailed", ctx, paymentID, gwErr.Error()).
		Return(&models.Payment{ID: paymentID, Status: models.PaymentStatusFailed}, nil)

	_, err := svc.Charge(ctx, ChargeInput{
		ProjectID:   projectID,
		Amount:      100000,
		PaymentType: models.PaymentTypeFull,
	}, clientID, time.Now())
	assert.Error(t, err)
	repo.AssertExpectations(t)
}

func TestPaymentService_Charge_NotClient(t *testing.T) {
	repo := new(mockPaymentRepo)
	projects := new(mockProjectGetter)
	svc := NewPaymentService(repo, projects, new(mockGateway), nil)
	ctx := context.Background()

	projectID := uuid.New()
	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:       projectID,
		ClientID: uuid.New(),
	}, nil)

	_, err := svc.Charge(ctx, ChargeInput{
		ProjectID:   projectID,
		Amount:      100000,
		PaymentType: models.PaymentTypeFull,
	}, uuid.New(), time.Now())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "только клиент")
}

func TestPaymentService_Charge_UnknownType(t *testing.T) {
	svc := NewPaymentService(new(mockPaymentRepo), new(mockProjectGetter), new(mockGateway), nil)

	_, err := svc.Charge(context.Background(), ChargeInput{
		ProjectID:   uuid.New(),
		Amount:      100000,
		PaymentType: "barter",
	}, uuid.New(), time.Now())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "тип платежа")
}

func TestPaymentService_Confirm(t *testing.T) {
	repo := new(mockPaymentRepo)
	svc := NewPaymentService(repo, new(mockProjectGetter), new(mockGateway), nil)
	ctx := context.Background()
	paymentID := uuid.New()

	repo.On("MarkCompleted", ctx, paymentID, "tx-9", "zaincash").
		Return(&models.Payment{ID: paymentID, Status: models.PaymentStatusCompleted}, nil, nil)

	payment, err := svc.Confirm(ctx, paymentID, "tx-9", "zaincash")
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
}

func TestPaymentService_Refund_NotPayee(t *testing.T) {
	repo := new(mockPaymentRepo)
	svc := NewPaymentService(repo, new(mockProjectGetter), new(mockGateway), nil)
	ctx := context.Background()

	paymentID := uuid.New()
	repo.On("GetByID", ctx, paymentID).Return(&models.Payment{
		ID:      paymentID,
		PayerID: uuid.New(),
		PayeeID: uuid.New(),
		Status:  models.PaymentStatusCompleted,
	}, nil)

	_, err := svc.Refund(ctx, paymentID, 50000, "возврат", uuid.New(), models.RoleClient, time.Now())
	assert.Error(t, err)
}

func TestPaymentService_Refund_OverLimitNeverReachesGateway(t *testing.T) {
	repo := new(mockPaymentRepo)
	gw := new(mockGateway)
	svc := NewPaymentService(repo, new(mockProjectGetter), gw, nil)
	ctx := context.Background()

	payeeID := uuid.New()
	paymentID := uuid.New()
	txID := "tx-42"
	repo.On("GetByID", ctx, paymentID).Return(&models.Payment{
		ID:            paymentID,
		PayerID:       uuid.New(),
		PayeeID:       payeeID,
		Amount:        100000,
		RefundAmount:  0,
		Status:        models.PaymentStatusCompleted,
		TransactionID: &txID,
	}, nil)

	_, err := svc.Refund(ctx, paymentID, 250000, "возврат", payeeID, models.RoleProvider, time.Now())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "превышает остаток платежа")
	gw.AssertNotCalled(t, "Refund")
	repo.AssertNotCalled(t, "Refund")
}

func TestPaymentService_Refund_PartialBalanceCounts(t *testing.T) {
	repo := new(mockPaymentRepo)
	gw := new(mockGateway)
	svc := NewPaymentService(repo, new(mockProjectGetter), gw, nil)
	ctx := context.Background()

	payeeID := uuid.New()
	paymentID := uuid.New()
	txID := "tx-43"
	repo.On("GetByID", ctx, paymentID).Return(&models.Payment{
		ID:            paymentID,
		PayerID:       uuid.New(),
		PayeeID:       payeeID,
		Amount:        100000,
		RefundAmount:  70000,
		Status:        models.PaymentStatusCompleted,
		TransactionID: &txID,
	}, nil)

	// 70000 уже возвращено, допустимый остаток 30000
	_, err := svc.Refund(ctx, paymentID, 40000, "возврат", payeeID, models.RoleProvider, time.Now())
	assert.Error(t, err)
	gw.AssertNotCalled(t, "Refund")
}

func TestPaymentService_Refund_InvalidAmountNeverReachesGateway(t *testing.T) {
	repo := new(mockPaymentRepo)
	gw := new(mockGateway)
	svc := NewPaymentService(repo, new(mockProjectGetter), gw, nil)
	ctx := context.Background()

	for _, amount := range []float64{0, -50000, 100.25} {
		_, err := svc.Refund(ctx, uuid.New(), amount, "возврат", uuid.New(), models.RoleProvider, time.Now())
		assert.Error(t, err)
	}
	gw.AssertNotCalled(t, "Refund")
	repo.AssertNotCalled(t, "GetByID")
}

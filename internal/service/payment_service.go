package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/construction-backend/internal/gateway"
	"github.com/ignatzorin/construction-backend/internal/logger"
	"github.com/ignatzorin/construction-backend/internal/models"
	"github.com/ignatzorin/construction-backend/internal/pkg/apperror"
	"github.com/ignatzorin/construction-backend/internal/validation"
)

// PaymentRepository описывает зависимости PaymentService от слоя хранилища.
type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) (*models.Payment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, transactionID, gateway string) (*models.Payment, *models.DomainEvent, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*models.Payment, error)
	Refund(ctx context.Context, id uuid.UUID, amount float64, reason string, now time.Time) (*models.Payment, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]models.Payment, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Payment, error)
}

// PaymentProjectRepository даёт PaymentService доступ к проектам.
type PaymentProjectRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

// PaymentService проводит платежи через внешний шлюз.
type PaymentService struct {
	repo      PaymentRepository
	projects  PaymentProjectRepository
	gateway   gateway.Gateway
	publisher EventPublisher
}

// NewPaymentService создаёт сервис платежей.
func NewPaymentService(repo PaymentRepository, projects PaymentProjectRepository, gw gateway.Gateway, publisher EventPublisher) *PaymentService {
	return &PaymentService{
		repo:      repo,
		projects:  projects,
		gateway:   gw,
		publisher: publisher,
	}
}

// ChargeInput содержит данные платежа через шлюз.
type ChargeInput struct {
	ProjectID   uuid.UUID
	MilestoneID *uuid.UUID
	Amount      float64
	PaymentType string
	Description string
}

// Charge проводит платёж клиента подрядчику через платёжный шлюз: платёж
// записывается как pending, затем списывается через шлюз и завершается.
// При отказе шлюза платёж помечается failed.
func (s *PaymentService) Charge(ctx context.Context, in ChargeInput, actorID uuid.UUID, now time.Time) (*models.Payment, error) {
	if err := validation.ValidateAmount("сумма платежа", in.Amount); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if _, ok := models.ValidPaymentTypes[in.PaymentType]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный тип платежа")
	}

	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.ClientID != actorID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "платить по проекту может только клиент")
	}

	fee := models.PlatformFee(in.Amount, project.PlatformCommissionPercent)

	pending, err := s.repo.Create(ctx, &models.Payment{
		ProjectID:   in.ProjectID,
		MilestoneID: in.MilestoneID,
		PayerID:     project.ClientID,
		PayeeID:     project.ProviderID,
		Amount:      in.Amount,
		PlatformFee: fee,
		NetAmount:   in.Amount - fee,
		PaymentType: in.PaymentType,
	})
	if err != nil {
		return nil, err
	}

	result, err := s.gateway.Charge(ctx, gateway.ChargeRequest{
		PaymentID:   pending.ID,
		Amount:      in.Amount,
		Currency:    "IQD",
		Description: in.Description,
	})
	if err != nil {
		if _, failErr := s.repo.MarkFailed(ctx, pending.ID, err.Error()); failErr != nil && logger.Log != nil {
			logger.Log.WithFields(map[string]interface{}{
				"payment_id": pending.ID,
				"error":      failErr.Error(),
			}).Error("payment service: не удалось пометить платёж failed")
		}
		return nil, err
	}

	completed, event, err := s.repo.MarkCompleted(ctx, pending.ID, result.TransactionID, result.Gateway)
	if err != nil {
		return nil, err
	}
	publish(s.publisher, event)
	return completed, nil
}

// Get возвращает платёж, доступный его сторонам и администраторам.
func (s *PaymentService) Get(ctx context.Context, id, actorID uuid.UUID, actorRole string) (*models.Payment, error) {
	payment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && payment.PayerID != actorID && payment.PayeeID != actorID {
		return nil, apperror.ErrForbidden
	}
	return payment, nil
}

// Confirm завершает ожидающий платёж по уведомлению шлюза. Повторное
// уведомление с тем же идентификатором транзакции — no-op.
func (s *PaymentService) Confirm(ctx context.Context, id uuid.UUID, transactionID, gatewayName string) (*models.Payment, error) {
	if transactionID == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "идентификатор транзакции обязателен")
	}
	payment, event, err := s.repo.MarkCompleted(ctx, id, transactionID, gatewayName)
	if err != nil {
		return nil, err
	}
	publish(s.publisher, event)
	return payment, nil
}

// Fail помечает ожидающий платёж неуспешным.
func (s *PaymentService) Fail(ctx context.Context, id uuid.UUID, reason string) (*models.Payment, error) {
	return s.repo.MarkFailed(ctx, id, reason)
}

// Refund возвращает средства по завершённому платежу: сначала через шлюз,
// затем в учёте. Допускаются частичные возвраты в пределах суммы платежа.
func (s *PaymentService) Refund(ctx context.Context, id uuid.UUID, amount float64, reason string, actorID uuid.UUID, actorRole string, now time.Time) (*models.Payment, error) {
	if err := validation.ValidateAmount("сумма возврата", amount); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	payment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && payment.PayeeID != actorID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "возврат инициирует получатель платежа или администратор")
	}
	if payment.RefundAmount+amount > payment.Amount {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма возврата превышает остаток платежа")
	}

	if payment.TransactionID != nil {
		err = s.gateway.Refund(ctx, gateway.RefundRequest{
			TransactionID: *payment.TransactionID,
			Amount:        amount,
			Reason:        reason,
		})
		if err != nil {
			return nil, err
		}
	}

	return s.repo.Refund(ctx, id, amount, reason, now)
}

// ListByProject возвращает платежи проекта.
func (s *PaymentService) ListByProject(ctx context.Context, projectID, actorID uuid.UUID, actorRole string, limit, offset int) ([]models.Payment, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && project.ClientID != actorID && project.ProviderID != actorID {
		return nil, apperror.ErrForbidden
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByProject(ctx, projectID, limit, offset)
}

// ListByUser возвращает платежи пользователя.
func (s *PaymentService) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

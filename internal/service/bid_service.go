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

// BidRepository описывает зависимости BidService от слоя хранилища.
type BidRepository interface {
	Create(ctx context.Context, bid *models.Bid) (*models.Bid, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	Respond(ctx context.Context, id uuid.UUID, status string) (*models.Bid, error)
	ConvertToProject(ctx context.Context, id uuid.UUID, commissionPercent float64) (*models.Project, error)
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Bid, error)
}

// BidService управляет жизненным циклом ставок.
type BidService struct {
	repo              BidRepository
	bidTTL            time.Duration
	commissionPercent float64
}

// NewBidService создаёт сервис ставок.
func NewBidService(repo BidRepository, bidTTL time.Duration, commissionPercent float64) *BidService {
	return &BidService{
		repo:              repo,
		bidTTL:            bidTTL,
		commissionPercent: commissionPercent,
	}
}

// CreateBidInput содержит данные новой ставки.
type CreateBidInput struct {
	ClientID              uuid.UUID
	ProviderID            uuid.UUID
	ServiceType           string
	OfferedPrice          float64
	EstimatedDurationDays int
	Proposal              *string
}

// Create регистрирует ставку клиента на услуги подрядчика. Срок действия
// отсчитывается от переданного момента времени.
func (s *BidService) Create(ctx context.Context, in CreateBidInput, now time.Time) (*models.Bid, error) {
	if in.ServiceType == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "тип услуги обязателен")
	}
	if err := validation.ValidateAmount("цена", in.OfferedPrice); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if in.EstimatedDurationDays <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "срок выполнения должен быть положительным")
	}
	if in.ClientID == in.ProviderID {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя сделать ставку самому себе")
	}
	if in.Proposal != nil {
		if err := validation.ValidateLength("предложение", *in.Proposal, validation.MinBidMessageLength, validation.MaxBidMessageLength); err != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
		}
	}

	bid := &models.Bid{
		ClientID:              in.ClientID,
		ProviderID:            in.ProviderID,
		ServiceType:           in.ServiceType,
		OfferedPrice:          in.OfferedPrice,
		EstimatedDurationDays: in.EstimatedDurationDays,
		Proposal:              in.Proposal,
		Status:                models.BidStatusPending,
		ExpiresAt:             now.Add(s.bidTTL),
	}

	return s.repo.Create(ctx, bid)
}

// Get возвращает ставку, доступную только её участникам.
func (s *BidService) Get(ctx context.Context, id, actorID uuid.UUID, actorRole string) (*models.Bid, error) {
	bid, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && bid.ClientID != actorID && bid.ProviderID != actorID {
		return nil, apperror.ErrForbidden
	}
	return bid, nil
}

// Respond принимает или отклоняет ставку. Отвечать может только подрядчик,
// которому ставка адресована, и только пока она ожидает ответа.
func (s *BidService) Respond(ctx context.Context, id, actorID uuid.UUID, accept bool, now time.Time) (*models.Bid, error) {
	bid, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bid.ProviderID != actorID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "отвечать на ставку может только подрядчик")
	}
	if now.After(bid.ExpiresAt) {
		return nil, apperror.New(apperror.ErrCodeConflict, "срок действия ставки истёк")
	}

	status := models.BidStatusRejected
	if accept {
		status = models.BidStatusAccepted
	}
	return s.repo.Respond(ctx, id, status)
}

// ConvertToProject создаёт проект из принятой ставки. Повторный вызов
// возвращает уже созданный проект.
func (s *BidService) ConvertToProject(ctx context.Context, id, actorID uuid.UUID) (*models.Project, error) {
	bid, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bid.ClientID != actorID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "конвертировать ставку в проект может только клиент")
	}
	return s.repo.ConvertToProject(ctx, id, s.commissionPercent)
}

// ListByUser возвращает ставки пользователя.
func (s *BidService) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Bid, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// SweepExpired помечает просроченные ставки. Вызов идемпотентен и
// запускается планировщиком.
func (s *BidService) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	expired, err := s.repo.SweepExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if expired > 0 && logger.Log != nil {
		logger.Log.WithField("expired", expired).Info("bid service: просроченные ставки помечены")
	}
	return expired, nil
}

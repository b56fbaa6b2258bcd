package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/construction-backend/internal/models"
	"github.com/ignatzorin/construction-backend/internal/pkg/apperror"
	"github.com/ignatzorin/construction-backend/internal/repository/common"
)

type PaymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// insertPaymentTx вставляет платёж внутри внешней транзакции. NetAmount
// должен быть уже вычислен вызывающей стороной и не пересчитывается.
func insertPaymentTx(ctx context.Context, tx *sqlx.Tx, p *models.Payment) (*models.Payment, error) {
	if p.NetAmount != p.Amount-p.PlatformFee {
		return nil, apperror.New(apperror.ErrCodeInvariantViolation, "чистая сумма платежа не сходится с комиссией")
	}
	var created models.Payment
	err := tx.GetContext(ctx, &created, `
		INSERT INTO payments (project_id, milestone_id, payer_id, payee_id, amount, platform_fee, net_amount, payment_type, status, payment_method, transaction_id, payment_gateway)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING *
	`, p.ProjectID, p.MilestoneID, p.PayerID, p.PayeeID, p.Amount, p.PlatformFee, p.NetAmount, p.PaymentType, p.Status, p.PaymentMethod, p.TransactionID, p.PaymentGateway)
	if err != nil {
		return nil, fmt.Errorf("payment repository: insert %w", err)
	}
	return &created, nil
}

// Create записывает платёж в статусе pending.
func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	var created *models.Payment
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var inner error
		p.Status = models.PaymentStatusPending
		created, inner = insertPaymentTx(ctx, tx, p)
		return inner
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetByID возвращает платёж по ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return common.GetByID[models.Payment](ctx, r.db, "payments", id, apperror.ErrPaymentNotFound)
}

// MarkCompleted переводит платёж из pending в completed и зачисляет
// получателю чистую сумму. Повторный вызов с тем же transaction_id является
// no-op: вебхуки шлюза могут приходить несколько раз.
func (r *PaymentRepository) MarkCompleted(ctx context.Context, id uuid.UUID, transactionID, gateway string) (*models.Payment, *models.DomainEvent, error) {
	var payment models.Payment
	var event *models.DomainEvent

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		locked, err := common.GetByIDForUpdate[models.Payment](ctx, tx, "payments", id, apperror.ErrPaymentNotFound)
		if err != nil {
			return err
		}

		if locked.Status == models.PaymentStatusCompleted {
			if locked.TransactionID != nil && *locked.TransactionID == transactionID {
				payment = *locked
				return nil
			}
			return apperror.New(apperror.ErrCodeConflict, "платёж уже завершён другой транзакцией")
		}
		if locked.Status != models.PaymentStatusPending {
			return apperror.New(apperror.ErrCodeConflict,
				fmt.Sprintf("завершить можно только ожидающий платёж, текущий статус %s", locked.Status))
		}

		err = tx.GetContext(ctx, &payment, `
			UPDATE payments SET status = $2, transaction_id = $3, payment_gateway = $4, updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`, id, models.PaymentStatusCompleted, transactionID, gateway)
		if err != nil {
			return fmt.Errorf("payment repository: mark completed %w", err)
		}

		// Получатель зачисляется чистой суммой; пополнение собственного
		// кошелька зачисляется полностью.
		credit := payment.NetAmount
		creditType := models.WalletTxTypePayment
		if payment.PaymentType == models.PaymentTypeDeposit {
			credit = payment.Amount
			creditType = models.WalletTxTypeDeposit
		}
		if _, err := applyWalletDeltaTx(ctx, tx, payment.PayeeID, creditType, credit, "payment", &payment.ID, "зачисление платежа"); err != nil {
			return err
		}

		event, err = insertEventTx(ctx, tx, payment.ProjectID, models.EventPaymentCompleted, map[string]interface{}{
			"payment_id":     payment.ID,
			"amount":         payment.Amount,
			"transaction_id": transactionID,
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &payment, event, nil
}

// MarkFailed переводит платёж из pending в failed. Статус терминальный.
func (r *PaymentRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.GetContext(ctx, &payment, `
		UPDATE payments SET status = $2, refund_reason = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
		RETURNING *
	`, id, models.PaymentStatusFailed, reason, models.PaymentStatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, apperror.New(apperror.ErrCodeConflict, "отклонить можно только ожидающий платёж")
		}
		return nil, fmt.Errorf("payment repository: mark failed %w", err)
	}
	return &payment, nil
}

// Refund регистрирует возврат по завершённому платежу. Накопленный возврат
// не может превысить сумму платежа; полный возврат переводит платёж в
// статус refunded. Возвращаемая сумма зачисляется плательщику.
func (r *PaymentRepository) Refund(ctx context.Context, id uuid.UUID, amount float64, reason string, now time.Time) (*models.Payment, error) {
	var payment models.Payment
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		locked, err := common.GetByIDForUpdate[models.Payment](ctx, tx, "payments", id, apperror.ErrPaymentNotFound)
		if err != nil {
			return err
		}
		if locked.Status != models.PaymentStatusCompleted {
			return apperror.New(apperror.ErrCodeConflict, "возврат возможен только по завершённому платежу")
		}
		if amount <= 0 {
			return apperror.New(apperror.ErrCodeValidation, "сумма возврата должна быть положительной")
		}
		newRefund := locked.RefundAmount + amount
		if newRefund > locked.Amount {
			return apperror.New(apperror.ErrCodeValidation,
				fmt.Sprintf("возврат %.0f превысит сумму платежа %.0f", newRefund, locked.Amount))
		}

		status := locked.Status
		if newRefund == locked.Amount {
			status = models.PaymentStatusRefunded
		}

		err = tx.GetContext(ctx, &payment, `
			UPDATE payments SET refund_amount = $2, refund_date = $3, refund_reason = $4, status = $5, updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`, id, newRefund, now, reason, status)
		if err != nil {
			return fmt.Errorf("payment repository: refund %w", err)
		}

		if _, err := applyWalletDeltaTx(ctx, tx, payment.PayerID, models.WalletTxTypeRefund, amount, "payment", &payment.ID, reason); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByProject возвращает платежи проекта.
func (r *PaymentRepository) ListByProject(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.SelectContext(ctx, &payments, `
		SELECT * FROM payments WHERE project_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, projectID, limit, offset)
	return payments, err
}

// ListByUser возвращает платежи, где пользователь является стороной.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.SelectContext(ctx, &payments, `
		SELECT * FROM payments WHERE payer_id = $1 OR payee_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return payments, err
}

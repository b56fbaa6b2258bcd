package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/construction-backend/internal/models"
	"github.com/ignatzorin/construction-backend/internal/pkg/apperror"
	"github.com/ignatzorin/construction-backend/internal/repository/common"
)

type EscrowRepository struct {
	db *sqlx.DB
}

func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// Hold создаёт escrow в статусе held под блокировкой строки проекта.
// Сумма не может превысить нераспределённый бюджет проекта. Если fromWallet
// установлен, средства списываются с кошелька клиента в той же транзакции.
func (r *EscrowRepository) Hold(ctx context.Context, e *models.Escrow, fromWallet bool, now time.Time) (*models.Escrow, error) {
	var created models.Escrow
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		project, err := common.GetByIDForUpdate[models.Project](ctx, tx, "projects", e.ProjectID, apperror.ErrProjectNotFound)
		if err != nil {
			return err
		}

		var allocated float64
		err = tx.GetContext(ctx, &allocated, `
			SELECT COALESCE(SUM(amount), 0) FROM escrows
			WHERE project_id = $1 AND status <> $2
		`, e.ProjectID, models.EscrowStatusCancelled)
		if err != nil {
			return fmt.Errorf("escrow repository: sum allocated %w", err)
		}
		if allocated+e.Amount > project.TotalBudget {
			return apperror.New(apperror.ErrCodeValidation,
				fmt.Sprintf("сумма %.0f превышает нераспределённый бюджет проекта", e.Amount))
		}

		if e.MilestoneID != nil {
			var count int
			err = tx.GetContext(ctx, &count, `
				SELECT COUNT(*) FROM project_milestones WHERE id = $1 AND project_id = $2
			`, *e.MilestoneID, e.ProjectID)
			if err != nil {
				return fmt.Errorf("escrow repository: check milestone %w", err)
			}
			if count == 0 {
				return apperror.New(apperror.ErrCodeValidation, "этап не принадлежит проекту")
			}
		}

		err = tx.GetContext(ctx, &created, `
			INSERT INTO escrows (project_id, milestone_id, payer_id, payee_id, amount, held_amount, released_amount, refunded_amount, status, auto_release_enabled, auto_release_days, held_at, release_scheduled_at)
			VALUES ($1, $2, $3, $4, $5, $5, 0, 0, $6, $7, $8, $9, $10)
			RETURNING *
		`, e.ProjectID, e.MilestoneID, e.PayerID, e.PayeeID, e.Amount, models.EscrowStatusHeld, e.AutoReleaseEnabled, e.AutoReleaseDays, now, e.ReleaseScheduledAt)
		if err != nil {
			return fmt.Errorf("escrow repository: create %w", err)
		}

		if fromWallet {
			desc := "удержание средств в escrow"
			if _, err := applyWalletDeltaTx(ctx, tx, e.PayerID, models.WalletTxTypePayment, -e.Amount, "escrow", &created.ID, desc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetByID возвращает escrow по ID.
func (r *EscrowRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	return common.GetByID[models.Escrow](ctx, r.db, "escrows", id, apperror.ErrEscrowNotFound)
}

// ListByProject возвращает все escrow проекта.
func (r *EscrowRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Escrow, error) {
	var escrows []models.Escrow
	err := r.db.SelectContext(ctx, &escrows, `
		SELECT * FROM escrows WHERE project_id = $1 ORDER BY created_at ASC
	`, projectID)
	return escrows, err
}

// ListDisputedByProject возвращает escrow проекта в статусе disputed.
func (r *EscrowRepository) ListDisputedByProject(ctx context.Context, projectID uuid.UUID) ([]models.Escrow, error) {
	var escrows []models.Escrow
	err := r.db.SelectContext(ctx, &escrows, `
		SELECT * FROM escrows WHERE project_id = $1 AND status = $2 ORDER BY created_at ASC
	`, projectID, models.EscrowStatusDisputed)
	return escrows, err
}

// Release перемещает средства из удержания в освобождённые. Без указания
// суммы освобождается весь остаток. Каждое успешное освобождение создаёт
// платёж на освобождённую сумму и зачисляет получателю чистую сумму на
// кошелёк — escrow сам не «платит», он только переклассифицирует опеку.
// fromDispute разрешает операцию над спорным escrow: это путь разрешения
// спора, все прочие вызовы по disputed отклоняются конфликтом. Комиссия
// считается от фактически освобождаемой суммы уже под блокировкой строки.
func (r *EscrowRepository) Release(ctx context.Context, id uuid.UUID, amount *float64, reason string, commissionPercent float64, fromDispute bool, now time.Time) (*models.Escrow, *models.Payment, *models.DomainEvent, error) {
	var escrow *models.Escrow
	var payment *models.Payment
	var event *models.DomainEvent

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		locked, err := common.GetByIDForUpdate[models.Escrow](ctx, tx, "escrows", id, apperror.ErrEscrowNotFound)
		if err != nil {
			return err
		}

		if err := guardMovable(locked, fromDispute, "освободить"); err != nil {
			return err
		}

		sum := locked.HeldAmount
		if amount != nil {
			sum = *amount
		}
		if sum <= 0 {
			return apperror.New(apperror.ErrCodeValidation, "сумма освобождения должна быть положительной")
		}
		if sum > locked.HeldAmount {
			return apperror.New(apperror.ErrCodeValidation,
				fmt.Sprintf("сумма освобождения %.0f превышает удержанные %.0f", sum, locked.HeldAmount))
		}
		if commissionPercent < 0 || commissionPercent > 100 {
			return apperror.New(apperror.ErrCodeValidation, "комиссия платформы вне допустимых пределов")
		}
		platformFee := models.PlatformFee(sum, commissionPercent)

		locked.ApplyRelease(sum, now)

		if !locked.ConservationHolds() {
			return apperror.New(apperror.ErrCodeInvariantViolation,
				fmt.Sprintf("нарушено сохранение средств escrow %s: %.0f+%.0f+%.0f != %.0f",
					locked.ID, locked.HeldAmount, locked.ReleasedAmount, locked.RefundedAmount, locked.Amount))
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE escrows SET held_amount = $2, released_amount = $3, status = $4, released_at = $5, updated_at = NOW()
			WHERE id = $1
		`, locked.ID, locked.HeldAmount, locked.ReleasedAmount, locked.Status, locked.ReleasedAt)
		if err != nil {
			return fmt.Errorf("escrow repository: release update %w", err)
		}

		paymentType := models.PaymentTypeFull
		if locked.MilestoneID != nil {
			paymentType = models.PaymentTypeMilestone
		}
		method := "escrow"
		payment, err = insertPaymentTx(ctx, tx, &models.Payment{
			ProjectID:     locked.ProjectID,
			MilestoneID:   locked.MilestoneID,
			PayerID:       locked.PayerID,
			PayeeID:       locked.PayeeID,
			Amount:        sum,
			PlatformFee:   platformFee,
			NetAmount:     sum - platformFee,
			PaymentType:   paymentType,
			Status:        models.PaymentStatusCompleted,
			PaymentMethod: &method,
		})
		if err != nil {
			return err
		}

		if _, err := applyWalletDeltaTx(ctx, tx, locked.PayeeID, models.WalletTxTypePayment, payment.NetAmount, "payment", &payment.ID, reason); err != nil {
			return err
		}

		// Полное освобождение по принятому этапу фиксирует выплату этапа.
		if locked.Status == models.EscrowStatusReleased && locked.MilestoneID != nil {
			_, err = tx.ExecContext(ctx, `
				UPDATE project_milestones SET payment_released = TRUE, updated_at = NOW()
				WHERE id = $1 AND client_approved = TRUE
			`, *locked.MilestoneID)
			if err != nil {
				return fmt.Errorf("escrow repository: mark milestone released %w", err)
			}
		}

		event, err = insertEventTx(ctx, tx, locked.ProjectID, models.EventEscrowReleased, map[string]interface{}{
			"escrow_id":  locked.ID,
			"payment_id": payment.ID,
			"amount":     sum,
			"reason":     reason,
		})
		if err != nil {
			return err
		}

		escrow = locked
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return escrow, payment, event, nil
}

// Refund симметричен Release, но перемещает средства в возвращённые и
// зачисляет их обратно плательщику. Возвраты идут без комиссии.
func (r *EscrowRepository) Refund(ctx context.Context, id uuid.UUID, amount *float64, reason string, fromDispute bool, now time.Time) (*models.Escrow, *models.Payment, *models.DomainEvent, error) {
	var escrow *models.Escrow
	var payment *models.Payment
	var event *models.DomainEvent

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		locked, err := common.GetByIDForUpdate[models.Escrow](ctx, tx, "escrows", id, apperror.ErrEscrowNotFound)
		if err != nil {
			return err
		}

		if err := guardMovable(locked, fromDispute, "вернуть"); err != nil {
			return err
		}

		sum := locked.HeldAmount
		if amount != nil {
			sum = *amount
		}
		if sum <= 0 {
			return apperror.New(apperror.ErrCodeValidation, "сумма возврата должна быть положительной")
		}
		if sum > locked.HeldAmount {
			return apperror.New(apperror.ErrCodeValidation,
				fmt.Sprintf("сумма возврата %.0f превышает удержанные %.0f", sum, locked.HeldAmount))
		}

		locked.ApplyRefund(sum, now)

		if !locked.ConservationHolds() {
			return apperror.New(apperror.ErrCodeInvariantViolation,
				fmt.Sprintf("нарушено сохранение средств escrow %s: %.0f+%.0f+%.0f != %.0f",
					locked.ID, locked.HeldAmount, locked.ReleasedAmount, locked.RefundedAmount, locked.Amount))
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE escrows SET held_amount = $2, refunded_amount = $3, status = $4, refunded_at = $5, updated_at = NOW()
			WHERE id = $1
		`, locked.ID, locked.HeldAmount, locked.RefundedAmount, locked.Status, locked.RefundedAt)
		if err != nil {
			return fmt.Errorf("escrow repository: refund update %w", err)
		}

		method := "escrow"
		payment, err = insertPaymentTx(ctx, tx, &models.Payment{
			ProjectID:     locked.ProjectID,
			MilestoneID:   locked.MilestoneID,
			PayerID:       locked.PayeeID,
			PayeeID:       locked.PayerID,
			Amount:        sum,
			PlatformFee:   0,
			NetAmount:     sum,
			PaymentType:   models.PaymentTypeRefund,
			Status:        models.PaymentStatusCompleted,
			PaymentMethod: &method,
		})
		if err != nil {
			return err
		}

		if _, err := applyWalletDeltaTx(ctx, tx, locked.PayerID, models.WalletTxTypeRefund, sum, "payment", &payment.ID, reason); err != nil {
			return err
		}

		event, err = insertEventTx(ctx, tx, locked.ProjectID, models.EventEscrowRefunded, map[string]interface{}{
			"escrow_id":  locked.ID,
			"payment_id": payment.ID,
			"amount":     sum,
			"reason":     reason,
		})
		if err != nil {
			return err
		}

		escrow = locked
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return escrow, payment, event, nil
}

// Cancel аннулирует escrow до любого движения средств. Остаток удержания
// возвращается плательщику на кошелёк.
func (r *EscrowRepository) Cancel(ctx context.Context, id uuid.UUID, now time.Time) (*models.Escrow, error) {
	var escrow *models.Escrow
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		locked, err := common.GetByIDForUpdate[models.Escrow](ctx, tx, "escrows", id, apperror.ErrEscrowNotFound)
		if err != nil {
			return err
		}
		if locked.Status != models.EscrowStatusPending && locked.Status != models.EscrowStatusHeld {
			return apperror.New(apperror.ErrCodeConflict, "аннулировать можно только escrow без движения средств")
		}
		if locked.ReleasedAmount != 0 || locked.RefundedAmount != 0 {
			return apperror.New(apperror.ErrCodeConflict, "по escrow уже было движение средств")
		}

		refunded := locked.ApplyCancel(now)

		if !locked.ConservationHolds() {
			return apperror.New(apperror.ErrCodeInvariantViolation, "нарушено сохранение средств при аннулировании")
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE escrows SET held_amount = 0, refunded_amount = $2, status = $3, refunded_at = $4, updated_at = NOW()
			WHERE id = $1
		`, locked.ID, refunded, models.EscrowStatusCancelled, now)
		if err != nil {
			return fmt.Errorf("escrow repository: cancel %w", err)
		}

		if refunded > 0 {
			desc := "аннулирование escrow"
			if _, err := applyWalletDeltaTx(ctx, tx, locked.PayerID, models.WalletTxTypeRefund, refunded, "escrow", &locked.ID, desc); err != nil {
				return err
			}
		}
		escrow = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return escrow, nil
}

// freezeProjectEscrowsTx переводит все неконечные escrow проекта в статус
// disputed. Вызывается только из транзакции создания спора.
func freezeProjectEscrowsTx(ctx context.Context, tx *sqlx.Tx, projectID uuid.UUID) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE escrows SET status = $2, updated_at = NOW()
		WHERE project_id = $1 AND status IN ($3, $4, $5)
	`, projectID, models.EscrowStatusDisputed,
		models.EscrowStatusPending, models.EscrowStatusHeld, models.EscrowStatusPartiallyReleased)
	if err != nil {
		return 0, fmt.Errorf("escrow repository: freeze %w", err)
	}
	frozen, _ := res.RowsAffected()
	return frozen, nil
}

// ClearDispute снимает спорный статус без движения средств, восстанавливая
// статус по текущим корзинам сумм. Возврат в pending невозможен.
func (r *EscrowRepository) ClearDispute(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		locked, err := common.GetByIDForUpdate[models.Escrow](ctx, tx, "escrows", id, apperror.ErrEscrowNotFound)
		if err != nil {
			return err
		}
		if locked.Status != models.EscrowStatusDisputed {
			return apperror.New(apperror.ErrCodeConflict, "escrow не находится в споре")
		}

		restored := models.EscrowStatusHeld
		if locked.ReleasedAmount > 0 {
			restored = models.EscrowStatusPartiallyReleased
		}

		err = tx.GetContext(ctx, &escrow, `
			UPDATE escrows SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING *
		`, locked.ID, restored)
		if err != nil {
			return fmt.Errorf("escrow repository: clear dispute %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &escrow, nil
}

// ListAutoReleasable возвращает ID escrow, готовых к автоосвобождению на
// момент now. Спорные escrow исключены самим условием статуса.
func (r *EscrowRepository) ListAutoReleasable(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `
		SELECT id FROM escrows
		WHERE status IN ($1, $2)
		  AND auto_release_enabled = TRUE
		  AND release_scheduled_at IS NOT NULL
		  AND release_scheduled_at <= $3
		ORDER BY release_scheduled_at ASC
	`, models.EscrowStatusHeld, models.EscrowStatusPartiallyReleased, now)
	if err != nil {
		return nil, fmt.Errorf("escrow repository: list auto releasable %w", err)
	}
	return ids, nil
}

// guardMovable проверяет, допускает ли статус escrow движение средств.
func guardMovable(e *models.Escrow, fromDispute bool, action string) error {
	if e.Movable(fromDispute) {
		return nil
	}
	if e.Status == models.EscrowStatusDisputed {
		return apperror.New(apperror.ErrCodeConflict, "escrow заморожен спором")
	}
	return apperror.New(apperror.ErrCodeConflict,
		fmt.Sprintf("нельзя %s средства escrow в статусе %s", action, e.Status))
}

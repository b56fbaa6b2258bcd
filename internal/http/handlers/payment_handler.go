package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/construction-backend/internal/http/handlers/common"
	"github.com/ignatzorin/construction-backend/internal/service"
)

// PaymentHandler предоставляет HTTP слой для платежей.
type PaymentHandler struct {
	payments *service.PaymentService
}

// NewPaymentHandler создаёт хэндлер.
func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Charge обрабатывает POST /payments.
func (h *PaymentHandler) Charge(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		ProjectID   string  `json:"project_id" binding:"required"`
		MilestoneID *string `json:"milestone_id"`
		Amount      float64 `json:"amount" binding:"required,gt=0"`
		PaymentType string  `json:"payment_type" binding:"required"`
		Description string  `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		common.RespondBadRequest(c, "неверный project_id")
		return
	}

	var milestoneID *uuid.UUID
	if req.MilestoneID != nil {
		parsed, err := uuid.Parse(*req.MilestoneID)
		if err != nil {
			common.RespondBadRequest(c, "неверный milestone_id")
			return
		}
		milestoneID = &parsed
	}

	payment, err := h.payments.Charge(c.Request.Context(), service.ChargeInput{
		ProjectID:   projectID,
		MilestoneID: milestoneID,
		Amount:      req.Amount,
		PaymentType: req.PaymentType,
		Description: req.Description,
	}, userID, time.Now())
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, payment)
}

// Get обрабатывает GET /payments/:id.
func (h *PaymentHandler) Get(c *gin.Context) {
	userID, role, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payment, err := h.payments.Get(c.Request.Context(), id, userID, role)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// Confirm обрабатывает POST /payments/:id/confirm — подтверждение от шлюза.
func (h *PaymentHandler) Confirm(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		TransactionID string `json:"transaction_id" binding:"required"`
		Gateway       string `json:"gateway" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payment, err := h.payments.Confirm(c.Request.Context(), id, req.TransactionID, req.Gateway)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// Fail обрабатывает POST /payments/:id/fail — отказ шлюза.
func (h *PaymentHandler) Fail(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payment, err := h.payments.Fail(c.Request.Context(), id, req.Reason)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// Refund обрабатывает POST /payments/:id/refund.
func (h *PaymentHandler) Refund(c *gin.Context) {
	userID, role, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Amount float64 `json:"amount" binding:"required,gt=0"`
		Reason string  `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payment, err := h.payments.Refund(c.Request.Context(), id, req.Amount, req.Reason, userID, role, time.Now())
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// ListByProject обрабатывает GET /projects/:id/payments.
func (h *PaymentHandler) ListByProject(c *gin.Context) {
	userID, role, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	payments, err := h.payments.ListByProject(c.Request.Context(), projectID, userID, role, limit, offset)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// ListMy обрабатывает GET /payments/my.
func (h *PaymentHandler) ListMy(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	payments, err := h.payments.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/construction-backend/internal/http/handlers/common"
	"github.com/ignatzorin/construction-backend/internal/service"
)

// EscrowHandler предоставляет HTTP слой для escrow.
type EscrowHandler struct {
	escrows *service.EscrowService
}

// NewEscrowHandler создаёт хэндлер.
func NewEscrowHandler(escrows *service.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrows: escrows}
}

// Hold обрабатывает POST /escrows.
func (h *EscrowHandler) Hold(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		ProjectID          string  `json:"project_id" binding:"required"`
		MilestoneID        *string `json:"milestone_id"`
		Amount             float64 `json:"amount" binding:"required,gt=0"`
		FromWallet         bool    `json:"from_wallet"`
		AutoReleaseEnabled bool    `json:"auto_release_enabled"`
		AutoReleaseDays    int     `json:"auto_release_days"`
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

	escrow, err := h.escrows.Hold(c.Request.Context(), service.HoldInput{
		ProjectID:          projectID,
		MilestoneID:        milestoneID,
		Amount:             req.Amount,
		FromWallet:         req.FromWallet,
		AutoReleaseEnabled: req.AutoReleaseEnabled,
		AutoReleaseDays:    req.AutoReleaseDays,
	}, userID, time.Now())
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, escrow)
}

// Get обрабатывает GET /escrows/:id.
func (h *EscrowHandler) Get(c *gin.Context) {
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

	escrow, err := h.escrows.Get(c.Request.Context(), id, userID, role)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, escrow)
}

// ListByProject обрабатывает GET /projects/:id/escrows.
func (h *EscrowHandler) ListByProject(c *gin.Context) {
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

	escrows, err := h.escrows.ListByProject(c.Request.Context(), projectID, userID, role)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"escrows": escrows})
}

// Release обрабатывает POST /escrows/:id/release.
func (h *EscrowHandler) Release(c *gin.Context) {
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
		Amount *float64 `json:"amount"`
		Reason string   `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "освобождение средств клиентом"
	}

	escrow, err := h.escrows.Release(c.Request.Context(), id, req.Amount, req.Reason, userID, role, time.Now())
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, escrow)
}

// Refund обрабатывает POST /escrows/:id/refund.
func (h *EscrowHandler) Refund(c *gin.Context) {
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
		Amount *float64 `json:"amount"`
		Reason string   `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "добровольный возврат средств"
	}

	escrow, err := h.escrows.Refund(c.Request.Context(), id, req.Amount, req.Reason, userID, role, time.Now())
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, escrow)
}

// Cancel обрабатывает POST /escrows/:id/cancel.
func (h *EscrowHandler) Cancel(c *gin.Context) {
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

	escrow, err := h.escrows.Cancel(c.Request.Context(), id, userID, role, time.Now())
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, escrow)
}

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/construction-backend/internal/http/handlers/common"
	"github.com/ignatzorin/construction-backend/internal/service"
)

// DisputeHandler предоставляет HTTP слой для споров.
type DisputeHandler struct {
	disputes *service.DisputeService
}

// NewDisputeHandler создаёт хэндлер.
func NewDisputeHandler(disputes *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputes: disputes}
}

// Raise обрабатывает POST /projects/:id/disputes.
func (h *DisputeHandler) Raise(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		DisputeType string          `json:"dispute_type" binding:"required"`
		Description string          `json:"description" binding:"required"`
		Evidence    json.RawMessage `json:"evidence"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.Raise(c.Request.Context(), service.RaiseDisputeInput{
		ProjectID:   projectID,
		DisputeType: req.DisputeType,
		Description: req.Description,
		Evidence:    req.Evidence,
	}, userID)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dispute)
}

// Get обрабатывает GET /disputes/:id.
func (h *DisputeHandler) Get(c *gin.Context) {
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

	dispute, err := h.disputes.Get(c.Request.Context(), id, userID, role)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// Assign обрабатывает POST /admin/disputes/:id/assign.
func (h *DisputeHandler) Assign(c *gin.Context) {
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

	dispute, err := h.disputes.Assign(c.Request.Context(), id, userID, role)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// Resolve обрабатывает POST /admin/disputes/:id/resolve.
func (h *DisputeHandler) Resolve(c *gin.Context) {
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
		Outcome string                `json:"outcome" binding:"required"`
		Details string                `json:"details" binding:"required"`
		Splits  []service.EscrowSplit `json:"splits"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.Resolve(c.Request.Context(), service.ResolveDisputeInput{
		DisputeID: id,
		Outcome:   req.Outcome,
		Details:   req.Details,
		Splits:    req.Splits,
	}, userID, role, time.Now())
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// Close обрабатывает POST /disputes/:id/close.
func (h *DisputeHandler) Close(c *gin.Context) {
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

	dispute, err := h.disputes.Close(c.Request.Context(), id, userID, role)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// ListByProject обрабатывает GET /projects/:id/disputes.
func (h *DisputeHandler) ListByProject(c *gin.Context) {
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

	disputes, err := h.disputes.ListByProject(c.Request.Context(), projectID, userID, role)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"disputes": disputes})
}

// ListByStatus обрабатывает GET /admin/disputes.
func (h *DisputeHandler) ListByStatus(c *gin.Context) {
	_, role, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	status := c.DefaultQuery("status", "open")
	limit, offset := common.GetPagination(c)

	disputes, err := h.disputes.ListByStatus(c.Request.Context(), status, role, limit, offset)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"disputes": disputes})
}

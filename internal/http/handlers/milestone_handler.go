package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/construction-backend/internal/http/handlers/common"
	"github.com/ignatzorin/construction-backend/internal/service"
)

// MilestoneHandler предоставляет HTTP слой для этапов работ.
type MilestoneHandler struct {
	milestones *service.MilestoneService
}

// NewMilestoneHandler создаёт хэндлер.
func NewMilestoneHandler(milestones *service.MilestoneService) *MilestoneHandler {
	return &MilestoneHandler{milestones: milestones}
}

// Create обрабатывает POST /projects/:id/milestones.
func (h *MilestoneHandler) Create(c *gin.Context) {
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
		Title                  string     `json:"title" binding:"required"`
		Description            *string    `json:"description"`
		MilestoneOrder         int        `json:"milestone_order" binding:"required,gt=0"`
		Amount                 float64    `json:"amount" binding:"required,gt=0"`
		ExpectedCompletionDate *time.Time `json:"expected_completion_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	milestone, err := h.milestones.Create(c.Request.Context(), service.CreateMilestoneInput{
		ProjectID:              projectID,
		Title:                  req.Title,
		Description:            req.Description,
		MilestoneOrder:         req.MilestoneOrder,
		Amount:                 req.Amount,
		ExpectedCompletionDate: req.ExpectedCompletionDate,
	}, userID)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, milestone)
}

// List обрабатывает GET /projects/:id/milestones.
func (h *MilestoneHandler) List(c *gin.Context) {
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

	milestones, err := h.milestones.List(c.Request.Context(), projectID, userID, role)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"milestones": milestones})
}

// Start обрабатывает POST /milestones/:id/start.
func (h *MilestoneHandler) Start(c *gin.Context) {
	h.transition(c, func(id, userID uuid.UUID) (interface{}, error) {
		return h.milestones.Start(c.Request.Context(), id, userID)
	})
}

// Submit обрабатывает POST /milestones/:id/submit.
func (h *MilestoneHandler) Submit(c *gin.Context) {
	h.transition(c, func(id, userID uuid.UUID) (interface{}, error) {
		return h.milestones.Submit(c.Request.Context(), id, userID, time.Now())
	})
}

// Approve обрабатывает POST /milestones/:id/approve.
func (h *MilestoneHandler) Approve(c *gin.Context) {
	h.transition(c, func(id, userID uuid.UUID) (interface{}, error) {
		return h.milestones.Approve(c.Request.Context(), id, userID, time.Now())
	})
}

// Reject обрабатывает POST /milestones/:id/reject.
func (h *MilestoneHandler) Reject(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
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
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "причина отклонения обязательна")
		return
	}

	milestone, err := h.milestones.Reject(c.Request.Context(), id, userID, req.Reason)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, milestone)
}

func (h *MilestoneHandler) transition(c *gin.Context, op func(id, userID uuid.UUID) (interface{}, error)) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	milestone, err := op(id, userID)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, milestone)
}

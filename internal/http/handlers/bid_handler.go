package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/construction-backend/internal/http/handlers/common"
	"github.com/ignatzorin/construction-backend/internal/service"
)

// BidHandler предоставляет HTTP слой для ставок.
type BidHandler struct {
	bids *service.BidService
}

// NewBidHandler создаёт хэндлер.
func NewBidHandler(bids *service.BidService) *BidHandler {
	return &BidHandler{bids: bids}
}

// Create обрабатывает POST /bids.
func (h *BidHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		ProviderID            string  `json:"provider_id" binding:"required"`
		ServiceType           string  `json:"service_type" binding:"required"`
		OfferedPrice          float64 `json:"offered_price" binding:"required,gt=0"`
		EstimatedDurationDays int     `json:"estimated_duration_days" binding:"required,gt=0"`
		Proposal              *string `json:"proposal"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		common.RespondBadRequest(c, "неверный provider_id")
		return
	}

	bid, err := h.bids.Create(c.Request.Context(), service.CreateBidInput{
		ClientID:              userID,
		ProviderID:            providerID,
		ServiceType:           req.ServiceType,
		OfferedPrice:          req.OfferedPrice,
		EstimatedDurationDays: req.EstimatedDurationDays,
		Proposal:              req.Proposal,
	}, time.Now())
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, bid)
}

// Get обрабатывает GET /bids/:id.
func (h *BidHandler) Get(c *gin.Context) {
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

	bid, err := h.bids.Get(c.Request.Context(), id, userID, role)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, bid)
}

// Respond обрабатывает POST /bids/:id/respond.
func (h *BidHandler) Respond(c *gin.Context) {
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
		Accept bool `json:"accept"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	bid, err := h.bids.Respond(c.Request.Context(), id, userID, req.Accept, time.Now())
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, bid)
}

// Convert обрабатывает POST /bids/:id/convert.
func (h *BidHandler) Convert(c *gin.Context) {
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

	project, err := h.bids.ConvertToProject(c.Request.Context(), id, userID)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, project)
}

// ListMy обрабатывает GET /bids/my.
func (h *BidHandler) ListMy(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	bids, err := h.bids.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bids": bids})
}

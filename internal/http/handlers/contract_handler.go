package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/construction-backend/internal/http/handlers/common"
	"github.com/ignatzorin/construction-backend/internal/service"
)

// ContractHandler предоставляет HTTP слой для контрактов.
type ContractHandler struct {
	contracts *service.ContractService
}

// NewContractHandler создаёт хэндлер.
func NewContractHandler(contracts *service.ContractService) *ContractHandler {
	return &ContractHandler{contracts: contracts}
}

// Draft обрабатывает POST /contracts.
func (h *ContractHandler) Draft(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		ProjectID          string  `json:"project_id" binding:"required"`
		ContractTerms      string  `json:"contract_terms" binding:"required"`
		PaymentTerms       *string `json:"payment_terms"`
		DeliveryTerms      *string `json:"delivery_terms"`
		CancellationPolicy *string `json:"cancellation_policy"`
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

	contract, err := h.contracts.Draft(c.Request.Context(), service.DraftContractInput{
		ProjectID:          projectID,
		ContractTerms:      req.ContractTerms,
		PaymentTerms:       req.PaymentTerms,
		DeliveryTerms:      req.DeliveryTerms,
		CancellationPolicy: req.CancellationPolicy,
	}, userID)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, contract)
}

// Get обрабатывает GET /contracts/:id.
func (h *ContractHandler) Get(c *gin.Context) {
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

	contract, err := h.contracts.Get(c.Request.Context(), id, userID, role)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// GetByProject обрабатывает GET /projects/:id/contract.
func (h *ContractHandler) GetByProject(c *gin.Context) {
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

	contract, err := h.contracts.GetByProject(c.Request.Context(), projectID, userID, role)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// Sign обрабатывает POST /contracts/:id/sign.
func (h *ContractHandler) Sign(c *gin.Context) {
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

	contract, err := h.contracts.Sign(c.Request.Context(), id, userID, time.Now())
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// Terminate обрабатывает POST /contracts/:id/terminate.
func (h *ContractHandler) Terminate(c *gin.Context) {
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
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "причина расторжения обязательна")
		return
	}

	contract, err := h.contracts.Terminate(c.Request.Context(), id, userID, role, req.Reason)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ignatzorin/construction-backend/internal/events"
	"github.com/ignatzorin/construction-backend/internal/service"
)

// EventsHandler отвечает за установку WebSocket соединений для доменных событий.
type EventsHandler struct {
	hub          *events.Hub
	tokenManager *service.TokenManager
	upgrader     websocket.Upgrader
}

// NewEventsHandler создаёт новый хэндлер.
func NewEventsHandler(hub *events.Hub, tokens *service.TokenManager) *EventsHandler {
	return &EventsHandler{
		hub:          hub,
		tokenManager: tokens,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle обслуживает GET /api/events/ws?token=...
func (h *EventsHandler) Handle(c *gin.Context) {
	rawToken := c.Query("token")
	if rawToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "access токен обязателен"})
		return
	}

	userID, _, err := h.tokenManager.ParseAccess(rawToken)
	if err != nil || userID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "невалидный access токен"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	client := events.NewClient(conn, h.hub, userID)
	h.hub.Register(client)

	client.Run(c.Request.Context())
}

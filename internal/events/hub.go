package events

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"

	"github.com/ignatzorin/construction-backend/internal/logger"
	"github.com/ignatzorin/construction-backend/internal/models"
)

// PartiesResolver определяет получателей события по проекту.
type PartiesResolver interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

// Hub рассылает доменные события подключённым WebSocket клиентам. События
// уже зафиксированы в журнале domain_events; хаб отвечает только за
// доставку онлайн-подписчикам (at-least-once, потребители идемпотентны
// по id события).
type Hub struct {
	mu         sync.RWMutex
	clients    map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	resolver   PartiesResolver
	ctx        context.Context
}

type message struct {
	userID  uuid.UUID
	payload []byte
}

// NewHub создаёт новый хаб.
func NewHub(ctx context.Context, resolver PartiesResolver) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 32),
		resolver:   resolver,
		ctx:        ctx,
	}
}

// Run запускает главный цикл хаба.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg.userID, msg.payload)
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Publish рассылает доменное событие обеим сторонам проекта. Разрешение
// получателей выполняется асинхронно, вызывающий не блокируется.
func (h *Hub) Publish(event *models.DomainEvent) {
	if event == nil {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Printf("events publish panic recovered: %v\nStack trace:\n%s\n", r, debug.Stack())
			}
		}()

		project, err := h.resolver.GetByID(h.ctx, event.ProjectID)
		if err != nil {
			if logger.Log != nil {
				logger.Log.WithFields(map[string]interface{}{
					"project_id": event.ProjectID,
					"error":      err.Error(),
				}).Warn("events: не удалось определить получателей события")
			}
			return
		}

		raw, err := json.Marshal(map[string]interface{}{
			"type": event.Type,
			"data": event,
		})
		if err != nil {
			return
		}

		h.broadcast <- message{userID: project.ClientID, payload: raw}
		h.broadcast <- message{userID: project.ProviderID, payload: raw}
	}()
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.userID)
		}
	}
}

func (h *Hub) send(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
			// Медленный клиент отключается, чтобы не копить очередь.
			go func(c *Client) {
				defer func() {
					if r := recover(); r != nil {
						fmt.Printf("events client close panic recovered: %v\nStack trace:\n%s\n", r, debug.Stack())
					}
				}()
				c.Close()
			}(client)
		}
	}
}

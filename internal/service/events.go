package service

import (
	"github.com/ignatzorin/construction-backend/internal/models"
)

// EventPublisher рассылает доменные события подписчикам после фиксации
// транзакции. Реализация не должна блокировать вызывающего.
type EventPublisher interface {
	Publish(event *models.DomainEvent)
}

// publish отправляет событие, если издатель задан и событие не nil.
func publish(p EventPublisher, event *models.DomainEvent) {
	if p != nil && event != nil {
		p.Publish(event)
	}
}

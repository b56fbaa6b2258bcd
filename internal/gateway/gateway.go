package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ChargeRequest описывает списание средств через платёжный шлюз.
type ChargeRequest struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Description string    `json:"description,omitempty"`
}

// ChargeResult результат списания.
type ChargeResult struct {
	TransactionID string `json:"transaction_id"`
	Gateway       string `json:"gateway"`
}

// RefundRequest описывает возврат средств через платёжный шлюз.
type RefundRequest struct {
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
	Reason        string  `json:"reason,omitempty"`
}

// Gateway абстрагирует внешний платёжный шлюз. Все вызовы сетевые и могут
// завершиться ошибкой внешней зависимости.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) error
	Name() string
}

// Sandbox внутрипроцессный шлюз для разработки и тестов. Каждое списание
// получает уникальный идентификатор транзакции; возврат известной
// транзакции всегда успешен.
type Sandbox struct {
	mu      sync.Mutex
	charges map[string]float64
}

// NewSandbox создаёт внутрипроцессный шлюз.
func NewSandbox() *Sandbox {
	return &Sandbox{charges: make(map[string]float64)}
}

// Name возвращает имя шлюза.
func (s *Sandbox) Name() string {
	return "sandbox"
}

// Charge имитирует успешное списание.
func (s *Sandbox) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("gateway sandbox: сумма должна быть положительной")
	}

	txID := "sandbox-" + uuid.NewString()

	s.mu.Lock()
	s.charges[txID] = req.Amount
	s.mu.Unlock()

	return &ChargeResult{TransactionID: txID, Gateway: s.Name()}, nil
}

// Refund имитирует возврат по известной транзакции.
func (s *Sandbox) Refund(ctx context.Context, req RefundRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	charged, ok := s.charges[req.TransactionID]
	if !ok {
		return fmt.Errorf("gateway sandbox: транзакция %s не найдена", req.TransactionID)
	}
	if req.Amount > charged {
		return fmt.Errorf("gateway sandbox: возврат превышает сумму списания")
	}
	s.charges[req.TransactionID] = charged - req.Amount
	return nil
}

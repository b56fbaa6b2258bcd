package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ignatzorin/construction-backend/internal/pkg/apperror"
)

// Client реализует Gateway поверх HTTP API внешнего платёжного провайдера.
type Client struct {
	baseURL    string
	name       string
	apiKey     string
	httpClient *http.Client
}

// NewClient создаёт HTTP-клиент шлюза.
func NewClient(baseURL, name, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		name:    name,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name возвращает имя шлюза.
func (c *Client) Name() string {
	return c.name
}

// Charge выполняет списание через API шлюза.
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	var result ChargeResult
	if err := c.post(ctx, "charges", req, &result); err != nil {
		return nil, err
	}
	if result.TransactionID == "" {
		return nil, apperror.New(apperror.ErrCodeExternalDependency, "шлюз не вернул идентификатор транзакции")
	}
	if result.Gateway == "" {
		result.Gateway = c.name
	}
	return &result, nil
}

// Refund выполняет возврат через API шлюза.
func (c *Client) Refund(ctx context.Context, req RefundRequest) error {
	return c.post(ctx, "refunds", req, nil)
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	if c.baseURL == "" {
		return apperror.New(apperror.ErrCodeExternalDependency, "gateway: baseURL не задан")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := c.baseURL
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	url += path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeExternalDependency, "платёжный шлюз недоступен")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errorBody map[string]interface{}
		_ = json.NewDecoder(resp.Body).Decode(&errorBody)
		return apperror.Wrap(
			fmt.Errorf("gateway: код ответа %d: %v", resp.StatusCode, errorBody),
			apperror.ErrCodeExternalDependency,
			"платёжный шлюз отклонил запрос",
		)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeExternalDependency, "некорректный ответ платёжного шлюза")
		}
	}
	return nil
}

// Package gateway содержит клиентов внешнего платёжного шлюза.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/logger"
)

// HTTPGateway вызывает REST-шлюз: POST {baseURL}/charges.
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ repository.PaymentGateway = (*HTTPGateway)(nil)

// NewHTTPGateway создаёт клиента шлюза. timeout ограничивает одно списание.
func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chargeRequest struct {
	Amount   int64     `json:"amount"`
	Currency string    `json:"currency"`
	PayerID  uuid.UUID `json:"payer_id"`
	PayeeID  uuid.UUID `json:"payee_id"`
}

type chargeResponse struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
}

// Charge списывает средства. Сеть, таймаут и 5xx дают ErrGatewayUnavailable,
// явный отказ шлюза возвращается как *GatewayDeclinedError.
func (g *HTTPGateway) Charge(ctx context.Context, req repository.ChargeRequest) (repository.ChargeResult, error) {
	body, err := json.Marshal(chargeRequest{
		Amount:   req.Amount.Amount,
		Currency: req.Amount.Currency,
		PayerID:  req.PayerID,
		PayeeID:  req.PayeeID,
	})
	if err != nil {
		return repository.ChargeResult{}, fmt.Errorf("gateway: сериализация запроса: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return repository.ChargeResult{}, fmt.Errorf("gateway: создание запроса: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		logger.Get().WithFields(logrus.Fields{
			"idempotency_key": req.IdempotencyKey,
			"error":           err.Error(),
		}).Warn("gateway: запрос не выполнен")
		return repository.ChargeResult{}, fmt.Errorf("%w: %v", repository.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return repository.ChargeResult{}, fmt.Errorf("%w: чтение ответа: %v", repository.ErrGatewayUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return repository.ChargeResult{}, fmt.Errorf("%w: статус %d", repository.ErrGatewayUnavailable, resp.StatusCode)
	}

	var parsed chargeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return repository.ChargeResult{}, fmt.Errorf("%w: некорректный ответ: %v", repository.ErrGatewayUnavailable, err)
	}

	if resp.StatusCode >= 400 || parsed.Status != "succeeded" {
		reason := parsed.Reason
		if reason == "" {
			reason = fmt.Sprintf("статус %d", resp.StatusCode)
		}
		return repository.ChargeResult{}, &repository.GatewayDeclinedError{Reason: reason}
	}

	if parsed.Reference == "" {
		return repository.ChargeResult{}, fmt.Errorf("%w: в ответе нет reference", repository.ErrGatewayUnavailable)
	}
	return repository.ChargeResult{Reference: parsed.Reference}, nil
}

// Unavailable используется, когда адрес шлюза не настроен: все платежи уходят на ручную проверку.
type Unavailable struct{}

func (Unavailable) Charge(context.Context, repository.ChargeRequest) (repository.ChargeResult, error) {
	return repository.ChargeResult{}, repository.ErrGatewayUnavailable
}

// IsUnavailable сообщает, что шлюз недоступен, а не отказал.
func IsUnavailable(err error) bool {
	return errors.Is(err, repository.ErrGatewayUnavailable)
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
)

type ChargeRequest struct {
	// IdempotencyKey совпадает с ID платежа, повторное списание шлюз должен отклонить.
	IdempotencyKey string
	Amount         valueobject.Money
	PayerID        uuid.UUID
	PayeeID        uuid.UUID
}

type ChargeResult struct {
	Reference string
}

// PaymentGateway - внешний платёжный шлюз. Любая ошибка означает переход на ручную проверку.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

var ErrGatewayUnavailable = errors.New("платёжный шлюз недоступен")

// GatewayDeclinedError - отказ шлюза с причиной.
type GatewayDeclinedError struct {
	Reason string
}

func (e *GatewayDeclinedError) Error() string {
	return fmt.Sprintf("платёжный шлюз отклонил списание: %s", e.Reason)
}

// BlobStore хранит файлы подтверждений оплаты и отдаёт непрозрачные ссылки.
type BlobStore interface {
	Store(ctx context.Context, r io.Reader) (string, error)
	Retrieve(ctx context.Context, ref string) (io.ReadCloser, error)
}

// Notifier доставляет сообщения без ожидания и без возврата ошибок.
type Notifier interface {
	Send(ctx context.Context, msg entity.Message)
}

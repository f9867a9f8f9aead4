package repository

import (
	"context"

	"github.com/google/uuid"
)

// Repositories - набор репозиториев одной единицы работы.
type Repositories interface {
	Jobs() JobRepository
	Applications() ApplicationRepository
	Payments() PaymentRepository
	Disputes() DisputeRepository
	Events() JobEventRepository
	Ratings() RatingRepository
}

// Tx - репозитории, чьи изменения фиксируются вместе.
type Tx interface {
	Repositories
}

// Store - точка входа в хранилище. Чтение вне транзакции не имеет побочных эффектов.
type Store interface {
	Repositories
	Notifications() NotificationRepository

	// WithinJob выполняет fn в транзакции, удерживая эксклюзивную блокировку заказа.
	// Операции над разными заказами выполняются параллельно.
	WithinJob(ctx context.Context, jobID uuid.UUID, fn func(ctx context.Context, tx Tx) error) error
	// Transact выполняет fn в транзакции без блокировки заказа (создание новых заказов).
	Transact(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	CheckInvariants(ctx context.Context) ([]InvariantViolation, error)
}

// InvariantViolation описывает нарушенное правило целостности.
type InvariantViolation struct {
	Invariant string    `json:"invariant"`
	JobID     uuid.UUID `json:"job_id"`
	Detail    string    `json:"detail"`
}

const (
	InvariantSingleAccepted   = "single_accepted_application"
	InvariantCompletedSettled = "completed_requires_settled_payment"
	InvariantSingleActivePay  = "single_active_payment"
	InvariantAssignment       = "assigned_worker_matches_status"
	InvariantHeldHasDispute   = "held_payment_has_active_dispute"
)

package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
)

type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	// Update сохраняет заказ, если его версия не изменилась, и увеличивает job.Version.
	Update(ctx context.Context, job *entity.Job) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	List(ctx context.Context, filter JobFilter) ([]*entity.Job, error)
}

type JobFilter struct {
	ClientID *uuid.UUID
	WorkerID *uuid.UUID
	Status   string
	Limit    int
	Offset   int
}

type ApplicationRepository interface {
	Create(ctx context.Context, app *entity.Application) error
	Update(ctx context.Context, app *entity.Application) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Application, error)
	FindByJobID(ctx context.Context, jobID uuid.UUID) ([]*entity.Application, error)
	// FindActiveByJobAndWorker возвращает nil, nil если у исполнителя нет неотклонённого отклика.
	FindActiveByJobAndWorker(ctx context.Context, jobID, workerID uuid.UUID) (*entity.Application, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	Update(ctx context.Context, payment *entity.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error)
	FindByJobID(ctx context.Context, jobID uuid.UUID) ([]*entity.Payment, error)
	// FindActiveByJobID возвращает незавершённый платёж или nil, nil.
	FindActiveByJobID(ctx context.Context, jobID uuid.UUID) (*entity.Payment, error)
	// FindLatestByJobID возвращает последний платёж по заказу или nil, nil.
	FindLatestByJobID(ctx context.Context, jobID uuid.UUID) (*entity.Payment, error)
}

type DisputeRepository interface {
	Create(ctx context.Context, dispute *entity.Dispute) error
	Update(ctx context.Context, dispute *entity.Dispute) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error)
	FindByJobID(ctx context.Context, jobID uuid.UUID) ([]*entity.Dispute, error)
	FindActiveByJobID(ctx context.Context, jobID uuid.UUID) (*entity.Dispute, error)
	List(ctx context.Context, filter DisputeFilter) ([]*entity.Dispute, error)
}

type DisputeFilter struct {
	Status string
	Limit  int
	Offset int
}

type JobEventRepository interface {
	Append(ctx context.Context, event *entity.JobEvent) error
	ListByJobID(ctx context.Context, jobID uuid.UUID) ([]*entity.JobEvent, error)
}

type RatingRepository interface {
	Create(ctx context.Context, rating *entity.Rating) error
	ListByJobID(ctx context.Context, jobID uuid.UUID) ([]*entity.Rating, error)
	Exists(ctx context.Context, jobID, raterID uuid.UUID) (bool, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]*entity.Notification, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

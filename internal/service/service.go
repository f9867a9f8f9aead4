// Package service реализует жизненный цикл заказа: отклики, выполнение, оплату и споры.
// Все изменения одного заказа выполняются под его блокировкой, уведомления
// отправляются только после фиксации транзакции.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/logger"
	"github.com/ignatzorin/job-settlement/internal/notify"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

// Policy ограничивает циклы доработок и повторных загрузок подтверждения.
// Ноль означает отсутствие лимита.
type Policy struct {
	MaxRevisions       int
	MaxProofRejections int
	// EscalateOnLimit открывает спор вместо отказа, когда лимит исчерпан.
	EscalateOnLimit bool
}

// События уведомлений.
const (
	EventApplicationSubmitted = "application_submitted"
	EventApplicationAccepted  = "application_accepted"
	EventApplicationRejected  = "application_rejected"
	EventJobStarted           = "job_started"
	EventJobSubmitted         = "job_submitted_for_review"
	EventRevisionRequested    = "job_revision_requested"
	EventJobResubmitted       = "job_resubmitted"
	EventJobCancelled         = "job_cancelled"
	EventJobCompleted         = "job_completed"
	EventJobRated             = "job_rated"
	EventPaymentInitiated     = "payment_initiated"
	EventPaymentSettled       = "payment_settled"
	EventPaymentManualReview  = "payment_manual_review"
	EventProofSubmitted       = "payment_proof_submitted"
	EventProofRejected        = "payment_proof_rejected"
	EventDisputeOpened        = "dispute_opened"
	EventDisputeStatus        = "dispute_status_changed"
	EventDisputeResolved      = "dispute_resolved"
)

// Действия в истории заказа.
const (
	actionPosted            = "posted"
	actionAssigned          = "assigned"
	actionStarted           = "started"
	actionSubmitted         = "submitted_for_review"
	actionRevisionRequested = "revision_requested"
	actionResubmitted       = "resubmitted"
	actionCancelled         = "cancelled"
	actionCompleted         = "completed"
	actionRated             = "rated"
	actionPaymentInitiated  = "payment_initiated"
	actionPaymentManual     = "payment_manual_review"
	actionProofSubmitted    = "proof_submitted"
	actionProofRejected     = "proof_rejected"
	actionDisputeOpened     = "dispute_opened"
	actionDisputeStatus     = "dispute_status_changed"
	actionDisputeResolved   = "dispute_resolved"
)

type core struct {
	store    repository.Store
	notifier repository.Notifier
	log      *logrus.Entry
}

func newCore(store repository.Store, notifier repository.Notifier, component string) core {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return core{
		store:    store,
		notifier: notifier,
		log:      logger.Get().WithField("component", component),
	}
}

// withinJob выполняет fn под блокировкой заказа и рассылает накопленные уведомления после фиксации.
func (c core) withinJob(ctx context.Context, jobID uuid.UUID, fn func(ctx context.Context, tx repository.Tx, batch *notify.Batch) error) error {
	var batch notify.Batch
	err := c.store.WithinJob(ctx, jobID, func(ctx context.Context, tx repository.Tx) error {
		batch.Reset()
		return fn(ctx, tx, &batch)
	})
	if err != nil {
		return err
	}
	batch.Flush(ctx, c.notifier)
	return nil
}

func (c core) record(ctx context.Context, tx repository.Tx, job *entity.Job, actorID uuid.UUID, action string, from valueobject.JobStatus, payload map[string]string) error {
	if err := tx.Events().Append(ctx, entity.NewJobEvent(job, actorID, action, from, payload)); err != nil {
		return err
	}
	c.log.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"actor_id": actorID,
		"action":   action,
		"from":     from,
		"to":       job.Status,
	}).Info("переход заказа")
	return nil
}

// jobForOwner загружает заказ и проверяет, что actor - его заказчик.
func jobForOwner(ctx context.Context, tx repository.Tx, jobID uuid.UUID, actor valueobject.Actor) (*entity.Job, error) {
	job, err := tx.Jobs().FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsOwnedBy(actor.ID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "действие доступно только заказчику")
	}
	return job, nil
}

func jobForWorker(ctx context.Context, tx repository.Tx, jobID uuid.UUID, actor valueobject.Actor) (*entity.Job, error) {
	job, err := tx.Jobs().FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsAssignedTo(actor.ID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "действие доступно только назначенному исполнителю")
	}
	return job, nil
}

func requireRole(actor valueobject.Actor, roles ...valueobject.Role) error {
	for _, r := range roles {
		if actor.Is(r) {
			return nil
		}
	}
	return apperror.ErrForbidden
}

// canViewJob: участники заказа и администраторы.
func canViewJob(actor valueobject.Actor, job *entity.Job) bool {
	return actor.Role.IsAdmin() || job.IsParticipant(actor.ID)
}

func isVersionConflict(err error) bool {
	return errors.Is(err, apperror.ErrVersionConflict)
}

func meta(kv ...string) map[string]string {
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return m
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

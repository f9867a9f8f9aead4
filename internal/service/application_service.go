package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/notify"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

// ApplicationService ведёт реестр откликов исполнителей.
type ApplicationService struct {
	core
}

func NewApplicationService(store repository.Store, notifier repository.Notifier) *ApplicationService {
	return &ApplicationService{core: newCore(store, notifier, "applications")}
}

type SubmitApplicationInput struct {
	ProposedBudget valueobject.Money
	CoverLetter    string
}

// Submit создаёт отклик в статусе pending.
func (s *ApplicationService) Submit(ctx context.Context, actor valueobject.Actor, jobID uuid.UUID, input SubmitApplicationInput) (*entity.Application, error) {
	if err := requireRole(actor, valueobject.RoleWorker); err != nil {
		return nil, apperror.New(apperror.ErrCodeForbidden, "откликаться могут только исполнители")
	}

	var app *entity.Application
	err := s.withinJob(ctx, jobID, func(ctx context.Context, tx repository.Tx, batch *notify.Batch) error {
		job, err := tx.Jobs().FindByID(ctx, jobID)
		if err != nil {
			return err
		}
		if job.IsOwnedBy(actor.ID) {
			return apperror.New(apperror.ErrCodeForbidden, "нельзя откликнуться на собственный заказ")
		}
		if job.Status != valueobject.JobStatusPosted {
			return apperror.Newf(apperror.ErrCodeIllegalTransition, "заказ не принимает отклики (текущий статус: %s)", job.Status)
		}
		if !input.ProposedBudget.SameCurrency(job.Budget) {
			return apperror.Newf(apperror.ErrCodeValidation, "валюта отклика должна совпадать с валютой заказа (%s)", job.Budget.Currency)
		}

		existing, err := tx.Applications().FindActiveByJobAndWorker(ctx, jobID, actor.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperror.New(apperror.ErrCodeDuplicateApplication, "вы уже откликнулись на этот заказ")
		}

		app, err = entity.NewApplication(jobID, actor.ID, input.ProposedBudget, input.CoverLetter)
		if err != nil {
			return err
		}
		if err := tx.Applications().Create(ctx, app); err != nil {
			return err
		}

		batch.Add(EventApplicationSubmitted, "Новый отклик", "На ваш заказ «"+job.Title+"» откликнулся исполнитель",
			valueobject.PriorityNormal,
			meta("job_id", jobID.String(), "application_id", app.ID.String(), "proposed_budget", app.ProposedBudget.String()),
			job.ClientID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"job_id":         jobID,
		"application_id": app.ID,
		"worker_id":      actor.ID,
	}).Info("отклик создан")
	return app, nil
}

// AcceptResult - состояние после принятия отклика.
type AcceptResult struct {
	Job         *entity.Job
	Application *entity.Application
	Rejected    []*entity.Application
}

// Accept принимает отклик: остальные отклики отклоняются, заказ переходит в assigned.
// Из двух параллельных вызовов успешен только первый, второй получает ALREADY_ASSIGNED.
func (s *ApplicationService) Accept(ctx context.Context, actor valueobject.Actor, jobID, applicationID uuid.UUID) (*AcceptResult, error) {
	var result AcceptResult
	err := s.withinJob(ctx, jobID, func(ctx context.Context, tx repository.Tx, batch *notify.Batch) error {
		result = AcceptResult{}

		job, err := jobForOwner(ctx, tx, jobID, actor)
		if err != nil {
			return err
		}
		if job.AssignedWorkerID != nil {
			return apperror.New(apperror.ErrCodeAlreadyAssigned, "исполнитель по заказу уже выбран")
		}
		if job.Status != valueobject.JobStatusPosted {
			return apperror.Newf(apperror.ErrCodeIllegalTransition, "принять отклик можно только у опубликованного заказа (текущий статус: %s)", job.Status)
		}

		app, err := applicationOfJob(ctx, tx, jobID, applicationID)
		if err != nil {
			return err
		}
		if err := app.Accept(); err != nil {
			return err
		}

		siblings, err := tx.Applications().FindByJobID(ctx, jobID)
		if err != nil {
			return err
		}
		for _, other := range siblings {
			if other.ID == app.ID || !other.Reject() {
				continue
			}
			if err := tx.Applications().Update(ctx, other); err != nil {
				return err
			}
			result.Rejected = append(result.Rejected, other)
			batch.Add(EventApplicationRejected, "Отклик отклонён", "Заказчик выбрал другого исполнителя для заказа «"+job.Title+"»",
				valueobject.PriorityLow, meta("job_id", jobID.String(), "application_id", other.ID.String()), other.WorkerID)
		}

		from := job.Status
		if err := job.Assign(app); err != nil {
			return err
		}
		if err := tx.Applications().Update(ctx, app); err != nil {
			return err
		}
		if err := tx.Jobs().Update(ctx, job); err != nil {
			return err
		}
		if err := s.record(ctx, tx, job, actor.ID, actionAssigned, from, meta("application_id", app.ID.String(), "worker_id", app.WorkerID.String())); err != nil {
			return err
		}

		batch.Add(EventApplicationAccepted, "Отклик принят", "Вас выбрали исполнителем заказа «"+job.Title+"»",
			valueobject.PriorityHigh, meta("job_id", jobID.String(), "application_id", app.ID.String()), app.WorkerID)

		result.Job = job
		result.Application = app
		return nil
	})
	if err != nil {
		if isVersionConflict(err) {
			return nil, apperror.Wrap(err, apperror.ErrCodeAlreadyAssigned, "исполнитель по заказу уже выбран")
		}
		return nil, err
	}
	return &result, nil
}

// Reject отклоняет отклик. Уже рассмотренный отклик возвращается без изменений.
func (s *ApplicationService) Reject(ctx context.Context, actor valueobject.Actor, jobID, applicationID uuid.UUID) (*entity.Application, error) {
	var app *entity.Application
	err := s.withinJob(ctx, jobID, func(ctx context.Context, tx repository.Tx, batch *notify.Batch) error {
		job, err := jobForOwner(ctx, tx, jobID, actor)
		if err != nil {
			return err
		}
		app, err = applicationOfJob(ctx, tx, jobID, applicationID)
		if err != nil {
			return err
		}
		if !app.Reject() {
			return nil
		}
		if err := tx.Applications().Update(ctx, app); err != nil {
			return err
		}

		batch.Add(EventApplicationRejected, "Отклик отклонён", "Заказчик отклонил ваш отклик на заказ «"+job.Title+"»",
			valueobject.PriorityLow, meta("job_id", jobID.String(), "application_id", app.ID.String()), app.WorkerID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// ListByJob: заказчик и администраторы видят все отклики, исполнитель только свой.
func (s *ApplicationService) ListByJob(ctx context.Context, actor valueobject.Actor, jobID uuid.UUID) ([]*entity.Application, error) {
	job, err := s.store.Jobs().FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	apps, err := s.store.Applications().FindByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsOwnedBy(actor.ID) || actor.Role.IsAdmin() {
		return apps, nil
	}

	own := make([]*entity.Application, 0, 1)
	for _, a := range apps {
		if a.IsOwnedBy(actor.ID) {
			own = append(own, a)
		}
	}
	return own, nil
}

func applicationOfJob(ctx context.Context, tx repository.Tx, jobID, applicationID uuid.UUID) (*entity.Application, error) {
	app, err := tx.Applications().FindByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.JobID != jobID {
		return nil, apperror.ErrApplicationNotFound
	}
	return app, nil
}

package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/notify"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

// JobService - конечный автомат заказа. Перевод в completed выполняет только оплата.
type JobService struct {
	core
	policy Policy
}

func NewJobService(store repository.Store, notifier repository.Notifier, policy Policy) *JobService {
	return &JobService{core: newCore(store, notifier, "jobs"), policy: policy}
}

type PostJobInput struct {
	Title       string
	Description string
	Budget      valueobject.Money
	Deadline    *time.Time
}

func (s *JobService) Post(ctx context.Context, actor valueobject.Actor, input PostJobInput) (*entity.Job, error) {
	if err := requireRole(actor, valueobject.RoleClient); err != nil {
		return nil, apperror.New(apperror.ErrCodeForbidden, "публиковать заказы могут только заказчики")
	}

	job, err := entity.NewJob(actor.ID, input.Title, input.Description, input.Budget, input.Deadline)
	if err != nil {
		return nil, err
	}

	err = s.store.Transact(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Jobs().Create(ctx, job); err != nil {
			return err
		}
		return s.record(ctx, tx, job, actor.ID, actionPosted, job.Status, meta("budget", job.Budget.String()))
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobService) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return s.store.Jobs().FindByID(ctx, id)
}

type ListJobsInput struct {
	Mine   bool
	Status string
	Limit  int
	Offset int
}

// List возвращает открытую ленту заказов или, с Mine, заказы участника.
func (s *JobService) List(ctx context.Context, actor valueobject.Actor, input ListJobsInput) ([]*entity.Job, error) {
	if input.Status != "" {
		if _, err := valueobject.NewJobStatus(input.Status); err != nil {
			return nil, err
		}
	}
	limit, offset := normalizePage(input.Limit, input.Offset)
	filter := repository.JobFilter{Status: input.Status, Limit: limit, Offset: offset}

	if input.Mine {
		id := actor.ID
		switch actor.Role {
		case valueobject.RoleClient:
			filter.ClientID = &id
		case valueobject.RoleWorker:
			filter.WorkerID = &id
		}
	}
	return s.store.Jobs().List(ctx, filter)
}

// StartWork: assigned -> in_progress.
func (s *JobService) StartWork(ctx context.Context, actor valueobject.Actor, jobID uuid.UUID) (*entity.Job, error) {
	return s.workerTransition(ctx, actor, jobID, actionStarted, func(job *entity.Job) error {
		return job.StartWork()
	}, func(job *entity.Job, batch *notify.Batch) {
		batch.Add(EventJobStarted, "Работа начата", "Исполнитель приступил к заказу «"+job.Title+"»",
			valueobject.PriorityLow, meta("job_id", job.ID.String()), job.ClientID)
	})
}

func (s *JobService) SubmitForReview(ctx context.Context, actor valueobject.Actor, jobID uuid.UUID) (*entity.Job, error) {
	return s.workerTransition(ctx, actor, jobID, actionSubmitted, func(job *entity.Job) error {
		return job.SubmitForReview()
	}, func(job *entity.Job, batch *notify.Batch) {
		batch.Add(EventJobSubmitted, "Работа сдана", "Исполнитель сдал заказ «"+job.Title+"» на приёмку",
			valueobject.PriorityHigh, meta("job_id", job.ID.String()), job.ClientID)
	})
}

// Resubmit возвращает заказ в работу после запроса доработки.
func (s *JobService) Resubmit(ctx context.Context, actor valueobject.Actor, jobID uuid.UUID) (*entity.Job, error) {
	return s.workerTransition(ctx, actor, jobID, actionResubmitted, func(job *entity.Job) error {
		return job.Resubmit()
	}, func(job *entity.Job, batch *notify.Batch) {
		batch.Add(EventJobResubmitted, "Доработка начата", "Исполнитель взял заказ «"+job.Title+"» в доработку",
			valueobject.PriorityNormal, meta("job_id", job.ID.String(), "revision", strconv.Itoa(job.RevisionCount)), job.ClientID)
	})
}

func (s *JobService) workerTransition(ctx context.Context, actor valueobject.Actor, jobID uuid.UUID, action string,
	apply func(*entity.Job) error, announce func(*entity.Job, *notify.Batch)) (*entity.Job, error) {
	var job *entity.Job
	err := s.withinJob(ctx, jobID, func(ctx context.Context, tx repository.Tx, batch *notify.Batch) error {
		var err error
		job, err = jobForWorker(ctx, tx, jobID, actor)
		if err != nil {
			return err
		}
		from := job.Status
		if err := apply(job); err != nil {
			return err
		}
		if err := tx.Jobs().Update(ctx, job); err != nil {
			return err
		}
		if err := s.record(ctx, tx, job, actor.ID, action, from, nil); err != nil {
			return err
		}
		announce(job, batch)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// RequestRevision возвращает работу исполнителю. При исчерпании лимита доработок
// запрос отклоняется или, если включена эскалация, по заказу открывается спор.
func (s *JobService) RequestRevision(ctx context.Context, actor valueobject.Actor, jobID uuid.UUID, reason string) (*entity.Job, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "причина доработки обязательна")
	}

	var job *entity.Job
	err := s.withinJob(ctx, jobID, func(ctx context.Context, tx repository.Tx, batch *notify.Batch) error {
		var err error
		job, err = jobForOwner(ctx, tx, jobID, actor)
		if err != nil {
			return err
		}

		if s.revisionLimitReached(job) {
			if !s.policy.EscalateOnLimit {
				return apperror.Newf(apperror.ErrCodeIllegalTransition, "исчерпан лимит доработок (%d)", s.policy.MaxRevisions)
			}
			description := fmt.Sprintf("Исчерпан лимит доработок (%d). Последний запрос: %s", s.policy.MaxRevisions, strings.TrimSpace(reason))
			_, err := s.openTx(ctx, tx, batch, job, actor, description)
			return err
		}

		// Пока платёж не завершён, заказ должен оставаться на приёмке.
		payment, err := tx.Payments().FindActiveByJobID(ctx, jobID)
		if err != nil {
			return err
		}
		if payment != nil {
			return apperror.New(apperror.ErrCodeIllegalTransition, "по заказу есть незавершённый платёж, доработка недоступна")
		}

		from := job.Status
		if err := job.RequestRevision(reason); err != nil {
			return err
		}
		if err := tx.Jobs().Update(ctx, job); err != nil {
			return err
		}
		if err := s.record(ctx, tx, job, actor.ID, actionRevisionRequested, from,
			meta("reason", *job.LastRevisionReason, "revision", strconv.Itoa(job.RevisionCount))); err != nil {
			return err
		}

		batch.Add(EventRevisionRequested, "Запрошена доработка", "Заказчик просит доработать заказ «"+job.Title+"»: "+*job.LastRevisionReason,
			valueobject.PriorityHigh, meta("job_id", job.ID.String()), *job.AssignedWorkerID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobService) revisionLimitReached(job *entity.Job) bool {
	return s.policy.MaxRevisions > 0 &&
		job.Status == valueobject.JobStatusAwaitingCompletion &&
		job.RevisionCount >= s.policy.MaxRevisions
}

// Cancel доступен заказчику и HR-администратору, пока по заказу нет незавершённого
// платежа и открытого спора.
func (s *JobService) Cancel(ctx context.Context, actor valueobject.Actor, jobID uuid.UUID, reason string) (*entity.Job, error) {
	var job *entity.Job
	err := s.withinJob(ctx, jobID, func(ctx context.Context, tx repository.Tx, batch *notify.Batch) error {
		var err error
		job, err = tx.Jobs().FindByID(ctx, jobID)
		if err != nil {
			return err
		}
		if !job.IsOwnedBy(actor.ID) && !actor.Is(valueobject.RoleHRAdmin) {
			return apperror.New(apperror.ErrCodeForbidden, "отменить заказ может только заказчик или HR-администратор")
		}

		payment, err := tx.Payments().FindActiveByJobID(ctx, jobID)
		if err != nil {
			return err
		}
		if payment != nil {
			return apperror.New(apperror.ErrCodeIllegalTransition, "по заказу есть незавершённый платёж")
		}
		dispute, err := tx.Disputes().FindActiveByJobID(ctx, jobID)
		if err != nil {
			return err
		}
		if dispute != nil {
			return apperror.New(apperror.ErrCodeIllegalTransition, "по заказу открыт спор, отмена возможна только решением спора")
		}

		from := job.Status
		if err := job.Cancel(reason); err != nil {
			return err
		}
		if err := tx.Jobs().Update(ctx, job); err != nil {
			return err
		}

		apps, err := tx.Applications().FindByJobID(ctx, jobID)
		if err != nil {
			return err
		}
		for _, app := range apps {
			if !app.Reject() {
				continue
			}
			if err := tx.Applications().Update(ctx, app); err != nil {
				return err
			}
			batch.Add(EventApplicationRejected, "Заказ отменён", "Заказ «"+job.Title+"» отменён, ваш отклик закрыт",
				valueobject.PriorityLow, meta("job_id", jobID.String(), "application_id", app.ID.String()), app.WorkerID)
		}

		if err := s.record(ctx, tx, job, actor.ID, actionCancelled, from, meta("reason", strings.TrimSpace(reason))); err != nil {
			return err
		}

		recipients := job.Participants()
		batch.Add(EventJobCancelled, "Заказ отменён", "Заказ «"+job.Title+"» отменён",
			valueobject.PriorityNormal, meta("job_id", jobID.String()), withoutActor(recipients, actor.ID)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Rate сохраняет оценку завершённого заказа: заказчик оценивает исполнителя и наоборот.
func (s *JobService) Rate(ctx context.Context, actor valueobject.Actor, jobID uuid.UUID, score int, comment string) (*entity.Rating, error) {
	var rating *entity.Rating
	err := s.withinJob(ctx, jobID, func(ctx context.Context, tx repository.Tx, batch *notify.Batch) error {
		job, err := tx.Jobs().FindByID(ctx, jobID)
		if err != nil {
			return err
		}

		var rateeID uuid.UUID
		switch {
		case job.IsOwnedBy(actor.ID):
			if job.AssignedWorkerID == nil {
				return apperror.New(apperror.ErrCodeIllegalTransition, "у заказа нет исполнителя")
			}
			rateeID = *job.AssignedWorkerID
		case job.IsAssignedTo(actor.ID):
			rateeID = job.ClientID
		default:
			return apperror.New(apperror.ErrCodeForbidden, "оценку оставляют только участники заказа")
		}
		if job.Status != valueobject.JobStatusCompleted {
			return apperror.Newf(apperror.ErrCodeIllegalTransition, "оценить можно только завершённый заказ (текущий статус: %s)", job.Status)
		}

		exists, err := tx.Ratings().Exists(ctx, jobID, actor.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperror.New(apperror.ErrCodeConflict, "вы уже оценили этот заказ")
		}

		rating, err = entity.NewRating(jobID, actor.ID, rateeID, score, comment)
		if err != nil {
			return err
		}
		if err := tx.Ratings().Create(ctx, rating); err != nil {
			return err
		}
		if err := s.record(ctx, tx, job, actor.ID, actionRated, job.Status, meta("score", strconv.Itoa(score))); err != nil {
			return err
		}

		batch.Add(EventJobRated, "Новая оценка", fmt.Sprintf("Вам поставили оценку %d за заказ «%s»", score, job.Title),
			valueobject.PriorityLow, meta("job_id", jobID.String()), rateeID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rating, nil
}

func (s *JobService) Ratings(ctx context.Context, jobID uuid.UUID) ([]*entity.Rating, error) {
	if _, err := s.store.Jobs().FindByID(ctx, jobID); err != nil {
		return nil, err
	}
	return s.store.Ratings().ListByJobID(ctx, jobID)
}

// History - журнал переходов заказа, доступен участникам и администраторам.
func (s *JobService) History(ctx context.Context, actor valueobject.Actor, jobID uuid.UUID) ([]*entity.JobEvent, error) {
	job, err := s.store.Jobs().FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !canViewJob(actor, job) {
		return nil, apperror.ErrForbidden
	}
	return s.store.Events().ListByJobID(ctx, jobID)
}

// CheckInvariants проверяет целостность данных. Доступно администраторам.
func (s *JobService) CheckInvariants(ctx context.Context, actor valueobject.Actor) ([]repository.InvariantViolation, error) {
	if !actor.Role.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	violations, err := s.store.CheckInvariants(ctx)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		s.log.WithField("violations", len(violations)).Error("нарушены инварианты хранилища")
	}
	return violations, nil
}

func withoutActor(ids []uuid.UUID, actorID uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != actorID {
			out = append(out, id)
		}
	}
	return out
}

package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

type jobRepo struct{ t *tx }

func (r jobRepo) Create(ctx context.Context, job *entity.Job) error {
	if _, ok := r.t.job(job.ID); ok {
		return apperror.New(apperror.ErrCodeConflict, "заказ уже существует")
	}
	r.t.jobBase[job.ID] = 0
	r.t.jobs[job.ID] = job.Clone()
	return r.t.flush()
}

func (r jobRepo) Update(ctx context.Context, job *entity.Job) error {
	current, ok := r.t.job(job.ID)
	if !ok {
		return apperror.ErrJobNotFound
	}
	if current.Version != job.Version {
		return apperror.ErrVersionConflict
	}
	if _, tracked := r.t.jobBase[job.ID]; !tracked {
		r.t.jobBase[job.ID] = current.Version
	}
	job.Version++
	r.t.jobs[job.ID] = job.Clone()
	return r.t.flush()
}

func (r jobRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	job, ok := r.t.job(id)
	if !ok {
		return nil, apperror.ErrJobNotFound
	}
	return job, nil
}

func (r jobRepo) List(ctx context.Context, filter repository.JobFilter) ([]*entity.Job, error) {
	r.t.s.mu.RLock()
	jobs := merged(r.t.s.jobs, r.t.jobs, func(j *entity.Job) bool {
		if filter.ClientID != nil && j.ClientID != *filter.ClientID {
			return false
		}
		if filter.WorkerID != nil && !j.IsAssignedTo(*filter.WorkerID) {
			return false
		}
		return filter.Status == "" || string(j.Status) == filter.Status
	})
	r.t.s.mu.RUnlock()

	sortByCreated(jobs, func(j *entity.Job) int64 { return j.CreatedAt.UnixNano() }, true)
	return paginate(jobs, filter.Limit, filter.Offset), nil
}

type applicationRepo struct{ t *tx }

func (r applicationRepo) Create(ctx context.Context, app *entity.Application) error {
	if _, ok := r.t.application(app.ID); ok {
		return apperror.New(apperror.ErrCodeConflict, "отклик уже существует")
	}
	r.t.applications[app.ID] = app.Clone()
	return r.t.flush()
}

func (r applicationRepo) Update(ctx context.Context, app *entity.Application) error {
	if _, ok := r.t.application(app.ID); !ok {
		return apperror.ErrApplicationNotFound
	}
	r.t.applications[app.ID] = app.Clone()
	return r.t.flush()
}

func (r applicationRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Application, error) {
	app, ok := r.t.application(id)
	if !ok {
		return nil, apperror.ErrApplicationNotFound
	}
	return app, nil
}

func (r applicationRepo) FindByJobID(ctx context.Context, jobID uuid.UUID) ([]*entity.Application, error) {
	r.t.s.mu.RLock()
	apps := merged(r.t.s.applications, r.t.applications, func(a *entity.Application) bool {
		return a.JobID == jobID
	})
	r.t.s.mu.RUnlock()

	sortByCreated(apps, func(a *entity.Application) int64 { return a.CreatedAt.UnixNano() }, false)
	return apps, nil
}

func (r applicationRepo) FindActiveByJobAndWorker(ctx context.Context, jobID, workerID uuid.UUID) (*entity.Application, error) {
	apps, _ := r.FindByJobID(ctx, jobID)
	for _, a := range apps {
		if a.WorkerID == workerID && a.Status != valueobject.ApplicationStatusRejected {
			return a, nil
		}
	}
	return nil, nil
}

type paymentRepo struct{ t *tx }

func (r paymentRepo) Create(ctx context.Context, p *entity.Payment) error {
	if _, ok := r.t.payment(p.ID); ok {
		return apperror.New(apperror.ErrCodeConflict, "платёж уже существует")
	}
	r.t.payments[p.ID] = p.Clone()
	return r.t.flush()
}

func (r paymentRepo) Update(ctx context.Context, p *entity.Payment) error {
	if _, ok := r.t.payment(p.ID); !ok {
		return apperror.ErrPaymentNotFound
	}
	r.t.payments[p.ID] = p.Clone()
	return r.t.flush()
}

func (r paymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	p, ok := r.t.payment(id)
	if !ok {
		return nil, apperror.ErrPaymentNotFound
	}
	return p, nil
}

func (r paymentRepo) FindByJobID(ctx context.Context, jobID uuid.UUID) ([]*entity.Payment, error) {
	r.t.s.mu.RLock()
	payments := merged(r.t.s.payments, r.t.payments, func(p *entity.Payment) bool {
		return p.JobID == jobID
	})
	r.t.s.mu.RUnlock()

	sortByCreated(payments, func(p *entity.Payment) int64 { return p.CreatedAt.UnixNano() }, false)
	return payments, nil
}

func (r paymentRepo) FindActiveByJobID(ctx context.Context, jobID uuid.UUID) (*entity.Payment, error) {
	payments, _ := r.FindByJobID(ctx, jobID)
	for _, p := range payments {
		if !p.Status.IsTerminal() {
			return p, nil
		}
	}
	return nil, nil
}

func (r paymentRepo) FindLatestByJobID(ctx context.Context, jobID uuid.UUID) (*entity.Payment, error) {
	payments, _ := r.FindByJobID(ctx, jobID)
	if len(payments) == 0 {
		return nil, nil
	}
	return payments[len(payments)-1], nil
}

type disputeRepo struct{ t *tx }

func (r disputeRepo) Create(ctx context.Context, d *entity.Dispute) error {
	if _, ok := r.t.dispute(d.ID); ok {
		return apperror.New(apperror.ErrCodeConflict, "спор уже существует")
	}
	r.t.disputes[d.ID] = d.Clone()
	return r.t.flush()
}

func (r disputeRepo) Update(ctx context.Context, d *entity.Dispute) error {
	if _, ok := r.t.dispute(d.ID); !ok {
		return apperror.ErrDisputeNotFound
	}
	r.t.disputes[d.ID] = d.Clone()
	return r.t.flush()
}

func (r disputeRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	d, ok := r.t.dispute(id)
	if !ok {
		return nil, apperror.ErrDisputeNotFound
	}
	return d, nil
}

func (r disputeRepo) FindByJobID(ctx context.Context, jobID uuid.UUID) ([]*entity.Dispute, error) {
	r.t.s.mu.RLock()
	disputes := merged(r.t.s.disputes, r.t.disputes, func(d *entity.Dispute) bool {
		return d.JobID == jobID
	})
	r.t.s.mu.RUnlock()

	sortByCreated(disputes, func(d *entity.Dispute) int64 { return d.CreatedAt.UnixNano() }, false)
	return disputes, nil
}

func (r disputeRepo) FindActiveByJobID(ctx context.Context, jobID uuid.UUID) (*entity.Dispute, error) {
	disputes, _ := r.FindByJobID(ctx, jobID)
	for _, d := range disputes {
		if d.IsActive() {
			return d, nil
		}
	}
	return nil, nil
}

func (r disputeRepo) List(ctx context.Context, filter repository.DisputeFilter) ([]*entity.Dispute, error) {
	r.t.s.mu.RLock()
	disputes := merged(r.t.s.disputes, r.t.disputes, func(d *entity.Dispute) bool {
		return filter.Status == "" || string(d.Status) == filter.Status
	})
	r.t.s.mu.RUnlock()

	sortByCreated(disputes, func(d *entity.Dispute) int64 { return d.CreatedAt.UnixNano() }, false)
	return paginate(disputes, filter.Limit, filter.Offset), nil
}

type eventRepo struct{ t *tx }

func (r eventRepo) Append(ctx context.Context, e *entity.JobEvent) error {
	r.t.events = append(r.t.events, e)
	return r.t.flush()
}

func (r eventRepo) ListByJobID(ctx context.Context, jobID uuid.UUID) ([]*entity.JobEvent, error) {
	r.t.s.mu.RLock()
	events := append([]*entity.JobEvent(nil), r.t.s.events[jobID]...)
	r.t.s.mu.RUnlock()

	for _, e := range r.t.events {
		if e.JobID == jobID {
			events = append(events, e)
		}
	}
	return events, nil
}

type ratingRepo struct{ t *tx }

func (r ratingRepo) Create(ctx context.Context, rating *entity.Rating) error {
	exists, _ := r.Exists(ctx, rating.JobID, rating.RaterID)
	if exists {
		return apperror.New(apperror.ErrCodeConflict, "оценка по заказу уже выставлена")
	}
	r.t.ratings = append(r.t.ratings, rating)
	return r.t.flush()
}

func (r ratingRepo) ListByJobID(ctx context.Context, jobID uuid.UUID) ([]*entity.Rating, error) {
	r.t.s.mu.RLock()
	ratings := append([]*entity.Rating(nil), r.t.s.ratings[jobID]...)
	r.t.s.mu.RUnlock()

	for _, rt := range r.t.ratings {
		if rt.JobID == jobID {
			ratings = append(ratings, rt)
		}
	}
	return ratings, nil
}

func (r ratingRepo) Exists(ctx context.Context, jobID, raterID uuid.UUID) (bool, error) {
	ratings, _ := r.ListByJobID(ctx, jobID)
	for _, rt := range ratings {
		if rt.RaterID == raterID {
			return true, nil
		}
	}
	return false, nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *n
	r.s.notifications[n.ID] = &c
	return nil
}

func (r notificationRepo) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]*entity.Notification, error) {
	r.s.mu.RLock()
	var out []*entity.Notification
	for _, n := range r.s.notifications {
		if n.RecipientID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		c := *n
		out = append(out, &c)
	}
	r.s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

func (r notificationRepo) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok || n.RecipientID != userID {
		return apperror.ErrNotificationNotFound
	}
	n.IsRead = true
	return nil
}

func (r notificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	count := 0
	for _, n := range r.s.notifications {
		if n.RecipientID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

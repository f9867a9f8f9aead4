package memory

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

// tx накапливает изменения и применяет их к Store одним шагом в commit.
type tx struct {
	s          *Store
	autocommit bool

	jobs         map[uuid.UUID]*entity.Job
	jobBase      map[uuid.UUID]int64
	applications map[uuid.UUID]*entity.Application
	payments     map[uuid.UUID]*entity.Payment
	disputes     map[uuid.UUID]*entity.Dispute
	events       []*entity.JobEvent
	ratings      []*entity.Rating
}

func newTx(s *Store) *tx {
	t := &tx{s: s}
	t.reset()
	return t
}

func (t *tx) reset() {
	t.jobs = make(map[uuid.UUID]*entity.Job)
	t.jobBase = make(map[uuid.UUID]int64)
	t.applications = make(map[uuid.UUID]*entity.Application)
	t.payments = make(map[uuid.UUID]*entity.Payment)
	t.disputes = make(map[uuid.UUID]*entity.Dispute)
	t.events = nil
	t.ratings = nil
}

func (t *tx) Jobs() repository.JobRepository                 { return jobRepo{t} }
func (t *tx) Applications() repository.ApplicationRepository { return applicationRepo{t} }
func (t *tx) Payments() repository.PaymentRepository         { return paymentRepo{t} }
func (t *tx) Disputes() repository.DisputeRepository         { return disputeRepo{t} }
func (t *tx) Events() repository.JobEventRepository          { return eventRepo{t} }
func (t *tx) Ratings() repository.RatingRepository           { return ratingRepo{t} }

// flush фиксирует изменение сразу, если репозиторий получен вне транзакции.
func (t *tx) flush() error {
	if !t.autocommit {
		return nil
	}
	err := t.commit()
	t.reset()
	return err
}

func (t *tx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, expected := range t.jobBase {
		current, ok := s.jobs[id]
		if expected == 0 {
			if ok {
				return apperror.New(apperror.ErrCodeConflict, "заказ уже существует")
			}
			continue
		}
		if !ok || current.Version != expected {
			return apperror.ErrVersionConflict
		}
	}
	if err := t.checkUniqueLocked(); err != nil {
		return err
	}

	for id, v := range t.jobs {
		s.jobs[id] = v
	}
	for id, v := range t.applications {
		s.applications[id] = v
	}
	for id, v := range t.payments {
		s.payments[id] = v
	}
	for id, v := range t.disputes {
		s.disputes[id] = v
	}
	for _, e := range t.events {
		s.events[e.JobID] = append(s.events[e.JobID], e)
	}
	for _, r := range t.ratings {
		s.ratings[r.JobID] = append(s.ratings[r.JobID], r)
	}
	return nil
}

// checkUniqueLocked повторяет частичные уникальные индексы PostgreSQL.
func (t *tx) checkUniqueLocked() error {
	s := t.s
	for _, staged := range t.applications {
		for _, other := range merged(s.applications, t.applications, func(a *entity.Application) bool {
			return a.JobID == staged.JobID && a.ID != staged.ID
		}) {
			if staged.IsAccepted() && other.IsAccepted() {
				return apperror.New(apperror.ErrCodeAlreadyAssigned, "по заказу уже принят другой отклик")
			}
			if staged.Status != valueobject.ApplicationStatusRejected &&
				other.Status != valueobject.ApplicationStatusRejected &&
				other.WorkerID == staged.WorkerID {
				return apperror.New(apperror.ErrCodeDuplicateApplication, "исполнитель уже откликнулся на заказ")
			}
		}
	}
	for _, staged := range t.payments {
		if staged.Status.IsTerminal() {
			continue
		}
		active := merged(s.payments, t.payments, func(p *entity.Payment) bool {
			return p.JobID == staged.JobID && p.ID != staged.ID && !p.Status.IsTerminal()
		})
		if len(active) > 0 {
			return apperror.New(apperror.ErrCodeDuplicatePayment, "по заказу уже есть незавершённый платёж")
		}
	}
	for _, staged := range t.disputes {
		if !staged.IsActive() {
			continue
		}
		active := merged(s.disputes, t.disputes, func(d *entity.Dispute) bool {
			return d.JobID == staged.JobID && d.ID != staged.ID && d.IsActive()
		})
		if len(active) > 0 {
			return apperror.New(apperror.ErrCodeConflict, "по заказу уже открыт спор")
		}
	}
	return nil
}

func (t *tx) job(id uuid.UUID) (*entity.Job, bool) {
	if v, ok := t.jobs[id]; ok {
		return v.Clone(), true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	v, ok := t.s.jobs[id]
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}

func (t *tx) application(id uuid.UUID) (*entity.Application, bool) {
	if v, ok := t.applications[id]; ok {
		return v.Clone(), true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	v, ok := t.s.applications[id]
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}

func (t *tx) payment(id uuid.UUID) (*entity.Payment, bool) {
	if v, ok := t.payments[id]; ok {
		return v.Clone(), true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	v, ok := t.s.payments[id]
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}

func (t *tx) dispute(id uuid.UUID) (*entity.Dispute, bool) {
	if v, ok := t.disputes[id]; ok {
		return v.Clone(), true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	v, ok := t.s.disputes[id]
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}

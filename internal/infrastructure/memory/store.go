// Package memory реализует хранилище в памяти процесса.
// Используется в тестах и при STORAGE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

type Store struct {
	mu            sync.RWMutex
	jobs          map[uuid.UUID]*entity.Job
	applications  map[uuid.UUID]*entity.Application
	payments      map[uuid.UUID]*entity.Payment
	disputes      map[uuid.UUID]*entity.Dispute
	events        map[uuid.UUID][]*entity.JobEvent
	ratings       map[uuid.UUID][]*entity.Rating
	notifications map[uuid.UUID]*entity.Notification

	lockMu   sync.Mutex
	jobLocks map[uuid.UUID]*sync.Mutex
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		jobs:          make(map[uuid.UUID]*entity.Job),
		applications:  make(map[uuid.UUID]*entity.Application),
		payments:      make(map[uuid.UUID]*entity.Payment),
		disputes:      make(map[uuid.UUID]*entity.Dispute),
		events:        make(map[uuid.UUID][]*entity.JobEvent),
		ratings:       make(map[uuid.UUID][]*entity.Rating),
		notifications: make(map[uuid.UUID]*entity.Notification),
		jobLocks:      make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Store) autocommit() *tx {
	t := newTx(s)
	t.autocommit = true
	return t
}

func (s *Store) Jobs() repository.JobRepository { return jobRepo{s.autocommit()} }
func (s *Store) Applications() repository.ApplicationRepository {
	return applicationRepo{s.autocommit()}
}
func (s *Store) Payments() repository.PaymentRepository { return paymentRepo{s.autocommit()} }
func (s *Store) Disputes() repository.DisputeRepository { return disputeRepo{s.autocommit()} }
func (s *Store) Events() repository.JobEventRepository  { return eventRepo{s.autocommit()} }
func (s *Store) Ratings() repository.RatingRepository   { return ratingRepo{s.autocommit()} }
func (s *Store) Notifications() repository.NotificationRepository {
	return notificationRepo{s}
}

func (s *Store) jobLock(jobID uuid.UUID) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.jobLocks[jobID]
	if !ok {
		l = &sync.Mutex{}
		s.jobLocks[jobID] = l
	}
	return l
}

func (s *Store) WithinJob(ctx context.Context, jobID uuid.UUID, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l := s.jobLock(jobID)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	_, exists := s.jobs[jobID]
	s.mu.RUnlock()
	if !exists {
		return apperror.ErrJobNotFound
	}

	return s.run(ctx, fn)
}

func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.run(ctx, fn)
}

func (s *Store) run(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	t := newTx(s)
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.commit()
}

type cloner[T any] interface {
	Clone() T
}

// merged накладывает незафиксированные изменения транзакции на основные данные.
func merged[T cloner[T]](base, staged map[uuid.UUID]T, keep func(T) bool) []T {
	var out []T
	for id, v := range base {
		if sv, ok := staged[id]; ok {
			v = sv
		}
		if keep(v) {
			out = append(out, v.Clone())
		}
	}
	for id, v := range staged {
		if _, ok := base[id]; ok {
			continue
		}
		if keep(v) {
			out = append(out, v.Clone())
		}
	}
	return out
}

func sortByCreated[T any](items []T, createdAt func(T) int64, desc bool) {
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return createdAt(items[i]) > createdAt(items[j])
		}
		return createdAt(items[i]) < createdAt(items[j])
	})
}

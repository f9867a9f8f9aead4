// Package persistence реализует хранилище на PostgreSQL.
// Блокировка заказа - SELECT ... FOR UPDATE в транзакции, целостность
// дополнительно защищена частичными уникальными индексами.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

type Store struct {
	db *sqlx.DB
}

var _ repository.Store = (*Store)(nil)

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// repos привязывает репозитории к соединению или транзакции.
type repos struct {
	q sqlx.ExtContext
}

func (r repos) Jobs() repository.JobRepository                 { return jobRepo{r.q} }
func (r repos) Applications() repository.ApplicationRepository { return applicationRepo{r.q} }
func (r repos) Payments() repository.PaymentRepository         { return paymentRepo{r.q} }
func (r repos) Disputes() repository.DisputeRepository         { return disputeRepo{r.q} }
func (r repos) Events() repository.JobEventRepository          { return eventRepo{r.q} }
func (r repos) Ratings() repository.RatingRepository           { return ratingRepo{r.q} }

func (s *Store) Jobs() repository.JobRepository                 { return jobRepo{s.db} }
func (s *Store) Applications() repository.ApplicationRepository { return applicationRepo{s.db} }
func (s *Store) Payments() repository.PaymentRepository         { return paymentRepo{s.db} }
func (s *Store) Disputes() repository.DisputeRepository         { return disputeRepo{s.db} }
func (s *Store) Events() repository.JobEventRepository          { return eventRepo{s.db} }
func (s *Store) Ratings() repository.RatingRepository           { return ratingRepo{s.db} }
func (s *Store) Notifications() repository.NotificationRepository {
	return notificationRepo{s.db}
}

func (s *Store) WithinJob(ctx context.Context, jobID uuid.UUID, fn func(ctx context.Context, tx repository.Tx) error) error {
	return s.withTransaction(ctx, func(tx *sqlx.Tx) error {
		var locked uuid.UUID
		err := tx.GetContext(ctx, &locked, `SELECT id FROM jobs WHERE id = $1 FOR UPDATE`, jobID)
		if err != nil {
			return notFound(err, apperror.ErrJobNotFound, "блокировка заказа")
		}
		return fn(ctx, repos{tx})
	})
}

func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return s.withTransaction(ctx, func(tx *sqlx.Tx) error {
		return fn(ctx, repos{tx})
	})
}

// withTransaction откатывает транзакцию при ошибке и при панике.
func (s *Store) withTransaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return translate(err, "начало транзакции")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (откат: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return translate(err, "фиксация транзакции")
	}
	return nil
}

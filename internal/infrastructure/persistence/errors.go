package persistence

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

const uniqueViolation = "23505"

// Частичные уникальные индексы из migrations/001_init.sql.
var constraintErrors = map[string]*apperror.AppError{
	"uq_applications_accepted":      apperror.New(apperror.ErrCodeAlreadyAssigned, "по заказу уже принят другой отклик"),
	"uq_applications_active_worker": apperror.New(apperror.ErrCodeDuplicateApplication, "исполнитель уже откликнулся на заказ"),
	"uq_payments_active":            apperror.New(apperror.ErrCodeDuplicatePayment, "по заказу уже есть незавершённый платёж"),
	"uq_disputes_active":            apperror.New(apperror.ErrCodeConflict, "по заказу уже открыт спор"),
	"uq_ratings_rater":              apperror.New(apperror.ErrCodeConflict, "вы уже оценили участника заказа"),
}

// violatedConstraint понимает ошибки обоих драйверов: lib/pq и pgx stdlib.
func violatedConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return pqErr.Constraint, true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// translate переводит ошибку драйвера в доменную.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if constraint, ok := violatedConstraint(err); ok {
		if domainErr, known := constraintErrors[constraint]; known {
			return apperror.Wrap(err, domainErr.Code, domainErr.Message)
		}
		return apperror.Wrap(err, apperror.ErrCodeConflict, op+": запись уже существует")
	}
	return apperror.Wrap(err, apperror.ErrCodeDatabaseError, op)
}

// notFound возвращает доменную ошибку для sql.ErrNoRows.
func notFound(err error, domainErr error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domainErr
	}
	return translate(err, op)
}

package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

type applicationRepo struct {
	q sqlx.ExtContext
}

func (r applicationRepo) Create(ctx context.Context, app *entity.Application) error {
	query := `
		INSERT INTO applications (` + applicationColumns + `)
		VALUES (:id, :job_id, :worker_id, :proposed_amount, :currency, :cover_letter, :status, :created_at, :updated_at, :decided_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, newApplicationRow(app)); err != nil {
		return translate(err, "создание отклика")
	}
	return nil
}

func (r applicationRepo) Update(ctx context.Context, app *entity.Application) error {
	query := `
		UPDATE applications
		SET status = :status, updated_at = :updated_at, decided_at = :decided_at
		WHERE id = :id
	`
	res, err := sqlx.NamedExecContext(ctx, r.q, query, newApplicationRow(app))
	if err != nil {
		return translate(err, "обновление отклика")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.ErrApplicationNotFound
	}
	return nil
}

func (r applicationRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Application, error) {
	var row applicationRow
	if err := sqlx.GetContext(ctx, r.q, &row, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id); err != nil {
		return nil, notFound(err, apperror.ErrApplicationNotFound, "получение отклика")
	}
	return row.entity(), nil
}

func (r applicationRepo) FindByJobID(ctx context.Context, jobID uuid.UUID) ([]*entity.Application, error) {
	return r.selectMany(ctx, `SELECT `+applicationColumns+` FROM applications WHERE job_id = $1 ORDER BY created_at`, jobID)
}

func (r applicationRepo) FindActiveByJobAndWorker(ctx context.Context, jobID, workerID uuid.UUID) (*entity.Application, error) {
	apps, err := r.selectMany(ctx, `
		SELECT `+applicationColumns+` FROM applications
		WHERE job_id = $1 AND worker_id = $2 AND status <> 'rejected'
		LIMIT 1
	`, jobID, workerID)
	if err != nil || len(apps) == 0 {
		return nil, err
	}
	return apps[0], nil
}

func (r applicationRepo) selectMany(ctx context.Context, query string, args ...any) ([]*entity.Application, error) {
	var rows []applicationRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, args...); err != nil {
		return nil, translate(err, "список откликов")
	}
	apps := make([]*entity.Application, 0, len(rows))
	for _, row := range rows {
		apps = append(apps, row.entity())
	}
	return apps, nil
}

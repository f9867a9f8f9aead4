package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

type jobRepo struct {
	q sqlx.ExtContext
}

func (r jobRepo) Create(ctx context.Context, job *entity.Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (:id, :client_id, :title, :description, :budget_amount, :currency, :deadline, :status,
			:status_before_dispute, :assigned_worker_id, :accepted_application_id, :agreed_amount, :revision_count,
			:last_revision_reason, :cancel_reason, :version, :created_at, :updated_at, :completed_at, :cancelled_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, newJobRow(job)); err != nil {
		return translate(err, "создание заказа")
	}
	return nil
}

// Update - оптимистичная запись: строка меняется, только если версия не сдвинулась.
func (r jobRepo) Update(ctx context.Context, job *entity.Job) error {
	query := `
		UPDATE jobs SET
			status = :status,
			status_before_dispute = :status_before_dispute,
			assigned_worker_id = :assigned_worker_id,
			accepted_application_id = :accepted_application_id,
			agreed_amount = :agreed_amount,
			revision_count = :revision_count,
			last_revision_reason = :last_revision_reason,
			cancel_reason = :cancel_reason,
			updated_at = :updated_at,
			completed_at = :completed_at,
			cancelled_at = :cancelled_at,
			version = version + 1
		WHERE id = :id AND version = :version
	`
	res, err := sqlx.NamedExecContext(ctx, r.q, query, newJobRow(job))
	if err != nil {
		return translate(err, "обновление заказа")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return translate(err, "обновление заказа")
	}
	if affected == 0 {
		if _, err := r.FindByID(ctx, job.ID); err != nil {
			return err
		}
		return apperror.ErrVersionConflict
	}
	job.Version++
	return nil
}

func (r jobRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	var row jobRow
	if err := sqlx.GetContext(ctx, r.q, &row, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id); err != nil {
		return nil, notFound(err, apperror.ErrJobNotFound, "получение заказа")
	}
	return row.entity(), nil
}

func (r jobRepo) List(ctx context.Context, filter repository.JobFilter) ([]*entity.Job, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if filter.WorkerID != nil {
		args = append(args, *filter.WorkerID)
		conditions = append(conditions, fmt.Sprintf("assigned_worker_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	query, args = withPage(query, args, filter.Limit, filter.Offset)

	var rows []jobRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, args...); err != nil {
		return nil, translate(err, "список заказов")
	}
	jobs := make([]*entity.Job, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, row.entity())
	}
	return jobs, nil
}

func withPage(query string, args []any, limit, offset int) (string, []any) {
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

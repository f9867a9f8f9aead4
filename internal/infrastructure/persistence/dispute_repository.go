package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

type disputeRepo struct {
	q sqlx.ExtContext
}

func (r disputeRepo) Create(ctx context.Context, dispute *entity.Dispute) error {
	query := `
		INSERT INTO disputes (` + disputeColumns + `)
		VALUES (:id, :job_id, :initiator_id, :initiator_role, :description, :status, :outcome,
			:resolution_note, :partial_amount, :resolver_id, :created_at, :updated_at, :resolved_at, :closed_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, newDisputeRow(dispute)); err != nil {
		return translate(err, "создание спора")
	}
	return nil
}

func (r disputeRepo) Update(ctx context.Context, dispute *entity.Dispute) error {
	query := `
		UPDATE disputes SET
			status = :status,
			outcome = :outcome,
			resolution_note = :resolution_note,
			partial_amount = :partial_amount,
			resolver_id = :resolver_id,
			updated_at = :updated_at,
			resolved_at = :resolved_at,
			closed_at = :closed_at
		WHERE id = :id
	`
	res, err := sqlx.NamedExecContext(ctx, r.q, query, newDisputeRow(dispute))
	if err != nil {
		return translate(err, "обновление спора")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.ErrDisputeNotFound
	}
	return nil
}

func (r disputeRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	var row disputeRow
	if err := sqlx.GetContext(ctx, r.q, &row, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id); err != nil {
		return nil, notFound(err, apperror.ErrDisputeNotFound, "получение спора")
	}
	return row.entity(), nil
}

func (r disputeRepo) FindByJobID(ctx context.Context, jobID uuid.UUID) ([]*entity.Dispute, error) {
	return r.selectMany(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE job_id = $1 ORDER BY created_at`, jobID)
}

func (r disputeRepo) FindActiveByJobID(ctx context.Context, jobID uuid.UUID) (*entity.Dispute, error) {
	disputes, err := r.selectMany(ctx, `
		SELECT `+disputeColumns+` FROM disputes
		WHERE job_id = $1 AND status IN ('open', 'investigating')
		LIMIT 1
	`, jobID)
	if err != nil || len(disputes) == 0 {
		return nil, err
	}
	return disputes[0], nil
}

func (r disputeRepo) List(ctx context.Context, filter repository.DisputeFilter) ([]*entity.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes`
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += " WHERE status = $1"
	}
	query += " ORDER BY created_at"
	query, args = withPage(query, args, filter.Limit, filter.Offset)
	return r.selectMany(ctx, query, args...)
}

func (r disputeRepo) selectMany(ctx context.Context, query string, args ...any) ([]*entity.Dispute, error) {
	var rows []disputeRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, args...); err != nil {
		return nil, translate(err, "список споров")
	}
	disputes := make([]*entity.Dispute, 0, len(rows))
	for _, row := range rows {
		disputes = append(disputes, row.entity())
	}
	return disputes, nil
}

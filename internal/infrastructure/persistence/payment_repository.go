package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

type paymentRepo struct {
	q sqlx.ExtContext
}

func (r paymentRepo) Create(ctx context.Context, payment *entity.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (:id, :job_id, :payer_id, :payee_id, :amount, :original_amount, :currency, :status, :method,
			:proof_ref, :proof_attempts, :proof_rejections, :review_note, :gateway_reference, :failure_reason,
			:held, :held_by_dispute_id, :created_at, :updated_at, :settled_at, :refunded_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, newPaymentRow(payment)); err != nil {
		return translate(err, "создание платежа")
	}
	return nil
}

func (r paymentRepo) Update(ctx context.Context, payment *entity.Payment) error {
	query := `
		UPDATE payments SET
			amount = :amount,
			original_amount = :original_amount,
			status = :status,
			method = :method,
			proof_ref = :proof_ref,
			proof_attempts = :proof_attempts,
			proof_rejections = :proof_rejections,
			review_note = :review_note,
			gateway_reference = :gateway_reference,
			failure_reason = :failure_reason,
			held = :held,
			held_by_dispute_id = :held_by_dispute_id,
			updated_at = :updated_at,
			settled_at = :settled_at,
			refunded_at = :refunded_at
		WHERE id = :id
	`
	res, err := sqlx.NamedExecContext(ctx, r.q, query, newPaymentRow(payment))
	if err != nil {
		return translate(err, "обновление платежа")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.ErrPaymentNotFound
	}
	return nil
}

func (r paymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	var row paymentRow
	if err := sqlx.GetContext(ctx, r.q, &row, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id); err != nil {
		return nil, notFound(err, apperror.ErrPaymentNotFound, "получение платежа")
	}
	return row.entity(), nil
}

func (r paymentRepo) FindByJobID(ctx context.Context, jobID uuid.UUID) ([]*entity.Payment, error) {
	return r.selectMany(ctx, `SELECT `+paymentColumns+` FROM payments WHERE job_id = $1 ORDER BY created_at`, jobID)
}

func (r paymentRepo) FindActiveByJobID(ctx context.Context, jobID uuid.UUID) (*entity.Payment, error) {
	return r.first(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE job_id = $1 AND status IN ('pending', 'manual_review')
		LIMIT 1
	`, jobID)
}

func (r paymentRepo) FindLatestByJobID(ctx context.Context, jobID uuid.UUID) (*entity.Payment, error) {
	return r.first(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE job_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, jobID)
}

func (r paymentRepo) first(ctx context.Context, query string, args ...any) (*entity.Payment, error) {
	payments, err := r.selectMany(ctx, query, args...)
	if err != nil || len(payments) == 0 {
		return nil, err
	}
	return payments[0], nil
}

func (r paymentRepo) selectMany(ctx context.Context, query string, args ...any) ([]*entity.Payment, error) {
	var rows []paymentRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, args...); err != nil {
		return nil, translate(err, "список платежей")
	}
	payments := make([]*entity.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, row.entity())
	}
	return payments, nil
}

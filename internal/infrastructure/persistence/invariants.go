package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/job-settlement/internal/domain/repository"
)

// Каждый запрос возвращает строки-нарушения: job_id и текстовое описание.
var invariantQueries = []struct {
	invariant string
	query     string
}{
	{repository.InvariantSingleAccepted, `
		SELECT job_id, format('принято откликов: %s', COUNT(*)) AS detail
		FROM applications WHERE status = 'accepted'
		GROUP BY job_id HAVING COUNT(*) > 1`},
	{repository.InvariantSingleActivePay, `
		SELECT job_id, format('незавершённых платежей: %s', COUNT(*)) AS detail
		FROM payments WHERE status IN ('pending', 'manual_review')
		GROUP BY job_id HAVING COUNT(*) > 1`},
	{repository.InvariantCompletedSettled, `
		SELECT j.id AS job_id, 'заказ завершён без проведённого платежа' AS detail
		FROM jobs j
		WHERE j.status = 'completed'
		  AND NOT EXISTS (SELECT 1 FROM payments p WHERE p.job_id = j.id AND p.settled_at IS NOT NULL)`},
	{repository.InvariantAssignment, `
		SELECT id AS job_id,
			CASE WHEN status = 'posted' THEN 'у опубликованного заказа есть исполнитель'
			     ELSE format('заказ в статусе %s без исполнителя', status) END AS detail
		FROM jobs
		WHERE (status = 'posted' AND assigned_worker_id IS NOT NULL)
		   OR (status NOT IN ('posted', 'cancelled') AND assigned_worker_id IS NULL)`},
	{repository.InvariantHeldHasDispute, `
		SELECT p.job_id, format('платёж %s заморожен без активного спора', p.id) AS detail
		FROM payments p
		LEFT JOIN disputes d ON d.id = p.held_by_dispute_id
		WHERE p.held AND (d.id IS NULL OR d.status NOT IN ('open', 'investigating'))`},
}

func (s *Store) CheckInvariants(ctx context.Context) ([]repository.InvariantViolation, error) {
	var out []repository.InvariantViolation
	for _, check := range invariantQueries {
		var rows []struct {
			JobID  uuid.UUID `db:"job_id"`
			Detail string    `db:"detail"`
		}
		if err := sqlx.SelectContext(ctx, s.db, &rows, check.query); err != nil {
			return nil, translate(err, "проверка инвариантов")
		}
		for _, row := range rows {
			out = append(out, repository.InvariantViolation{
				Invariant: check.invariant,
				JobID:     row.JobID,
				Detail:    row.Detail,
			})
		}
	}
	return out, nil
}

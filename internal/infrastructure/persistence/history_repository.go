package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
)

type eventRepo struct {
	q sqlx.ExtContext
}

func (r eventRepo) Append(ctx context.Context, event *entity.JobEvent) error {
	payload, err := encodeMap(event.Payload)
	if err != nil {
		return translate(err, "сериализация события")
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO job_events (id, job_id, actor_id, action, from_status, to_status, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
	`, event.ID, event.JobID, event.ActorID, event.Action, string(event.FromStatus), string(event.ToStatus), payload, event.CreatedAt)
	return translate(err, "запись истории заказа")
}

func (r eventRepo) ListByJobID(ctx context.Context, jobID uuid.UUID) ([]*entity.JobEvent, error) {
	var rows []eventRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, `
		SELECT `+eventColumns+` FROM job_events WHERE job_id = $1 ORDER BY seq
	`, jobID); err != nil {
		return nil, translate(err, "история заказа")
	}
	events := make([]*entity.JobEvent, 0, len(rows))
	for _, row := range rows {
		e, err := row.entity()
		if err != nil {
			return nil, translate(err, "история заказа")
		}
		events = append(events, e)
	}
	return events, nil
}

type ratingRepo struct {
	q sqlx.ExtContext
}

func (r ratingRepo) Create(ctx context.Context, rating *entity.Rating) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO ratings (id, job_id, rater_id, ratee_id, score, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rating.ID, rating.JobID, rating.RaterID, rating.RateeID, rating.Score, rating.Comment, rating.CreatedAt)
	return translate(err, "создание оценки")
}

func (r ratingRepo) ListByJobID(ctx context.Context, jobID uuid.UUID) ([]*entity.Rating, error) {
	var rows []ratingRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, `
		SELECT id, job_id, rater_id, ratee_id, score, comment, created_at
		FROM ratings WHERE job_id = $1 ORDER BY created_at
	`, jobID); err != nil {
		return nil, translate(err, "список оценок")
	}
	ratings := make([]*entity.Rating, 0, len(rows))
	for _, row := range rows {
		ratings = append(ratings, &entity.Rating{
			ID:        row.ID,
			JobID:     row.JobID,
			RaterID:   row.RaterID,
			RateeID:   row.RateeID,
			Score:     row.Score,
			Comment:   row.Comment,
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return ratings, nil
}

func (r ratingRepo) Exists(ctx context.Context, jobID, raterID uuid.UUID) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.q, &exists, `
		SELECT EXISTS (SELECT 1 FROM ratings WHERE job_id = $1 AND rater_id = $2)
	`, jobID, raterID)
	if err != nil {
		return false, translate(err, "проверка оценки")
	}
	return exists, nil
}

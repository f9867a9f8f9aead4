package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

type notificationRepo struct {
	q sqlx.ExtContext
}

func (r notificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	metadata, err := encodeMap(n.Metadata)
	if err != nil {
		return translate(err, "сериализация уведомления")
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_id, event, title, message, priority, metadata, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)
	`, n.ID, n.RecipientID, n.Event, n.Title, n.Message, string(n.Priority), metadata, n.IsRead, n.CreatedAt)
	return translate(err, "создание уведомления")
}

func (r notificationRepo) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]*entity.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id = $1`
	args := []any{userID}
	if unreadOnly {
		query += " AND is_read = FALSE"
	}
	query += " ORDER BY created_at DESC"
	query, args = withPage(query, args, limit, offset)

	var rows []notificationRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, args...); err != nil {
		return nil, translate(err, "список уведомлений")
	}
	out := make([]*entity.Notification, 0, len(rows))
	for _, row := range rows {
		n, err := row.entity()
		if err != nil {
			return nil, translate(err, "список уведомлений")
		}
		out = append(out, n)
	}
	return out, nil
}

// MarkAsRead не раскрывает чужие уведомления: для них возвращается NOT_FOUND.
func (r notificationRepo) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2
	`, id, userID)
	if err != nil {
		return translate(err, "отметка уведомления")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err, "отметка уведомления")
	}
	if n == 0 {
		return apperror.ErrNotificationNotFound
	}
	return nil
}

func (r notificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, r.q, &count, `
		SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = FALSE
	`, userID)
	if err != nil {
		return 0, translate(err, "подсчёт уведомлений")
	}
	return count, nil
}

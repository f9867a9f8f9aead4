package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
)

// NotificationService отдаёт получателю его уведомления. Запись выполняет notify.StoreSink.
type NotificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

func (s *NotificationService) List(ctx context.Context, actor valueobject.Actor, limit, offset int, unreadOnly bool) ([]*entity.Notification, error) {
	limit, offset = normalizePage(limit, offset)
	return s.repo.List(ctx, actor.ID, limit, offset, unreadOnly)
}

// MarkAsRead отмечает уведомление прочитанным. Чужое уведомление считается ненайденным.
func (s *NotificationService) MarkAsRead(ctx context.Context, actor valueobject.Actor, id uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, id, actor.ID)
}

func (s *NotificationService) CountUnread(ctx context.Context, actor valueobject.Actor) (int, error) {
	return s.repo.CountUnread(ctx, actor.ID)
}

package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
)

type NotificationResponse struct {
	ID        uuid.UUID         `json:"id"`
	Event     string            `json:"event"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Priority  string            `json:"priority"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	IsRead    bool              `json:"is_read"`
	CreatedAt time.Time         `json:"created_at"`
}

func ToNotificationResponses(items []*entity.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, NotificationResponse{
			ID:        n.ID,
			Event:     n.Event,
			Title:     n.Title,
			Message:   n.Message,
			Priority:  string(n.Priority),
			Metadata:  n.Metadata,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}

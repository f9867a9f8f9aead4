package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

// JobEvent - запись в истории заказа.
type JobEvent struct {
	ID         uuid.UUID
	JobID      uuid.UUID
	ActorID    uuid.UUID
	Action     string
	FromStatus valueobject.JobStatus
	ToStatus   valueobject.JobStatus
	Payload    map[string]string
	CreatedAt  time.Time
}

func NewJobEvent(job *Job, actorID uuid.UUID, action string, from valueobject.JobStatus, payload map[string]string) *JobEvent {
	return &JobEvent{
		ID:         uuid.New(),
		JobID:      job.ID,
		ActorID:    actorID,
		Action:     action,
		FromStatus: from,
		ToStatus:   job.Status,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}
}

type Rating struct {
	ID        uuid.UUID
	JobID     uuid.UUID
	RaterID   uuid.UUID
	RateeID   uuid.UUID
	Score     int
	Comment   string
	CreatedAt time.Time
}

func NewRating(jobID, raterID, rateeID uuid.UUID, score int, comment string) (*Rating, error) {
	if score < 1 || score > 5 {
		return nil, apperror.New(apperror.ErrCodeValidation, "оценка должна быть от 1 до 5")
	}
	return &Rating{
		ID:        uuid.New(),
		JobID:     jobID,
		RaterID:   raterID,
		RateeID:   rateeID,
		Score:     score,
		Comment:   strings.TrimSpace(comment),
		CreatedAt: time.Now().UTC(),
	}, nil
}

type Notification struct {
	ID          uuid.UUID
	RecipientID uuid.UUID
	Event       string
	Title       string
	Message     string
	Priority    valueobject.Priority
	Metadata    map[string]string
	IsRead      bool
	CreatedAt   time.Time
}

// Message - уведомление для одного или нескольких получателей.
type Message struct {
	Recipients []uuid.UUID
	Event      string
	Title      string
	Body       string
	Priority   valueobject.Priority
	Metadata   map[string]string
}

// ForRecipient разворачивает сообщение в запись уведомления конкретного пользователя.
func (m Message) ForRecipient(recipientID uuid.UUID) *Notification {
	priority := m.Priority
	if priority == "" {
		priority = valueobject.PriorityNormal
	}
	return &Notification{
		ID:          uuid.New(),
		RecipientID: recipientID,
		Event:       m.Event,
		Title:       m.Title,
		Message:     m.Body,
		Priority:    priority,
		Metadata:    m.Metadata,
		CreatedAt:   time.Now().UTC(),
	}
}

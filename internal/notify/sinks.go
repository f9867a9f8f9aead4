package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/repository"
)

// StoreSink сохраняет уведомление для каждого получателя.
type StoreSink struct {
	repo repository.NotificationRepository
}

func NewStoreSink(repo repository.NotificationRepository) *StoreSink {
	return &StoreSink{repo: repo}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Deliver(ctx context.Context, msg entity.Message) error {
	var errs []error
	for _, recipient := range msg.Recipients {
		if err := s.repo.Create(ctx, msg.ForRecipient(recipient)); err != nil {
			errs = append(errs, fmt.Errorf("получатель %s: %w", recipient, err))
		}
	}
	return errors.Join(errs...)
}

// UserBroadcaster - WebSocket хаб.
type UserBroadcaster interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

type HubSink struct {
	hub UserBroadcaster
}

func NewHubSink(hub UserBroadcaster) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) Name() string { return "websocket" }

func (s *HubSink) Deliver(ctx context.Context, msg entity.Message) error {
	payload := map[string]any{
		"title":    msg.Title,
		"message":  msg.Body,
		"priority": msg.Priority,
		"metadata": msg.Metadata,
	}
	var errs []error
	for _, recipient := range msg.Recipients {
		if err := s.hub.BroadcastToUser(recipient, msg.Event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Publisher публикует сообщение во внешний брокер.
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

type BrokerSink struct {
	publisher Publisher
}

func NewBrokerSink(p Publisher) *BrokerSink {
	return &BrokerSink{publisher: p}
}

func (s *BrokerSink) Name() string { return "broker" }

type brokerEnvelope struct {
	Event      string            `json:"event"`
	Recipients []uuid.UUID       `json:"recipients"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Priority   string            `json:"priority"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	SentAt     time.Time         `json:"sent_at"`
}

func (s *BrokerSink) Deliver(ctx context.Context, msg entity.Message) error {
	body, err := json.Marshal(brokerEnvelope{
		Event:      msg.Event,
		Recipients: msg.Recipients,
		Title:      msg.Title,
		Message:    msg.Body,
		Priority:   string(msg.Priority),
		Metadata:   msg.Metadata,
		SentAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("notify: не удалось сериализовать сообщение: %w", err)
	}
	return s.publisher.PublishWithRetry(ctx, body, "application/json")
}

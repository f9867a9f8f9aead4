package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
)

// Batch копит уведомления внутри транзакции. Отправлять их нужно только после фиксации.
type Batch struct {
	messages []entity.Message
}

func (b *Batch) Add(event, title, body string, priority valueobject.Priority, metadata map[string]string, recipients ...uuid.UUID) {
	if len(recipients) == 0 {
		return
	}
	b.messages = append(b.messages, entity.Message{
		Recipients: recipients,
		Event:      event,
		Title:      title,
		Body:       body,
		Priority:   priority,
		Metadata:   metadata,
	})
}

func (b *Batch) Messages() []entity.Message {
	return b.messages
}

// Reset очищает батч перед повторной попыткой транзакции.
func (b *Batch) Reset() {
	b.messages = nil
}

func (b *Batch) Flush(ctx context.Context, n repository.Notifier) {
	if n == nil {
		return
	}
	for _, msg := range b.messages {
		n.Send(ctx, msg)
	}
	b.messages = nil
}

// Nop отбрасывает все уведомления.
type Nop struct{}

func (Nop) Send(context.Context, entity.Message) {}

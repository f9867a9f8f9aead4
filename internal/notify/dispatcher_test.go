package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/infrastructure/memory"
	"github.com/ignatzorin/job-settlement/internal/logger"
	"github.com/ignatzorin/job-settlement/internal/notify"
)

type recordingSink struct {
	mu       sync.Mutex
	received []entity.Message
	block    chan struct{}
	err      error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Deliver(ctx context.Context, msg entity.Message) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, msg)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

type panickingSink struct{}

func (panickingSink) Name() string { return "panic" }

func (panickingSink) Deliver(context.Context, entity.Message) error {
	panic("сломанный канал")
}

func message(recipients ...uuid.UUID) entity.Message {
	return entity.Message{
		Recipients: recipients,
		Event:      "job.completed",
		Title:      "Заказ завершён",
		Body:       "Клиент принял работу",
		Priority:   valueobject.PriorityNormal,
	}
}

func TestDispatcher_DeliversToAllSinks(t *testing.T) {
	logger.Discard()

	first := &recordingSink{}
	second := &recordingSink{err: errors.New("недоступен")}
	d := notify.NewDispatcher(notify.Config{QueueSize: 8, Workers: 2}, first, panickingSink{}, second)
	d.Start()

	for i := 0; i < 5; i++ {
		d.Send(context.Background(), message(uuid.New()))
	}
	d.Stop()

	assert.Equal(t, 5, first.count())
	assert.Equal(t, 5, second.count())
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	logger.Discard()

	sink := &recordingSink{block: make(chan struct{})}
	d := notify.NewDispatcher(notify.Config{QueueSize: 1, Workers: 1}, sink)
	d.Start()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			d.Send(context.Background(), message(uuid.New()))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send заблокировал вызывающего")
	}

	close(sink.block)
	d.Stop()

	assert.Less(t, sink.count(), 20)
	assert.GreaterOrEqual(t, sink.count(), 1)
}

func TestDispatcher_SendAfterStopIsIgnored(t *testing.T) {
	logger.Discard()

	sink := &recordingSink{}
	d := notify.NewDispatcher(notify.Config{}, sink)
	d.Start()
	d.Stop()

	assert.NotPanics(t, func() {
		d.Send(context.Background(), message(uuid.New()))
	})
	assert.Zero(t, sink.count())
}

func TestStoreSink_PersistsPerRecipient(t *testing.T) {
	store := memory.NewStore()
	sink := notify.NewStoreSink(store.Notifications())

	client, worker := uuid.New(), uuid.New()
	require.NoError(t, sink.Deliver(context.Background(), message(client, worker)))

	for _, id := range []uuid.UUID{client, worker} {
		items, err := store.Notifications().List(context.Background(), id, 10, 0, false)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "job.completed", items[0].Event)
		assert.False(t, items[0].IsRead)
	}
}

func TestBatch_FlushSendsAndClears(t *testing.T) {
	logger.Discard()

	sink := &recordingSink{}
	d := notify.NewDispatcher(notify.Config{}, sink)
	d.Start()

	var b notify.Batch
	b.Add("payment.settled", "Оплата", "Оплата проведена", valueobject.PriorityHigh, nil, uuid.New())
	b.Add("ignored", "нет получателей", "", valueobject.PriorityLow, nil)
	require.Len(t, b.Messages(), 1)

	b.Flush(context.Background(), d)
	assert.Empty(t, b.Messages())

	d.Stop()
	assert.Equal(t, 1, sink.count())
}

type fakePublisher struct {
	body        []byte
	contentType string
}

func (p *fakePublisher) PublishWithRetry(ctx context.Context, body []byte, contentType string) error {
	p.body = body
	p.contentType = contentType
	return nil
}

func TestBrokerSink_PublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	sink := notify.NewBrokerSink(pub)

	require.NoError(t, sink.Deliver(context.Background(), message(uuid.New())))
	assert.Equal(t, "application/json", pub.contentType)
	assert.Contains(t, string(pub.body), `"event":"job.completed"`)
}

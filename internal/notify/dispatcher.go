// Package notify доставляет уведомления асинхронно и никогда не возвращает ошибки вызывающему.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/goroutine"
	"github.com/ignatzorin/job-settlement/internal/logger"
)

// Sink - один канал доставки (БД, WebSocket, брокер).
type Sink interface {
	Name() string
	Deliver(ctx context.Context, msg entity.Message) error
}

type Config struct {
	QueueSize       int
	Workers         int
	DeliveryTimeout time.Duration
}

// Dispatcher ставит сообщения в ограниченную очередь и раздаёт их всем Sink.
type Dispatcher struct {
	cfg   Config
	sinks []Sink
	queue chan entity.Message

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

var _ repository.Notifier = (*Dispatcher)(nil)

func NewDispatcher(cfg Config, sinks ...Sink) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 5 * time.Second
	}
	return &Dispatcher{
		cfg:   cfg,
		sinks: sinks,
		queue: make(chan entity.Message, cfg.QueueSize),
	}
}

// Start запускает обработчики очереди.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.cfg.Workers; i++ {
		goroutine.SafeGoGroup(&d.wg, fmt.Sprintf("notify-worker-%d", i), d.work)
	}
}

// Send не блокирует вызывающего: при переполненной очереди сообщение отбрасывается.
func (d *Dispatcher) Send(ctx context.Context, msg entity.Message) {
	if len(msg.Recipients) == 0 {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		logger.Get().WithField("event", msg.Event).Warn("notify: диспетчер остановлен, уведомление отброшено")
		return
	}

	select {
	case d.queue <- msg:
	default:
		logger.Get().WithFields(logrus.Fields{
			"event":      msg.Event,
			"recipients": len(msg.Recipients),
		}).Warn("notify: очередь уведомлений переполнена, уведомление отброшено")
	}
}

// Stop закрывает очередь и дожидается доставки уже принятых сообщений.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return
	}
	d.wg.Wait()
}

func (d *Dispatcher) work() {
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg entity.Message) {
	for _, sink := range d.sinks {
		sink := sink
		goroutine.Protect("notify-sink-"+sink.Name(), func() {
			ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DeliveryTimeout)
			defer cancel()

			if err := sink.Deliver(ctx, msg); err != nil {
				logger.Get().WithFields(logrus.Fields{
					"sink":  sink.Name(),
					"event": msg.Event,
					"error": err.Error(),
				}).Warn("notify: не удалось доставить уведомление")
			}
		})
	}
}

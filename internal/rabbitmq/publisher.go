// Package rabbitmq публикует доменные уведомления в обменник RabbitMQ.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/job-settlement/internal/logger"
)

var ErrNotConnected = errors.New("rabbitmq: нет подключения")

type Config struct {
	URL            string
	Exchange       string
	RoutingKey     string
	ConnectRetries int
	RetryInterval  time.Duration
	Heartbeat      time.Duration
	PublishRetries int
	PublishDelay   time.Duration
}

// Publisher держит одно соединение и один канал. Канал amqp не потокобезопасен, поэтому публикация под мьютексом.
type Publisher struct {
	cfg Config
	log *logrus.Entry

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// Dial подключается к брокеру с повторами и объявляет topic-обменник.
func Dial(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.ConnectRetries <= 0 {
		cfg.ConnectRetries = 5
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 2 * time.Second
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 10 * time.Second
	}
	if cfg.RoutingKey == "" {
		cfg.RoutingKey = "notifications"
	}

	p := &Publisher{
		cfg: cfg,
		log: logger.Get().WithField("component", "rabbitmq"),
	}

	var err error
	for attempt := 1; attempt <= cfg.ConnectRetries; attempt++ {
		p.conn, err = amqp.DialConfig(cfg.URL, amqp.Config{Heartbeat: cfg.Heartbeat, Locale: "en_US"})
		if err == nil {
			break
		}
		p.log.WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": cfg.ConnectRetries,
			"error":        err.Error(),
		}).Warn("не удалось подключиться к RabbitMQ")

		if attempt < cfg.ConnectRetries {
			if werr := sleep(ctx, cfg.RetryInterval); werr != nil {
				return nil, werr
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: подключение после %d попыток: %w", cfg.ConnectRetries, err)
	}

	p.channel, err = p.conn.Channel()
	if err != nil {
		_ = p.conn.Close()
		return nil, fmt.Errorf("rabbitmq: открытие канала: %w", err)
	}

	if err := p.channel.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = p.channel.Close()
		_ = p.conn.Close()
		return nil, fmt.Errorf("rabbitmq: объявление обменника %q: %w", cfg.Exchange, err)
	}

	p.log.WithField("exchange", cfg.Exchange).Info("RabbitMQ подключён")
	return p, nil
}

func (p *Publisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil && !p.conn.IsClosed()
}

// PublishWithRetry публикует сообщение с экспоненциальной задержкой между попытками.
func (p *Publisher) PublishWithRetry(ctx context.Context, body []byte, contentType string) error {
	var lastErr error
	for attempt := 0; attempt <= p.cfg.PublishRetries; attempt++ {
		lastErr = p.publish(ctx, body, contentType)
		if lastErr == nil {
			return nil
		}
		if attempt == p.cfg.PublishRetries {
			break
		}

		delay := Backoff(p.cfg.PublishDelay, attempt)
		p.log.WithFields(logrus.Fields{
			"attempt":     attempt + 1,
			"retry_after": delay.String(),
			"error":       lastErr.Error(),
		}).Warn("публикация не удалась, повтор")
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("rabbitmq: публикация после %d попыток: %w", p.cfg.PublishRetries+1, lastErr)
}

func (p *Publisher) publish(ctx context.Context, body []byte, contentType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.conn == nil || p.conn.IsClosed() {
		return ErrNotConnected
	}
	return p.channel.PublishWithContext(ctx, p.cfg.Exchange, p.cfg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  contentType,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
		p.channel = nil
	}
	if p.conn != nil && !p.conn.IsClosed() {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}

// Backoff возвращает задержку перед попыткой attempt+1: base * 2^attempt.
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if attempt > 10 {
		attempt = 10
	}
	return base << uint(attempt)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

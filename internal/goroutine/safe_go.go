package goroutine

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/job-settlement/internal/logger"
)

// Logger интерфейс для логирования паник.
type Logger interface {
	WithFields(fields logrus.Fields) *logrus.Entry
}

// RecoveryHandler обрабатывает panic в горутинах
type RecoveryHandler struct {
	logger Logger
}

func NewRecoveryHandler(l Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: l}
}

func (rh *RecoveryHandler) handlePanic(name string) {
	if r := recover(); r != nil {
		l := rh.logger
		if l == nil {
			l = logger.Get()
		}
		l.WithFields(logrus.Fields{
			"goroutine": name,
			"panic":     r,
			"stack":     string(debug.Stack()),
		}).Error("паника в горутине")
	}
}

// SafeGo запускает горутину с обработкой panic
func (rh *RecoveryHandler) SafeGo(name string, fn func()) {
	go func() {
		defer rh.handlePanic(name)
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, name string, fn func(context.Context)) {
	go func() {
		defer rh.handlePanic(name)
		fn(ctx)
	}()
}

// SafeGoGroup учитывает горутину в wg, чтобы её можно было дождаться при остановке.
func (rh *RecoveryHandler) SafeGoGroup(wg *sync.WaitGroup, name string, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer rh.handlePanic(name)
		fn()
	}()
}

// Protect выполняет fn синхронно и превращает панику в запись лога.
func (rh *RecoveryHandler) Protect(name string, fn func()) {
	defer rh.handlePanic(name)
	fn()
}

var DefaultRecoveryHandler = NewRecoveryHandler(nil)

func SafeGo(name string, fn func()) {
	DefaultRecoveryHandler.SafeGo(name, fn)
}

func SafeGoWithContext(ctx context.Context, name string, fn func(context.Context)) {
	DefaultRecoveryHandler.SafeGoWithContext(ctx, name, fn)
}

func SafeGoGroup(wg *sync.WaitGroup, name string, fn func()) {
	DefaultRecoveryHandler.SafeGoGroup(wg, name, fn)
}

func Protect(name string, fn func()) {
	DefaultRecoveryHandler.Protect(name, fn)
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/job-settlement/internal/config"
	"github.com/ignatzorin/job-settlement/internal/db"
	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	httpHandlers "github.com/ignatzorin/job-settlement/internal/http/handlers"
	httpRouter "github.com/ignatzorin/job-settlement/internal/http/router"
	"github.com/ignatzorin/job-settlement/internal/infrastructure/gateway"
	"github.com/ignatzorin/job-settlement/internal/infrastructure/memory"
	"github.com/ignatzorin/job-settlement/internal/infrastructure/persistence"
	"github.com/ignatzorin/job-settlement/internal/logger"
	"github.com/ignatzorin/job-settlement/internal/notify"
	"github.com/ignatzorin/job-settlement/internal/rabbitmq"
	"github.com/ignatzorin/job-settlement/internal/service"
	"github.com/ignatzorin/job-settlement/internal/storage"
	"github.com/ignatzorin/job-settlement/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().WithError(err).Error("main: сервер завершился с ошибкой")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.Init(cfg.LogLevel)
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}
	log := logger.Get()

	// Хранилище: PostgreSQL с миграциями или память для локального запуска.
	var (
		store  repository.Store
		dbConn *sqlx.DB
	)
	switch cfg.StorageDriver {
	case config.StorageMemory:
		store = memory.NewStore()
		log.Warn("main: используется хранилище в памяти, данные не сохраняются между запусками")
	default:
		dbConn, err = db.NewPostgres(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, db.DefaultPool)
		if err != nil {
			return err
		}
		defer safeClose(dbConn)

		if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
			return err
		}
		store = persistence.NewStore(dbConn)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	proofStorage, err := storage.NewProofStorage(cfg.ProofStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		return err
	}

	var paymentGateway repository.PaymentGateway = gateway.Unavailable{}
	if cfg.GatewayBaseURL != "" {
		paymentGateway = gateway.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.GatewayTimeout)
	} else {
		log.Warn("main: GATEWAY_BASE_URL не задан, все платежи проходят ручную проверку")
	}

	// Вебсокеты.
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := ws.NewHub()
	go hub.Run(hubCtx)

	// Уведомления: хранилище, вебсокеты и, если настроен, брокер.
	sinks := []notify.Sink{notify.NewStoreSink(store.Notifications()), notify.NewHubSink(hub)}
	if cfg.RabbitMQURL != "" {
		publisher, err := rabbitmq.Dial(ctx, rabbitmq.Config{
			URL:        cfg.RabbitMQURL,
			Exchange:   cfg.RabbitMQExchange,
			RoutingKey: cfg.RabbitMQRoutingKey,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				log.WithError(err).Warn("main: ошибка закрытия соединения с RabbitMQ")
			}
		}()
		sinks = append(sinks, notify.NewBrokerSink(publisher))
	}
	dispatcher := notify.NewDispatcher(notify.Config{
		QueueSize: cfg.NotifyQueueSize,
		Workers:   cfg.NotifyWorkers,
	}, sinks...)
	dispatcher.Start()
	defer dispatcher.Stop()

	// Сервисы.
	policy := service.Policy{
		MaxRevisions:       cfg.Policy.MaxRevisions,
		MaxProofRejections: cfg.Policy.MaxProofRejections,
		EscalateOnLimit:    cfg.Policy.EscalateOnLimit,
	}
	jobService := service.NewJobService(store, dispatcher, policy)
	applicationService := service.NewApplicationService(store, dispatcher)
	paymentService := service.NewPaymentService(store, dispatcher, paymentGateway, cfg.GatewayTimeout, policy)
	disputeService := service.NewDisputeService(store, dispatcher)
	notificationService := service.NewNotificationService(store.Notifications())

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Jobs:          httpHandlers.NewJobHandler(jobService, cfg.DefaultCurrency),
		Applications:  httpHandlers.NewApplicationHandler(applicationService, cfg.DefaultCurrency),
		Payments:      httpHandlers.NewPaymentHandler(paymentService, proofStorage, proofStorage.MaxUploadBytes()),
		Disputes:      httpHandlers.NewDisputeHandler(disputeService),
		Notifications: httpHandlers.NewNotificationHandler(notificationService),
		Admin:         httpHandlers.NewAdminHandler(jobService),
		WS:            httpHandlers.NewWSHandler(hub, tokenManager),
		Health:        httpHandlers.NewHealthHandler(dbConn, cfg.StorageDriver),
	}, tokenManager)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(logrus.Fields{
			"port":    cfg.HTTPPort,
			"storage": cfg.StorageDriver,
			"env":     cfg.Env,
		}).Info("main: HTTP сервер запущен")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	// Завершаем сервер при получении сигнала.
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("main: ошибка остановки http сервера")
		}
		return nil
	})

	err = g.Wait()
	log.Info("main: сервер остановлен")
	return err
}

// safeClose закрывает соединение с базой.
func safeClose(conn *sqlx.DB) {
	if err := conn.Close(); err != nil {
		logger.Get().WithError(err).Warn("main: ошибка закрытия базы")
	}
}

package persistence_test

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/job-settlement/internal/db"
	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/infrastructure/persistence"
	"github.com/ignatzorin/job-settlement/internal/logger"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
	"github.com/ignatzorin/job-settlement/internal/service"
)

var (
	testDB    *sqlx.DB
	skipCause string
)

func TestMain(m *testing.M) {
	flag.Parse()
	logger.Discard()

	if testing.Short() {
		skipCause = "интеграционные тесты пропущены в режиме -short"
		os.Exit(m.Run())
	}

	ctx := context.Background()
	container, err := startPostgres(ctx)
	if err != nil {
		skipCause = fmt.Sprintf("PostgreSQL недоступен: %v", err)
		os.Exit(m.Run())
	}

	code := m.Run()
	if testDB != nil {
		_ = testDB.Close()
	}
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func startPostgres(ctx context.Context) (*postgres.PostgresContainer, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("settlement_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	conn, err := db.NewPostgres(ctx, db.DriverPGX, dsn, db.DefaultPool)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	if err := db.RunMigrations(ctx, conn, "../../../migrations"); err != nil {
		_ = conn.Close()
		_ = container.Terminate(ctx)
		return nil, err
	}
	testDB = conn
	return container, nil
}

func newStore(t *testing.T) *persistence.Store {
	t.Helper()
	if testDB == nil {
		t.Skip(skipCause)
	}
	_, err := testDB.Exec(`TRUNCATE notifications, ratings, job_events, payments, disputes, applications, jobs CASCADE`)
	require.NoError(t, err)

	store := persistence.NewStore(testDB)
	t.Cleanup(func() {
		violations, err := store.CheckInvariants(context.Background())
		require.NoError(t, err)
		require.Empty(t, violations)
	})
	return store
}

type gatewayFunc func(ctx context.Context, req repository.ChargeRequest) (repository.ChargeResult, error)

func (f gatewayFunc) Charge(ctx context.Context, req repository.ChargeRequest) (repository.ChargeResult, error) {
	return f(ctx, req)
}

func actor(role valueobject.Role) valueobject.Actor {
	return valueobject.Actor{ID: uuid.New(), Role: role}
}

func TestStore_ConcurrentAccept(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	jobs := service.NewJobService(store, nil, service.Policy{})
	apps := service.NewApplicationService(store, nil)

	client := actor(valueobject.RoleClient)
	job, err := jobs.Post(ctx, client, service.PostJobInput{Title: "Миграция БД", Budget: valueobject.Money{Amount: 50000, Currency: "USD"}})
	require.NoError(t, err)

	const workers = 6
	ids := make([]uuid.UUID, workers)
	for i := range ids {
		app, err := apps.Submit(ctx, actor(valueobject.RoleWorker), job.ID, service.SubmitApplicationInput{
			ProposedBudget: valueobject.Money{Amount: int64(40000 + i), Currency: "USD"},
		})
		require.NoError(t, err)
		ids[i] = app.ID
	}

	errs := make([]error, workers)
	var g errgroup.Group
	for i := range ids {
		g.Go(func() error {
			_, errs[i] = apps.Accept(ctx, client, job.ID, ids[i])
			return nil
		})
	}
	require.NoError(t, g.Wait())

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperror.IsCode(err, apperror.ErrCodeAlreadyAssigned), "неожиданная ошибка: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	list, err := apps.ListByJob(ctx, client, job.ID)
	require.NoError(t, err)
	accepted := 0
	for _, a := range list {
		if a.IsAccepted() {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
}

func TestStore_SettlementFlow(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	jobs := service.NewJobService(store, nil, service.Policy{})
	apps := service.NewApplicationService(store, nil)
	charged := 0
	payments := service.NewPaymentService(store, nil, gatewayFunc(func(ctx context.Context, req repository.ChargeRequest) (repository.ChargeResult, error) {
		charged++
		return repository.ChargeResult{Reference: "ch_" + req.IdempotencyKey[:8]}, nil
	}), time.Second, service.Policy{})

	client, worker := actor(valueobject.RoleClient), actor(valueobject.RoleWorker)
	job, err := jobs.Post(ctx, client, service.PostJobInput{Title: "Логотип", Budget: valueobject.Money{Amount: 20000, Currency: "EUR"}})
	require.NoError(t, err)
	app, err := apps.Submit(ctx, worker, job.ID, service.SubmitApplicationInput{ProposedBudget: valueobject.Money{Amount: 18000, Currency: "EUR"}})
	require.NoError(t, err)
	_, err = apps.Accept(ctx, client, job.ID, app.ID)
	require.NoError(t, err)
	_, err = jobs.SubmitForReview(ctx, worker, job.ID)
	require.NoError(t, err)

	payment, err := payments.Initiate(ctx, client, job.ID, service.InitiatePaymentInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(18000), payment.Amount.Amount)

	_, err = payments.Initiate(ctx, client, job.ID, service.InitiatePaymentInput{})
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeDuplicatePayment))

	for range 2 {
		payment, err = payments.AttemptGatewaySettlement(ctx, client, payment.ID)
		require.NoError(t, err)
		assert.Equal(t, valueobject.PaymentStatusSettled, payment.Status)
	}
	assert.Equal(t, 1, charged)

	job, err = jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusCompleted, job.Status)
	require.NotNil(t, job.AgreedAmount)
	assert.Equal(t, "EUR", job.AgreedAmount.Currency)

	history, err := jobs.History(ctx, client, job.ID)
	require.NoError(t, err)
	actions := make([]string, 0, len(history))
	for _, e := range history {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{"posted", "assigned", "submitted_for_review", "payment_initiated", "completed"}, actions)
	assert.Equal(t, payment.ID.String(), history[len(history)-1].Payload["payment_id"])
}

func TestStore_UniqueIndexesMapToDomainErrors(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	client, worker := actor(valueobject.RoleClient), actor(valueobject.RoleWorker)
	job, err := entity.NewJob(client.ID, "Перевод", "", valueobject.Money{Amount: 1000, Currency: "USD"}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Jobs().Create(ctx, job))

	first, err := entity.NewApplication(job.ID, worker.ID, valueobject.Money{Amount: 900, Currency: "USD"}, "")
	require.NoError(t, err)
	require.NoError(t, store.Applications().Create(ctx, first))

	second, err := entity.NewApplication(job.ID, worker.ID, valueobject.Money{Amount: 800, Currency: "USD"}, "")
	require.NoError(t, err)
	err = store.Applications().Create(ctx, second)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeDuplicateApplication), "получено: %v", err)

	err = store.Transact(ctx, func(ctx context.Context, tx repository.Tx) error {
		for range 2 {
			p, err := entity.NewPayment(job.ID, client.ID, worker.ID, valueobject.Money{Amount: 900, Currency: "USD"})
			if err != nil {
				return err
			}
			if err := tx.Payments().Create(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeDuplicatePayment), "получено: %v", err)

	payments, err := store.Payments().FindByJobID(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, payments, "транзакция должна быть откачена")
}

func TestStore_JobVersionConflict(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	client := actor(valueobject.RoleClient)
	job, err := entity.NewJob(client.ID, "Аудит", "", valueobject.Money{Amount: 1000, Currency: "USD"}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Jobs().Create(ctx, job))

	a, err := store.Jobs().FindByID(ctx, job.ID)
	require.NoError(t, err)
	b, err := store.Jobs().FindByID(ctx, job.ID)
	require.NoError(t, err)

	require.NoError(t, a.Cancel("передумал"))
	require.NoError(t, store.Jobs().Update(ctx, a))
	assert.Equal(t, int64(2), a.Version)

	require.NoError(t, b.Cancel("тоже передумал"))
	err = store.Jobs().Update(ctx, b)
	assert.ErrorIs(t, err, apperror.ErrVersionConflict)

	err = store.WithinJob(ctx, uuid.New(), func(ctx context.Context, tx repository.Tx) error { return nil })
	assert.ErrorIs(t, err, apperror.ErrJobNotFound)
}

func TestStore_Notifications(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	notifications := service.NewNotificationService(store.Notifications())

	owner, stranger := actor(valueobject.RoleWorker), actor(valueobject.RoleClient)
	msg := entity.Message{
		Event:    service.EventApplicationAccepted,
		Title:    "Отклик принят",
		Body:     "Вас выбрали исполнителем",
		Metadata: map[string]string{"job_id": uuid.NewString()},
	}
	for range 3 {
		require.NoError(t, store.Notifications().Create(ctx, msg.ForRecipient(owner.ID)))
	}

	list, err := notifications.List(ctx, owner, 2, 0, false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, msg.Metadata, list[0].Metadata)
	assert.Equal(t, valueobject.PriorityNormal, list[0].Priority)

	err = notifications.MarkAsRead(ctx, stranger, list[0].ID)
	assert.True(t, apperror.IsNotFound(err))

	require.NoError(t, notifications.MarkAsRead(ctx, owner, list[0].ID))
	unread, err := notifications.CountUnread(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	unreadList, err := notifications.List(ctx, owner, 0, 0, true)
	require.NoError(t, err)
	assert.Len(t, unreadList, 2)
}

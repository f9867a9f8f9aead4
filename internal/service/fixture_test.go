package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/infrastructure/memory"
	"github.com/ignatzorin/job-settlement/internal/logger"
	"github.com/ignatzorin/job-settlement/internal/service"
)

type gatewayMock struct {
	mock.Mock
}

func (m *gatewayMock) Charge(ctx context.Context, req repository.ChargeRequest) (repository.ChargeResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(repository.ChargeResult), args.Error(1)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []entity.Message
}

func (n *recordingNotifier) Send(ctx context.Context, msg entity.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *recordingNotifier) count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.sent {
		if m.Event == event {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) recipients(event string) []uuid.UUID {
	n.mu.Lock()
	defer n.mu.Unlock()
	var ids []uuid.UUID
	for _, m := range n.sent {
		if m.Event == event {
			ids = append(ids, m.Recipients...)
		}
	}
	return ids
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	notifier *recordingNotifier
	gateway  *gatewayMock

	apps     *service.ApplicationService
	jobs     *service.JobService
	payments *service.PaymentService
	disputes *service.DisputeService

	client  valueobject.Actor
	worker1 valueobject.Actor
	worker2 valueobject.Actor
	hr      valueobject.Actor
	finance valueobject.Actor
}

func newFixture(t *testing.T, policy service.Policy) *fixture {
	t.Helper()
	logger.Discard()

	f := &fixture{
		ctx:      context.Background(),
		store:    memory.NewStore(),
		notifier: &recordingNotifier{},
		gateway:  &gatewayMock{},
		client:   valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleClient},
		worker1:  valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleWorker},
		worker2:  valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleWorker},
		hr:       valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleHRAdmin},
		finance:  valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleFinanceAdmin},
	}
	f.apps = service.NewApplicationService(f.store, f.notifier)
	f.jobs = service.NewJobService(f.store, f.notifier, policy)
	f.payments = service.NewPaymentService(f.store, f.notifier, f.gateway, 0, policy)
	f.disputes = service.NewDisputeService(f.store, f.notifier)

	t.Cleanup(func() {
		violations, err := f.store.CheckInvariants(context.Background())
		require.NoError(t, err)
		require.Empty(t, violations, "нарушены инварианты после теста")
	})
	return f
}

func usd(amount int64) valueobject.Money {
	return valueobject.Money{Amount: amount, Currency: "USD"}
}

func (f *fixture) postJob(t *testing.T, budget int64) *entity.Job {
	t.Helper()
	job, err := f.jobs.Post(f.ctx, f.client, service.PostJobInput{Title: "Лендинг", Description: "Сверстать лендинг", Budget: usd(budget)})
	require.NoError(t, err)
	return job
}

func (f *fixture) apply(t *testing.T, jobID uuid.UUID, worker valueobject.Actor, amount int64) *entity.Application {
	t.Helper()
	app, err := f.apps.Submit(f.ctx, worker, jobID, service.SubmitApplicationInput{ProposedBudget: usd(amount)})
	require.NoError(t, err)
	return app
}

// assignedJob - заказ с принятым откликом worker1 на 900.00.
func (f *fixture) assignedJob(t *testing.T) *entity.Job {
	t.Helper()
	job := f.postJob(t, 100000)
	app := f.apply(t, job.ID, f.worker1, 90000)
	res, err := f.apps.Accept(f.ctx, f.client, job.ID, app.ID)
	require.NoError(t, err)
	return res.Job
}

func (f *fixture) awaitingJob(t *testing.T) *entity.Job {
	t.Helper()
	job := f.assignedJob(t)
	job, err := f.jobs.SubmitForReview(f.ctx, f.worker1, job.ID)
	require.NoError(t, err)
	return job
}

func (f *fixture) pendingPayment(t *testing.T) (*entity.Job, *entity.Payment) {
	t.Helper()
	job := f.awaitingJob(t)
	payment, err := f.payments.Initiate(f.ctx, f.client, job.ID, service.InitiatePaymentInput{})
	require.NoError(t, err)
	return job, payment
}

func (f *fixture) completedJob(t *testing.T) (*entity.Job, *entity.Payment) {
	t.Helper()
	job, payment := f.pendingPayment(t)
	f.gateway.On("Charge", mock.Anything, mock.Anything).Return(repository.ChargeResult{Reference: "ch_ok"}, nil).Once()
	payment, err := f.payments.AttemptGatewaySettlement(f.ctx, f.client, payment.ID)
	require.NoError(t, err)
	job, err = f.jobs.Get(f.ctx, job.ID)
	require.NoError(t, err)
	return job, payment
}


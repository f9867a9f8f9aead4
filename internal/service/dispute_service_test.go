package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
	"github.com/ignatzorin/job-settlement/internal/service"
)

func int64p(v int64) *int64 { return &v }

func TestDispute_HoldAndRelease(t *testing.T) {
	f := newFixture(t, service.Policy{})
	job, payment := f.pendingPayment(t)

	dispute, err := f.disputes.Open(f.ctx, f.worker1, job.ID, "клиент не платит")
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusOpen, dispute.Status)
	assert.Equal(t, valueobject.RoleWorker, dispute.InitiatorRole)

	payment, err = f.payments.Get(f.ctx, f.client, payment.ID)
	require.NoError(t, err)
	assert.True(t, payment.Held)
	assert.Equal(t, dispute.ID, *payment.HeldByDisputeID)

	job, err = f.jobs.Get(f.ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusDisputed, job.Status)

	_, err = f.payments.AttemptGatewaySettlement(f.ctx, f.client, payment.ID)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeIllegalTransition))
	f.gateway.AssertNotCalled(t, "Charge")

	_, err = f.disputes.Open(f.ctx, f.client, job.ID, "второй спор")
	assert.True(t, apperror.IsConflict(err))

	res, err := f.disputes.Resolve(f.ctx, f.hr, dispute.ID, service.ResolveDisputeInput{Outcome: "release", Note: "работа выполнена"})
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusResolved, res.Dispute.Status)
	require.NotNil(t, res.Payment)
	assert.Equal(t, valueobject.PaymentStatusSettled, res.Payment.Status)
	assert.False(t, res.Payment.Held)
	assert.Nil(t, res.Payment.HeldByDisputeID)
	assert.Equal(t, valueobject.JobStatusCompleted, res.Job.Status)

	assert.ElementsMatch(t, job.Participants(), f.notifier.recipients(service.EventDisputeResolved))
}

func TestDispute_PartialOnCompletedJob(t *testing.T) {
	f := newFixture(t, service.Policy{})

	job, err := f.jobs.Post(f.ctx, f.client, service.PostJobInput{Title: "Отчёт", Budget: usd(100000)})
	require.NoError(t, err)
	app := f.apply(t, job.ID, f.worker1, 100000)
	_, err = f.apps.Accept(f.ctx, f.client, job.ID, app.ID)
	require.NoError(t, err)
	_, err = f.jobs.SubmitForReview(f.ctx, f.worker1, job.ID)
	require.NoError(t, err)
	payment, err := f.payments.Initiate(f.ctx, f.client, job.ID, service.InitiatePaymentInput{})
	require.NoError(t, err)
	f.gateway.On("Charge", mock.Anything, mock.Anything).Return(repository.ChargeResult{Reference: "ch_ok"}, nil).Once()
	_, err = f.payments.AttemptGatewaySettlement(f.ctx, f.client, payment.ID)
	require.NoError(t, err)

	dispute, err := f.disputes.Open(f.ctx, f.client, job.ID, "сделана только часть работы")
	require.NoError(t, err)

	job, err = f.jobs.Get(f.ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusCompleted, job.Status, "спор после завершения не меняет статус заказа")

	_, err = f.disputes.Resolve(f.ctx, f.hr, dispute.ID, service.ResolveDisputeInput{Outcome: "partial", Note: "частично", PartialAmount: int64p(100001)})
	assert.True(t, apperror.IsValidation(err))

	res, err := f.disputes.Resolve(f.ctx, f.hr, dispute.ID, service.ResolveDisputeInput{Outcome: "partial", Note: "частично", PartialAmount: int64p(40000)})
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusResolved, res.Dispute.Status)
	assert.Equal(t, int64(40000), res.Payment.Amount.Amount)
	require.NotNil(t, res.Payment.OriginalAmount)
	assert.Equal(t, int64(100000), *res.Payment.OriginalAmount)
	assert.Equal(t, valueobject.PaymentStatusSettled, res.Payment.Status)
	assert.Equal(t, valueobject.JobStatusCompleted, res.Job.Status)
}

func TestDispute_RefundCancelsJob(t *testing.T) {
	f := newFixture(t, service.Policy{})
	job, payment := f.pendingPayment(t)

	dispute, err := f.disputes.Open(f.ctx, f.client, job.ID, "работа не выполнена")
	require.NoError(t, err)

	res, err := f.disputes.Resolve(f.ctx, f.hr, dispute.ID, service.ResolveDisputeInput{Outcome: "refund", Note: "возврат"})
	require.NoError(t, err)
	assert.Equal(t, payment.ID, res.Payment.ID)
	assert.Equal(t, valueobject.PaymentStatusRefunded, res.Payment.Status)
	assert.Equal(t, valueobject.JobStatusCancelled, res.Job.Status)

	closed, err := f.disputes.SetStatus(f.ctx, f.hr, dispute.ID, "closed")
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusClosed, closed.Status)

	_, err = f.disputes.SetStatus(f.ctx, f.hr, dispute.ID, "investigating")
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeIllegalTransition))
}

func TestDispute_WithdrawRestoresJob(t *testing.T) {
	f := newFixture(t, service.Policy{})
	job, payment := f.pendingPayment(t)

	dispute, err := f.disputes.Open(f.ctx, f.hr, job.ID, "проверка")
	require.NoError(t, err)

	dispute, err = f.disputes.SetStatus(f.ctx, f.hr, dispute.ID, "investigating")
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusInvestigating, dispute.Status)

	_, err = f.disputes.SetStatus(f.ctx, f.hr, dispute.ID, "resolved")
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeIllegalTransition), "resolved требует решения")

	_, err = f.disputes.SetStatus(f.ctx, f.hr, dispute.ID, "open")
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeIllegalTransition))

	_, err = f.disputes.SetStatus(f.ctx, f.client, dispute.ID, "closed")
	assert.True(t, apperror.IsForbidden(err))

	dispute, err = f.disputes.SetStatus(f.ctx, f.hr, dispute.ID, "closed")
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeOutcomeNone, dispute.Outcome)

	job, err = f.jobs.Get(f.ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusAwaitingCompletion, job.Status)

	payment, err = f.payments.Get(f.ctx, f.client, payment.ID)
	require.NoError(t, err)
	assert.False(t, payment.Held)
	assert.Equal(t, valueobject.PaymentStatusPending, payment.Status)
}

func TestDispute_ResolveValidation(t *testing.T) {
	f := newFixture(t, service.Policy{})
	job := f.assignedJob(t)

	_, err := f.disputes.Open(f.ctx, f.worker2, job.ID, "чужой заказ")
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.disputes.Open(f.ctx, f.client, job.ID, "  ")
	assert.True(t, apperror.IsValidation(err))

	dispute, err := f.disputes.Open(f.ctx, f.client, job.ID, "исполнитель пропал")
	require.NoError(t, err)

	_, err = f.disputes.Resolve(f.ctx, f.hr, dispute.ID, service.ResolveDisputeInput{Note: "без исхода"})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.disputes.Resolve(f.ctx, f.hr, dispute.ID, service.ResolveDisputeInput{Outcome: "release"})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.disputes.Resolve(f.ctx, f.hr, dispute.ID, service.ResolveDisputeInput{Outcome: "partial", Note: "x"})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.disputes.Resolve(f.ctx, f.finance, dispute.ID, service.ResolveDisputeInput{Outcome: "release", Note: "x"})
	assert.True(t, apperror.IsForbidden(err))

	// Без платежа решение носит рекомендательный характер, заказ возвращается в работу.
	res, err := f.disputes.Resolve(f.ctx, f.hr, dispute.ID, service.ResolveDisputeInput{Outcome: "release", Note: "продолжить работу"})
	require.NoError(t, err)
	assert.Nil(t, res.Payment)
	assert.Equal(t, valueobject.JobStatusAssigned, res.Job.Status)

	_, err = f.disputes.Resolve(f.ctx, f.hr, dispute.ID, service.ResolveDisputeInput{Outcome: "refund", Note: "повторно"})
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeIllegalTransition))
}

func TestDispute_CannotOpenOnPostedJob(t *testing.T) {
	f := newFixture(t, service.Policy{})
	job := f.postJob(t, 100000)

	_, err := f.disputes.Open(f.ctx, f.hr, job.ID, "рано")
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeIllegalTransition))
}

func TestDispute_Reads(t *testing.T) {
	f := newFixture(t, service.Policy{})
	job := f.assignedJob(t)
	dispute, err := f.disputes.Open(f.ctx, f.worker1, job.ID, "спор")
	require.NoError(t, err)

	_, err = f.disputes.Get(f.ctx, f.worker2, dispute.ID)
	assert.True(t, apperror.IsForbidden(err))

	got, err := f.disputes.Get(f.ctx, f.client, dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, dispute.ID, got.ID)

	_, err = f.disputes.List(f.ctx, f.client, "open", 0, 0)
	assert.True(t, apperror.IsForbidden(err))

	open, err := f.disputes.List(f.ctx, f.hr, "open", 0, 0)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

package service_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
	"github.com/ignatzorin/job-settlement/internal/service"
)

func TestAccept_RejectsSiblingsAndAssigns(t *testing.T) {
	f := newFixture(t, service.Policy{})

	job := f.postJob(t, 100000)
	low := f.apply(t, job.ID, f.worker1, 70000)
	high := f.apply(t, job.ID, f.worker2, 90000)

	res, err := f.apps.Accept(f.ctx, f.client, job.ID, high.ID)
	require.NoError(t, err)

	assert.Equal(t, valueobject.JobStatusAssigned, res.Job.Status)
	assert.True(t, res.Job.IsAssignedTo(f.worker2.ID))
	assert.Equal(t, int64(90000), res.Job.AgreedAmount.Amount)
	assert.Equal(t, valueobject.ApplicationStatusAccepted, res.Application.Status)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, low.ID, res.Rejected[0].ID)

	apps, err := f.apps.ListByJob(f.ctx, f.client, job.ID)
	require.NoError(t, err)
	for _, a := range apps {
		if a.ID == low.ID {
			assert.Equal(t, valueobject.ApplicationStatusRejected, a.Status)
		}
	}

	assert.Equal(t, []uuid.UUID{f.worker2.ID}, f.notifier.recipients(service.EventApplicationAccepted))
	assert.Equal(t, []uuid.UUID{f.worker1.ID}, f.notifier.recipients(service.EventApplicationRejected))
	assert.Equal(t, 2, f.notifier.count(service.EventApplicationSubmitted))
}

func TestAccept_ConcurrentOnlyOneWins(t *testing.T) {
	f := newFixture(t, service.Policy{})

	job := f.postJob(t, 100000)
	workers := make([]valueobject.Actor, 8)
	apps := make([]*entity.Application, len(workers))
	for i := range workers {
		workers[i] = valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleWorker}
		apps[i] = f.apply(t, job.ID, workers[i], int64(50000+i))
	}

	results := make([]error, len(apps))
	var g errgroup.Group
	for i := range apps {
		i := i
		g.Go(func() error {
			_, results[i] = f.apps.Accept(f.ctx, f.client, job.ID, apps[i].ID)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperror.IsCode(err, apperror.ErrCodeAlreadyAssigned), "ожидался ALREADY_ASSIGNED, получено %v", err)
	}
	assert.Equal(t, 1, succeeded)

	stored, err := f.apps.ListByJob(f.ctx, f.client, job.ID)
	require.NoError(t, err)
	accepted := 0
	for _, a := range stored {
		if a.IsAccepted() {
			accepted++
		} else {
			assert.Equal(t, valueobject.ApplicationStatusRejected, a.Status)
		}
	}
	assert.Equal(t, 1, accepted)
}

func TestSubmit_Guards(t *testing.T) {
	f := newFixture(t, service.Policy{})
	job := f.postJob(t, 100000)
	f.apply(t, job.ID, f.worker1, 80000)

	_, err := f.apps.Submit(f.ctx, f.worker1, job.ID, service.SubmitApplicationInput{ProposedBudget: usd(70000)})
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeDuplicateApplication))

	_, err = f.apps.Submit(f.ctx, f.client, job.ID, service.SubmitApplicationInput{ProposedBudget: usd(70000)})
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.apps.Submit(f.ctx, f.worker2, job.ID, service.SubmitApplicationInput{ProposedBudget: valueobject.Money{Amount: 100, Currency: "EUR"}})
	assert.True(t, apperror.IsValidation(err))

	assigned := f.assignedJob(t)
	_, err = f.apps.Submit(f.ctx, f.worker2, assigned.ID, service.SubmitApplicationInput{ProposedBudget: usd(70000)})
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeIllegalTransition))
}

func TestSubmit_AfterRejectionAllowed(t *testing.T) {
	f := newFixture(t, service.Policy{})
	job := f.postJob(t, 100000)
	app := f.apply(t, job.ID, f.worker1, 80000)

	_, err := f.apps.Reject(f.ctx, f.client, job.ID, app.ID)
	require.NoError(t, err)

	f.apply(t, job.ID, f.worker1, 75000)
}

func TestReject_ResolvedIsNoop(t *testing.T) {
	f := newFixture(t, service.Policy{})
	job := f.postJob(t, 100000)
	app := f.apply(t, job.ID, f.worker1, 80000)

	_, err := f.apps.Accept(f.ctx, f.client, job.ID, app.ID)
	require.NoError(t, err)

	got, err := f.apps.Reject(f.ctx, f.client, job.ID, app.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ApplicationStatusAccepted, got.Status)
	assert.Zero(t, f.notifier.count(service.EventApplicationRejected))

	_, err = f.apps.Reject(f.ctx, f.worker1, job.ID, app.ID)
	assert.True(t, apperror.IsForbidden(err))
}

func TestAccept_WrongJobOrStatus(t *testing.T) {
	f := newFixture(t, service.Policy{})
	job := f.postJob(t, 100000)
	other := f.postJob(t, 100000)
	app := f.apply(t, job.ID, f.worker1, 80000)

	_, err := f.apps.Accept(f.ctx, f.client, other.ID, app.ID)
	assert.True(t, apperror.IsNotFound(err))

	rejected := f.apply(t, job.ID, f.worker2, 80000)
	_, err = f.apps.Reject(f.ctx, f.client, job.ID, rejected.ID)
	require.NoError(t, err)
	_, err = f.apps.Accept(f.ctx, f.client, job.ID, rejected.ID)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeIllegalTransition))

	_, err = f.apps.Accept(f.ctx, f.client, job.ID, app.ID)
	require.NoError(t, err)
	_, err = f.apps.Accept(f.ctx, f.client, job.ID, app.ID)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeAlreadyAssigned))
}

func TestListByJob_WorkerSeesOwnOnly(t *testing.T) {
	f := newFixture(t, service.Policy{})
	job := f.postJob(t, 100000)
	mine := f.apply(t, job.ID, f.worker1, 80000)
	f.apply(t, job.ID, f.worker2, 85000)

	apps, err := f.apps.ListByJob(f.ctx, f.worker1, job.ID)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, mine.ID, apps[0].ID)

	apps, err = f.apps.ListByJob(f.ctx, f.hr, job.ID)
	require.NoError(t, err)
	assert.Len(t, apps, 2)
}

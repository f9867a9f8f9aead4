package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
	"github.com/ignatzorin/job-settlement/internal/service"
)

func TestRevisionLoop(t *testing.T) {
	f := newFixture(t, service.Policy{})
	job := f.awaitingJob(t)

	job, err := f.jobs.RequestRevision(f.ctx, f.client, job.ID, "missing section 3")
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusRevisionRequested, job.Status)
	assert.Equal(t, 1, job.RevisionCount)

	job, err = f.jobs.Resubmit(f.ctx, f.worker1, job.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusInProgress, job.Status)

	job, err = f.jobs.SubmitForReview(f.ctx, f.worker1, job.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusAwaitingCompletion, job.Status)

	history, err := f.jobs.History(f.ctx, f.client, job.ID)
	require.NoError(t, err)
	var actions []string
	for _, e := range history {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{"posted", "assigned", "submitted_for_review", "revision_requested", "resubmitted", "submitted_for_review"}, actions)
}

func TestRequestRevision_Guards(t *testing.T) {
	f := newFixture(t, service.Policy{})
	job := f.awaitingJob(t)

	_, err := f.jobs.RequestRevision(f.ctx, f.client, job.ID, "   ")
	assert.True(t, apperror.IsValidation(err))

	_, err = f.jobs.RequestRevision(f.ctx, f.worker1, job.ID, "переделать")
	assert.True(t, apperror.IsForbidden(err))

	assigned := f.assignedJob(t)
	_, err = f.jobs.RequestRevision(f.ctx, f.client, assigned.ID, "переделать")
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeIllegalTransition))
}

func TestWorkerTransitions_OnlyAssignedWorker(t *testing.T) {
	f := newFixture(t, service.Policy{})
	job := f.assignedJob(t)

	_, err := f.jobs.SubmitForReview(f.ctx, f.worker2, job.ID)
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.jobs.SubmitForReview(f.ctx, f.client, job.ID)
	assert.True(t, apperror.IsForbidden(err))

	job, err = f.jobs.StartWork(f.ctx, f.worker1, job.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusInProgress, job.Status)

	_, err = f.jobs.StartWork(f.ctx, f.worker1, job.ID)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeIllegalTransition))

	_, err = f.jobs.Resubmit(f.ctx, f.worker1, job.ID)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeIllegalTransition))
}

func TestRevisionLimit_Refused(t *testing.T) {
	f := newFixture(t, service.Policy{MaxRevisions: 1})
	job := f.awaitingJob(t)

	_, err := f.jobs.RequestRevision(f.ctx, f.client, job.ID, "первая правка")
	require.NoError(t, err)
	_, err = f.jobs.Resubmit(f.ctx, f.worker1, job.ID)
	require.NoError(t, err)
	_, err = f.jobs.SubmitForReview(f.ctx, f.worker1, job.ID)
	require.NoError(t, err)

	_, err = f.jobs.RequestRevision(f.ctx, f.client, job.ID, "вторая правка")
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeIllegalTransition))
}

func TestRevisionLimit_EscalatesToDispute(t *testing.T) {
	f := newFixture(t, service.Policy{MaxRevisions: 1, EscalateOnLimit: true})
	job := f.awaitingJob(t)

	_, err := f.jobs.RequestRevision(f.ctx, f.client, job.ID, "первая правка")
	require.NoError(t, err)
	_, err = f.jobs.Resubmit(f.ctx, f.worker1, job.ID)
	require.NoError(t, err)
	_, err = f.jobs.SubmitForReview(f.ctx, f.worker1, job.ID)
	require.NoError(t, err)

	job, err = f.jobs.RequestRevision(f.ctx, f.client, job.ID, "вторая правка")
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusDisputed, job.Status)
	assert.Equal(t, 1, job.RevisionCount)

	disputes, err := f.disputes.ListByJob(f.ctx, f.client, job.ID)
	require.NoError(t, err)
	require.Len(t, disputes, 1)
	assert.Equal(t, valueobject.RoleClient, disputes[0].InitiatorRole)
	assert.Equal(t, 1, f.notifier.count(service.EventDisputeOpened))
}

func TestCancel(t *testing.T) {
	f := newFixture(t, service.Policy{})

	job := f.postJob(t, 100000)
	app := f.apply(t, job.ID, f.worker1, 80000)

	_, err := f.jobs.Cancel(f.ctx, f.worker1, job.ID, "")
	assert.True(t, apperror.IsForbidden(err))

	job, err = f.jobs.Cancel(f.ctx, f.client, job.ID, "передумал")
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusCancelled, job.Status)
	require.NotNil(t, job.CancelReason)

	apps, err := f.apps.ListByJob(f.ctx, f.client, job.ID)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, app.ID, apps[0].ID)
	assert.Equal(t, valueobject.ApplicationStatusRejected, apps[0].Status)

	_, err = f.jobs.Cancel(f.ctx, f.client, job.ID, "")
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeIllegalTransition))
}

func TestCancel_HRAdminAndActivePaymentGuard(t *testing.T) {
	f := newFixture(t, service.Policy{})

	assigned := f.assignedJob(t)
	job, err := f.jobs.Cancel(f.ctx, f.hr, assigned.ID, "нарушение правил")
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusCancelled, job.Status)
	assert.ElementsMatch(t, assigned.Participants(), f.notifier.recipients(service.EventJobCancelled))

	withPayment, _ := f.pendingPayment(t)
	_, err = f.jobs.Cancel(f.ctx, f.client, withPayment.ID, "")
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeIllegalTransition))

	completed, _ := f.completedJob(t)
	_, err = f.jobs.Cancel(f.ctx, f.client, completed.ID, "")
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeIllegalTransition))
}

func TestRate(t *testing.T) {
	f := newFixture(t, service.Policy{})

	awaiting := f.awaitingJob(t)
	_, err := f.jobs.Rate(f.ctx, f.client, awaiting.ID, 5, "")
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeIllegalTransition))

	job, _ := f.completedJob(t)

	rating, err := f.jobs.Rate(f.ctx, f.client, job.ID, 5, "отлично")
	require.NoError(t, err)
	assert.Equal(t, f.worker1.ID, rating.RateeID)

	_, err = f.jobs.Rate(f.ctx, f.client, job.ID, 4, "")
	assert.True(t, apperror.IsConflict(err))

	_, err = f.jobs.Rate(f.ctx, f.worker1, job.ID, 0, "")
	assert.True(t, apperror.IsValidation(err))

	rating, err = f.jobs.Rate(f.ctx, f.worker1, job.ID, 4, "")
	require.NoError(t, err)
	assert.Equal(t, f.client.ID, rating.RateeID)

	_, err = f.jobs.Rate(f.ctx, f.worker2, job.ID, 3, "")
	assert.True(t, apperror.IsForbidden(err))

	ratings, err := f.jobs.Ratings(f.ctx, job.ID)
	require.NoError(t, err)
	assert.Len(t, ratings, 2)
}

func TestPostAndList(t *testing.T) {
	f := newFixture(t, service.Policy{})

	_, err := f.jobs.Post(f.ctx, f.worker1, service.PostJobInput{Title: "x", Budget: usd(100)})
	assert.True(t, apperror.IsForbidden(err))

	f.postJob(t, 100000)
	assigned := f.assignedJob(t)

	all, err := f.jobs.List(f.ctx, f.worker2, service.ListJobsInput{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	posted, err := f.jobs.List(f.ctx, f.worker2, service.ListJobsInput{Status: "posted"})
	require.NoError(t, err)
	assert.Len(t, posted, 1)

	mine, err := f.jobs.List(f.ctx, f.worker1, service.ListJobsInput{Mine: true})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, assigned.ID, mine[0].ID)

	_, err = f.jobs.List(f.ctx, f.worker1, service.ListJobsInput{Status: "unknown"})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.jobs.History(f.ctx, f.worker2, assigned.ID)
	assert.True(t, apperror.IsForbidden(err))
}

func TestCheckInvariants_AdminOnly(t *testing.T) {
	f := newFixture(t, service.Policy{})

	_, err := f.jobs.CheckInvariants(f.ctx, f.client)
	assert.True(t, apperror.IsForbidden(err))

	violations, err := f.jobs.CheckInvariants(f.ctx, f.finance)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

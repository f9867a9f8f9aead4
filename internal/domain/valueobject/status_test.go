package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

func TestJobStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		ok       bool
	}{
		{JobStatusPosted, JobStatusAssigned, true},
		{JobStatusPosted, JobStatusInProgress, false},
		{JobStatusAssigned, JobStatusInProgress, true},
		{JobStatusInProgress, JobStatusAwaitingCompletion, true},
		{JobStatusAwaitingCompletion, JobStatusRevisionRequested, true},
		{JobStatusRevisionRequested, JobStatusInProgress, true},
		{JobStatusAwaitingCompletion, JobStatusCompleted, true},
		{JobStatusInProgress, JobStatusCompleted, false},
		{JobStatusCompleted, JobStatusCancelled, false},
		{JobStatusCancelled, JobStatusPosted, false},
		{JobStatusDisputed, JobStatusCompleted, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestJobStatus_CancelFromEveryNonTerminal(t *testing.T) {
	for s := range jobTransitions {
		if s.IsTerminal() {
			assert.False(t, s.CanTransitionTo(JobStatusCancelled), s)
			continue
		}
		assert.True(t, s.CanTransitionTo(JobStatusCancelled), s)
	}
}

func TestPaymentStatus_OnlyForward(t *testing.T) {
	assert.True(t, PaymentStatusPending.CanTransitionTo(PaymentStatusManualReview))
	assert.True(t, PaymentStatusManualReview.CanTransitionTo(PaymentStatusSettled))
	assert.False(t, PaymentStatusManualReview.CanTransitionTo(PaymentStatusPending))
	assert.False(t, PaymentStatusSettled.CanTransitionTo(PaymentStatusPending))
	assert.False(t, PaymentStatusRefunded.CanTransitionTo(PaymentStatusSettled))
}

func TestDisputeStatus_ForwardOnly(t *testing.T) {
	assert.True(t, DisputeStatusOpen.CanTransitionTo(DisputeStatusInvestigating))
	assert.False(t, DisputeStatusInvestigating.CanTransitionTo(DisputeStatusOpen))
	assert.False(t, DisputeStatusResolved.CanTransitionTo(DisputeStatusInvestigating))
	assert.False(t, DisputeStatusClosed.CanTransitionTo(DisputeStatusResolved))
}

func TestNewResolutionOutcome(t *testing.T) {
	_, err := NewResolutionOutcome("")
	assert.True(t, apperror.IsValidation(err))

	_, err = NewResolutionOutcome("none")
	assert.True(t, apperror.IsValidation(err))

	o, err := NewResolutionOutcome("partial")
	require.NoError(t, err)
	assert.Equal(t, DisputeOutcomePartial, o)
}

func TestMoney(t *testing.T) {
	m, err := NewPositiveMoney(1000, "usd")
	require.NoError(t, err)
	assert.Equal(t, "USD", m.Currency)
	assert.Equal(t, "10.00 USD", m.String())

	_, err = NewPositiveMoney(0, "USD")
	assert.True(t, apperror.IsValidation(err))

	_, err = NewMoney(-1, "USD")
	assert.True(t, apperror.IsValidation(err))

	ok, err := Money{Amount: 400, Currency: "USD"}.LessOrEqual(m)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = Money{Amount: 400, Currency: "EUR"}.LessOrEqual(m)
	assert.Error(t, err)
}

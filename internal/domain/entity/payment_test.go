package entity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

func newTestPayment(t *testing.T) *Payment {
	t.Helper()
	p, err := NewPayment(uuid.New(), uuid.New(), uuid.New(), valueobject.Money{Amount: 100000, Currency: "USD"})
	require.NoError(t, err)
	return p
}

func TestPayment_ManualReviewFlow(t *testing.T) {
	p := newTestPayment(t)

	require.NoError(t, p.FallBackToManualReview("gateway timeout"))
	assert.Equal(t, valueobject.PaymentStatusManualReview, p.Status)
	assert.Equal(t, valueobject.SettlementMethodManualProof, p.Method)

	err := p.AcceptProof("")
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeIllegalTransition), "нельзя принять без загруженного подтверждения")

	require.NoError(t, p.AttachProof("blob://a"))
	require.NoError(t, p.RejectProof("нечитаемо"))
	assert.Equal(t, valueobject.PaymentStatusManualReview, p.Status)
	assert.Nil(t, p.ProofRef)
	assert.Equal(t, 1, p.ProofRejections)

	require.NoError(t, p.AttachProof("blob://b"))
	require.NoError(t, p.AcceptProof("ok"))
	assert.Equal(t, valueobject.PaymentStatusSettled, p.Status)
	assert.NotNil(t, p.SettledAt)
	assert.Equal(t, 2, p.ProofAttempts)
}

func TestPayment_AttachProofRequiresManualReview(t *testing.T) {
	p := newTestPayment(t)
	err := p.AttachProof("blob://a")
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeIllegalTransition))
}

func TestPayment_HeldBlocksProgress(t *testing.T) {
	p := newTestPayment(t)
	disputeID := uuid.New()

	assert.True(t, p.Hold(disputeID))
	assert.True(t, apperror.IsCode(p.SettleByGateway("ref"), apperror.ErrCodeIllegalTransition))
	assert.True(t, apperror.IsCode(p.FallBackToManualReview(""), apperror.ErrCodeIllegalTransition))

	require.NoError(t, p.ReleaseByResolution())
	assert.False(t, p.Held)
	assert.Nil(t, p.HeldByDisputeID)
	assert.Equal(t, valueobject.PaymentStatusSettled, p.Status)
}

func TestPayment_HoldIgnoredForTerminal(t *testing.T) {
	p := newTestPayment(t)
	require.NoError(t, p.SettleByGateway("ref"))
	assert.False(t, p.Hold(uuid.New()))
	assert.False(t, p.Held)
}

func TestPayment_SettlePartially(t *testing.T) {
	p := newTestPayment(t)
	require.NoError(t, p.SettleByGateway("ref"))

	assert.True(t, apperror.IsValidation(p.SettlePartially(0)))
	assert.True(t, apperror.IsValidation(p.SettlePartially(100001)))

	require.NoError(t, p.SettlePartially(40000))
	assert.Equal(t, int64(40000), p.Amount.Amount)
	assert.Equal(t, int64(100000), *p.OriginalAmount)
	assert.Equal(t, valueobject.PaymentStatusSettled, p.Status)
}

func TestPayment_RefundSettled(t *testing.T) {
	p := newTestPayment(t)
	require.NoError(t, p.SettleByGateway("ref"))
	require.NoError(t, p.RefundByResolution())
	assert.Equal(t, valueobject.PaymentStatusRefunded, p.Status)
	assert.True(t, apperror.IsCode(p.RefundByResolution(), apperror.ErrCodeIllegalTransition))
}

package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
)

type InitiatePaymentRequest struct {
	Amount  int64      `json:"amount" binding:"gte=0"`
	PayeeID *uuid.UUID `json:"payee_id"`
}

type VerifyProofRequest struct {
	Decision string `json:"decision" binding:"required"`
	Note     string `json:"note"`
}

type PaymentResponse struct {
	ID               uuid.UUID  `json:"id"`
	JobID            uuid.UUID  `json:"job_id"`
	PayerID          uuid.UUID  `json:"payer_id"`
	PayeeID          uuid.UUID  `json:"payee_id"`
	Amount           MoneyDTO   `json:"amount"`
	OriginalAmount   *int64     `json:"original_amount,omitempty"`
	Status           string     `json:"status"`
	Method           string     `json:"method,omitempty"`
	ProofRef         *string    `json:"proof_ref,omitempty"`
	ProofAttempts    int        `json:"proof_attempts"`
	ProofRejections  int        `json:"proof_rejections"`
	ReviewNote       *string    `json:"review_note,omitempty"`
	GatewayReference *string    `json:"gateway_reference,omitempty"`
	FailureReason    *string    `json:"failure_reason,omitempty"`
	Held             bool       `json:"held"`
	HeldByDisputeID  *uuid.UUID `json:"held_by_dispute_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	SettledAt        *time.Time `json:"settled_at,omitempty"`
	RefundedAt       *time.Time `json:"refunded_at,omitempty"`
}

func ToPaymentResponse(p *entity.Payment) PaymentResponse {
	return PaymentResponse{
		ID:               p.ID,
		JobID:            p.JobID,
		PayerID:          p.PayerID,
		PayeeID:          p.PayeeID,
		Amount:           ToMoneyDTO(p.Amount),
		OriginalAmount:   p.OriginalAmount,
		Status:           string(p.Status),
		Method:           string(p.Method),
		ProofRef:         p.ProofRef,
		ProofAttempts:    p.ProofAttempts,
		ProofRejections:  p.ProofRejections,
		ReviewNote:       p.ReviewNote,
		GatewayReference: p.GatewayReference,
		FailureReason:    p.FailureReason,
		Held:             p.Held,
		HeldByDisputeID:  p.HeldByDisputeID,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
		SettledAt:        p.SettledAt,
		RefundedAt:       p.RefundedAt,
	}
}

func ToPaymentResponses(payments []*entity.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, ToPaymentResponse(p))
	}
	return out
}

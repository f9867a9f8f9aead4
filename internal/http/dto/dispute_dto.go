package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
)

type OpenDisputeRequest struct {
	Description string `json:"description" binding:"required"`
}

type DisputeStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type ResolveDisputeRequest struct {
	Outcome       string `json:"outcome" binding:"required"`
	Note          string `json:"note"`
	PartialAmount *int64 `json:"partial_amount"`
}

type DisputeResponse struct {
	ID             uuid.UUID  `json:"id"`
	JobID          uuid.UUID  `json:"job_id"`
	InitiatorID    uuid.UUID  `json:"initiator_id"`
	InitiatorRole  string     `json:"initiator_role"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	Outcome        string     `json:"outcome,omitempty"`
	ResolutionNote *string    `json:"resolution_note,omitempty"`
	PartialAmount  *int64     `json:"partial_amount,omitempty"`
	ResolverID     *uuid.UUID `json:"resolver_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
}

func ToDisputeResponse(d *entity.Dispute) DisputeResponse {
	return DisputeResponse{
		ID:             d.ID,
		JobID:          d.JobID,
		InitiatorID:    d.InitiatorID,
		InitiatorRole:  string(d.InitiatorRole),
		Description:    d.Description,
		Status:         string(d.Status),
		Outcome:        string(d.Outcome),
		ResolutionNote: d.ResolutionNote,
		PartialAmount:  d.PartialAmount,
		ResolverID:     d.ResolverID,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		ResolvedAt:     d.ResolvedAt,
		ClosedAt:       d.ClosedAt,
	}
}

func ToDisputeResponses(disputes []*entity.Dispute) []DisputeResponse {
	out := make([]DisputeResponse, 0, len(disputes))
	for _, d := range disputes {
		out = append(out, ToDisputeResponse(d))
	}
	return out
}

// ResolveDisputeResponse - спор, платёж и заказ после применения решения.
type ResolveDisputeResponse struct {
	Dispute DisputeResponse  `json:"dispute"`
	Payment *PaymentResponse `json:"payment,omitempty"`
	Job     JobResponse      `json:"job"`
}

package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
)

type SubmitApplicationRequest struct {
	ProposedBudget int64  `json:"proposed_budget" binding:"required,gt=0"`
	Currency       string `json:"currency"`
	CoverLetter    string `json:"cover_letter"`
}

type ApplicationResponse struct {
	ID             uuid.UUID  `json:"id"`
	JobID          uuid.UUID  `json:"job_id"`
	WorkerID       uuid.UUID  `json:"worker_id"`
	ProposedBudget MoneyDTO   `json:"proposed_budget"`
	CoverLetter    string     `json:"cover_letter,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
}

func ToApplicationResponse(a *entity.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:             a.ID,
		JobID:          a.JobID,
		WorkerID:       a.WorkerID,
		ProposedBudget: ToMoneyDTO(a.ProposedBudget),
		CoverLetter:    a.CoverLetter,
		Status:         string(a.Status),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
		DecidedAt:      a.DecidedAt,
	}
}

func ToApplicationResponses(apps []*entity.Application) []ApplicationResponse {
	out := make([]ApplicationResponse, 0, len(apps))
	for _, a := range apps {
		out = append(out, ToApplicationResponse(a))
	}
	return out
}

// AcceptApplicationResponse - заказ и отклики после выбора исполнителя.
type AcceptApplicationResponse struct {
	Job         JobResponse           `json:"job"`
	Application ApplicationResponse   `json:"application"`
	Rejected    []ApplicationResponse `json:"rejected"`
}

package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
)

// MoneyDTO - сумма в минимальных единицах валюты.
type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func ToMoneyDTO(m valueobject.Money) MoneyDTO {
	return MoneyDTO{Amount: m.Amount, Currency: m.Currency}
}

type PostJobRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Budget      int64      `json:"budget" binding:"required,gt=0"`
	Currency    string     `json:"currency"`
	Deadline    *time.Time `json:"deadline"`
}

type ReasonRequest struct {
	Reason string `json:"reason"`
}

type RateJobRequest struct {
	Score   int    `json:"score" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

type JobResponse struct {
	ID                    uuid.UUID  `json:"id"`
	ClientID              uuid.UUID  `json:"client_id"`
	Title                 string     `json:"title"`
	Description           string     `json:"description"`
	Budget                MoneyDTO   `json:"budget"`
	Deadline              *time.Time `json:"deadline,omitempty"`
	Overdue               bool       `json:"overdue"`
	Status                string     `json:"status"`
	StatusBeforeDispute   *string    `json:"status_before_dispute,omitempty"`
	AssignedWorkerID      *uuid.UUID `json:"assigned_worker_id,omitempty"`
	AcceptedApplicationID *uuid.UUID `json:"accepted_application_id,omitempty"`
	AgreedAmount          *MoneyDTO  `json:"agreed_amount,omitempty"`
	RevisionCount         int        `json:"revision_count"`
	LastRevisionReason    *string    `json:"last_revision_reason,omitempty"`
	CancelReason          *string    `json:"cancel_reason,omitempty"`
	Version               int64      `json:"version"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	CancelledAt           *time.Time `json:"cancelled_at,omitempty"`
}

func ToJobResponse(job *entity.Job, now time.Time) JobResponse {
	resp := JobResponse{
		ID:                    job.ID,
		ClientID:              job.ClientID,
		Title:                 job.Title,
		Description:           job.Description,
		Budget:                ToMoneyDTO(job.Budget),
		Deadline:              job.Deadline,
		Overdue:               job.IsOverdue(now),
		Status:                string(job.Status),
		AssignedWorkerID:      job.AssignedWorkerID,
		AcceptedApplicationID: job.AcceptedApplicationID,
		RevisionCount:         job.RevisionCount,
		LastRevisionReason:    job.LastRevisionReason,
		CancelReason:          job.CancelReason,
		Version:               job.Version,
		CreatedAt:             job.CreatedAt,
		UpdatedAt:             job.UpdatedAt,
		CompletedAt:           job.CompletedAt,
		CancelledAt:           job.CancelledAt,
	}
	if job.StatusBeforeDispute != nil {
		s := string(*job.StatusBeforeDispute)
		resp.StatusBeforeDispute = &s
	}
	if job.AgreedAmount != nil {
		m := ToMoneyDTO(*job.AgreedAmount)
		resp.AgreedAmount = &m
	}
	return resp
}

func ToJobResponses(jobs []*entity.Job, now time.Time) []JobResponse {
	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, ToJobResponse(j, now))
	}
	return out
}

type JobEventResponse struct {
	ID         uuid.UUID         `json:"id"`
	ActorID    uuid.UUID         `json:"actor_id"`
	Action     string            `json:"action"`
	FromStatus string            `json:"from_status"`
	ToStatus   string            `json:"to_status"`
	Payload    map[string]string `json:"payload,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func ToJobEventResponses(events []*entity.JobEvent) []JobEventResponse {
	out := make([]JobEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, JobEventResponse{
			ID:         e.ID,
			ActorID:    e.ActorID,
			Action:     e.Action,
			FromStatus: string(e.FromStatus),
			ToStatus:   string(e.ToStatus),
			Payload:    e.Payload,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}

type RatingResponse struct {
	ID        uuid.UUID `json:"id"`
	JobID     uuid.UUID `json:"job_id"`
	RaterID   uuid.UUID `json:"rater_id"`
	RateeID   uuid.UUID `json:"ratee_id"`
	Score     int       `json:"score"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func ToRatingResponse(r *entity.Rating) RatingResponse {
	return RatingResponse{
		ID:        r.ID,
		JobID:     r.JobID,
		RaterID:   r.RaterID,
		RateeID:   r.RateeID,
		Score:     r.Score,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
}

func ToRatingResponses(ratings []*entity.Rating) []RatingResponse {
	out := make([]RatingResponse, 0, len(ratings))
	for _, r := range ratings {
		out = append(out, ToRatingResponse(r))
	}
	return out
}

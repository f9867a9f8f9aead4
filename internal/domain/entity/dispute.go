package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

type Dispute struct {
	ID             uuid.UUID
	JobID          uuid.UUID
	InitiatorID    uuid.UUID
	InitiatorRole  valueobject.Role
	Description    string
	Status         valueobject.DisputeStatus
	Outcome        valueobject.DisputeOutcome
	ResolutionNote *string
	PartialAmount  *int64
	ResolverID     *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ResolvedAt     *time.Time
	ClosedAt       *time.Time
}

func NewDispute(jobID uuid.UUID, initiator valueobject.Actor, description string) (*Dispute, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "описание спора обязательно")
	}

	now := time.Now().UTC()
	return &Dispute{
		ID:            uuid.New(),
		JobID:         jobID,
		InitiatorID:   initiator.ID,
		InitiatorRole: initiator.Role,
		Description:   description,
		Status:        valueobject.DisputeStatusOpen,
		Outcome:       valueobject.DisputeOutcomeNone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (d *Dispute) move(to valueobject.DisputeStatus) error {
	if !d.Status.CanTransitionTo(to) {
		return apperror.Newf(apperror.ErrCodeIllegalTransition, "недопустимый переход спора %s -> %s", d.Status, to)
	}
	now := time.Now().UTC()
	d.Status = to
	d.UpdatedAt = now
	switch to {
	case valueobject.DisputeStatusResolved:
		d.ResolvedAt = &now
	case valueobject.DisputeStatusClosed:
		d.ClosedAt = &now
	}
	return nil
}

func (d *Dispute) StartInvestigation() error {
	return d.move(valueobject.DisputeStatusInvestigating)
}

// Close закрывает спор. Без решения спор считается отозванным.
func (d *Dispute) Close() error {
	return d.move(valueobject.DisputeStatusClosed)
}

// MarkResolved доступен только после вынесения решения.
func (d *Dispute) MarkResolved() error {
	if d.Outcome == valueobject.DisputeOutcomeNone || d.ResolutionNote == nil {
		return apperror.New(apperror.ErrCodeIllegalTransition, "спор нельзя перевести в resolved без решения")
	}
	return d.move(valueobject.DisputeStatusResolved)
}

func (d *Dispute) Resolve(outcome valueobject.DisputeOutcome, note string, resolverID uuid.UUID, partialAmount *int64) error {
	note = strings.TrimSpace(note)
	if note == "" {
		return apperror.New(apperror.ErrCodeValidation, "комментарий к решению обязателен")
	}
	if outcome == valueobject.DisputeOutcomePartial && partialAmount == nil {
		return apperror.New(apperror.ErrCodeValidation, "для частичной выплаты нужна сумма")
	}
	if d.Status.IsTerminal() {
		return apperror.Newf(apperror.ErrCodeIllegalTransition, "спор уже в статусе %s", d.Status)
	}

	d.Outcome = outcome
	d.ResolutionNote = &note
	d.ResolverID = &resolverID
	if outcome == valueobject.DisputeOutcomePartial {
		amount := *partialAmount
		d.PartialAmount = &amount
	}
	return d.move(valueobject.DisputeStatusResolved)
}

func (d *Dispute) IsActive() bool {
	return !d.Status.IsTerminal()
}

func (d *Dispute) Clone() *Dispute {
	c := *d
	return &c
}

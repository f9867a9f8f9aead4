package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

type Job struct {
	ID                    uuid.UUID
	ClientID              uuid.UUID
	Title                 string
	Description           string
	Budget                valueobject.Money
	Deadline              *time.Time
	Status                valueobject.JobStatus
	StatusBeforeDispute   *valueobject.JobStatus
	AssignedWorkerID      *uuid.UUID
	AcceptedApplicationID *uuid.UUID
	AgreedAmount          *valueobject.Money
	RevisionCount         int
	LastRevisionReason    *string
	CancelReason          *string
	Version               int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
	CompletedAt           *time.Time
	CancelledAt           *time.Time
}

func NewJob(clientID uuid.UUID, title, description string, budget valueobject.Money, deadline *time.Time) (*Job, error) {
	if strings.TrimSpace(title) == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "название заказа обязательно")
	}
	if budget.Amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "бюджет заказа должен быть положительным")
	}

	now := time.Now().UTC()
	if deadline != nil && deadline.Before(now) {
		return nil, apperror.New(apperror.ErrCodeValidation, "дедлайн не может быть в прошлом")
	}

	return &Job{
		ID:          uuid.New(),
		ClientID:    clientID,
		Title:       strings.TrimSpace(title),
		Description: description,
		Budget:      budget,
		Deadline:    deadline,
		Status:      valueobject.JobStatusPosted,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (j *Job) transition(to valueobject.JobStatus, message string) error {
	if !j.Status.CanTransitionTo(to) {
		return apperror.Newf(apperror.ErrCodeIllegalTransition, "%s (текущий статус: %s)", message, j.Status)
	}
	j.Status = to
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// Assign закрепляет за заказом исполнителя по принятому отклику.
func (j *Job) Assign(app *Application) error {
	if j.AssignedWorkerID != nil {
		return apperror.New(apperror.ErrCodeAlreadyAssigned, "исполнитель по заказу уже выбран")
	}
	if err := j.transition(valueobject.JobStatusAssigned, "невозможно назначить исполнителя"); err != nil {
		return err
	}
	workerID, appID, amount := app.WorkerID, app.ID, app.ProposedBudget
	j.AssignedWorkerID = &workerID
	j.AcceptedApplicationID = &appID
	j.AgreedAmount = &amount
	return nil
}

func (j *Job) StartWork() error {
	return j.transition(valueobject.JobStatusInProgress, "невозможно начать работу")
}

// SubmitForReview переводит заказ на приёмку. Из assigned заказ неявно проходит через in_progress.
func (j *Job) SubmitForReview() error {
	if j.Status == valueobject.JobStatusAssigned {
		if err := j.StartWork(); err != nil {
			return err
		}
	}
	return j.transition(valueobject.JobStatusAwaitingCompletion, "невозможно сдать работу")
}

func (j *Job) RequestRevision(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperror.New(apperror.ErrCodeValidation, "причина доработки обязательна")
	}
	if err := j.transition(valueobject.JobStatusRevisionRequested, "невозможно запросить доработку"); err != nil {
		return err
	}
	j.RevisionCount++
	j.LastRevisionReason = &reason
	return nil
}

func (j *Job) Resubmit() error {
	if j.Status != valueobject.JobStatusRevisionRequested {
		return apperror.Newf(apperror.ErrCodeIllegalTransition, "доработка не запрашивалась (текущий статус: %s)", j.Status)
	}
	return j.transition(valueobject.JobStatusInProgress, "невозможно вернуть заказ в работу")
}

// Complete вызывается только после проведения платежа.
func (j *Job) Complete() error {
	if err := j.transition(valueobject.JobStatusCompleted, "невозможно завершить заказ"); err != nil {
		return err
	}
	now := j.UpdatedAt
	j.CompletedAt = &now
	j.StatusBeforeDispute = nil
	return nil
}

func (j *Job) Cancel(reason string) error {
	if err := j.transition(valueobject.JobStatusCancelled, "невозможно отменить заказ"); err != nil {
		return err
	}
	now := j.UpdatedAt
	j.CancelledAt = &now
	j.StatusBeforeDispute = nil
	if reason = strings.TrimSpace(reason); reason != "" {
		j.CancelReason = &reason
	}
	return nil
}

// MarkDisputed замораживает заказ на время спора. Завершённый заказ статус не меняет.
func (j *Job) MarkDisputed() error {
	if !j.Status.CanBeDisputed() {
		return apperror.Newf(apperror.ErrCodeIllegalTransition, "по заказу в статусе %s нельзя открыть спор", j.Status)
	}
	if j.Status == valueobject.JobStatusCompleted {
		return nil
	}
	prev := j.Status
	if err := j.transition(valueobject.JobStatusDisputed, "невозможно открыть спор"); err != nil {
		return err
	}
	j.StatusBeforeDispute = &prev
	return nil
}

// RestoreAfterDispute возвращает заказ в статус, который был до спора.
func (j *Job) RestoreAfterDispute() {
	if j.Status != valueobject.JobStatusDisputed || j.StatusBeforeDispute == nil {
		return
	}
	j.Status = *j.StatusBeforeDispute
	j.StatusBeforeDispute = nil
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) IsOwnedBy(userID uuid.UUID) bool {
	return j.ClientID == userID
}

func (j *Job) IsAssignedTo(userID uuid.UUID) bool {
	return j.AssignedWorkerID != nil && *j.AssignedWorkerID == userID
}

func (j *Job) IsParticipant(userID uuid.UUID) bool {
	return j.IsOwnedBy(userID) || j.IsAssignedTo(userID)
}

// IsOverdue носит информационный характер: просрочка не меняет статус заказа.
func (j *Job) IsOverdue(now time.Time) bool {
	return j.Deadline != nil && !j.Status.IsTerminal() && now.After(*j.Deadline)
}

// Participants возвращает заказчика и, если назначен, исполнителя.
func (j *Job) Participants() []uuid.UUID {
	ids := []uuid.UUID{j.ClientID}
	if j.AssignedWorkerID != nil {
		ids = append(ids, *j.AssignedWorkerID)
	}
	return ids
}

func (j *Job) Clone() *Job {
	c := *j
	return &c
}

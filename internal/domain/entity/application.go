package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

type Application struct {
	ID             uuid.UUID
	JobID          uuid.UUID
	WorkerID       uuid.UUID
	ProposedBudget valueobject.Money
	CoverLetter    string
	Status         valueobject.ApplicationStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DecidedAt      *time.Time
}

func NewApplication(jobID, workerID uuid.UUID, proposedBudget valueobject.Money, coverLetter string) (*Application, error) {
	if proposedBudget.Amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "предложенный бюджет должен быть положительным")
	}

	now := time.Now().UTC()
	return &Application{
		ID:             uuid.New(),
		JobID:          jobID,
		WorkerID:       workerID,
		ProposedBudget: proposedBudget,
		CoverLetter:    coverLetter,
		Status:         valueobject.ApplicationStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (a *Application) Accept() error {
	if a.Status != valueobject.ApplicationStatusPending {
		return apperror.Newf(apperror.ErrCodeIllegalTransition, "можно принять только ожидающий отклик (текущий статус: %s)", a.Status)
	}
	a.decide(valueobject.ApplicationStatusAccepted)
	return nil
}

// Reject отклоняет отклик. Возвращает false, если отклик уже был рассмотрен.
func (a *Application) Reject() bool {
	if a.Status.IsResolved() {
		return false
	}
	a.decide(valueobject.ApplicationStatusRejected)
	return true
}

func (a *Application) decide(status valueobject.ApplicationStatus) {
	now := time.Now().UTC()
	a.Status = status
	a.DecidedAt = &now
	a.UpdatedAt = now
}

func (a *Application) IsOwnedBy(userID uuid.UUID) bool {
	return a.WorkerID == userID
}

func (a *Application) IsPending() bool {
	return a.Status == valueobject.ApplicationStatusPending
}

func (a *Application) IsAccepted() bool {
	return a.Status == valueobject.ApplicationStatusAccepted
}

func (a *Application) Clone() *Application {
	c := *a
	return &c
}

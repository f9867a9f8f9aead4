package valueobject

import "github.com/ignatzorin/job-settlement/internal/pkg/apperror"

type JobStatus string

const (
	JobStatusPosted             JobStatus = "posted"
	JobStatusAssigned           JobStatus = "assigned"
	JobStatusInProgress         JobStatus = "in_progress"
	JobStatusAwaitingCompletion JobStatus = "awaiting_completion"
	JobStatusRevisionRequested  JobStatus = "revision_requested"
	JobStatusCompleted          JobStatus = "completed"
	JobStatusCancelled          JobStatus = "cancelled"
	JobStatusDisputed           JobStatus = "disputed"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPosted:             {JobStatusAssigned, JobStatusCancelled},
	JobStatusAssigned:           {JobStatusInProgress, JobStatusDisputed, JobStatusCancelled},
	JobStatusInProgress:         {JobStatusAwaitingCompletion, JobStatusDisputed, JobStatusCancelled},
	JobStatusAwaitingCompletion: {JobStatusRevisionRequested, JobStatusCompleted, JobStatusDisputed, JobStatusCancelled},
	JobStatusRevisionRequested:  {JobStatusInProgress, JobStatusDisputed, JobStatusCancelled},
	// Из disputed заказ возвращается в статус до спора, это проверяется отдельно.
	JobStatusDisputed:  {JobStatusCompleted, JobStatusCancelled},
	JobStatusCompleted: {},
	JobStatusCancelled: {},
}

func (s JobStatus) IsValid() bool {
	_, ok := jobTransitions[s]
	return ok
}

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled
}

func (s JobStatus) CanTransitionTo(newStatus JobStatus) bool {
	return allowed(jobTransitions, s, newStatus)
}

// CanBeDisputed сообщает, можно ли открыть спор по заказу в этом статусе.
func (s JobStatus) CanBeDisputed() bool {
	switch s {
	case JobStatusAssigned, JobStatusInProgress, JobStatusAwaitingCompletion,
		JobStatusRevisionRequested, JobStatusCompleted:
		return true
	}
	return false
}

func NewJobStatus(status string) (JobStatus, error) {
	s := JobStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус заказа")
	}
	return s, nil
}

type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusAccepted ApplicationStatus = "accepted"
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

func (s ApplicationStatus) IsValid() bool {
	switch s {
	case ApplicationStatusPending, ApplicationStatusAccepted, ApplicationStatusRejected:
		return true
	}
	return false
}

func (s ApplicationStatus) IsResolved() bool {
	return s == ApplicationStatusAccepted || s == ApplicationStatusRejected
}

func NewApplicationStatus(status string) (ApplicationStatus, error) {
	s := ApplicationStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус отклика")
	}
	return s, nil
}

type PaymentStatus string

const (
	PaymentStatusPending      PaymentStatus = "pending"
	PaymentStatusManualReview PaymentStatus = "manual_review"
	PaymentStatusSettled      PaymentStatus = "settled"
	PaymentStatusRefunded     PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:      {PaymentStatusSettled, PaymentStatusManualReview, PaymentStatusRefunded},
	PaymentStatusManualReview: {PaymentStatusSettled, PaymentStatusRefunded},
	// Возврат уже проведённого платежа возможен только решением по спору.
	PaymentStatusSettled:  {PaymentStatusRefunded},
	PaymentStatusRefunded: {},
}

func (s PaymentStatus) IsValid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSettled || s == PaymentStatusRefunded
}

func (s PaymentStatus) CanTransitionTo(newStatus PaymentStatus) bool {
	return allowed(paymentTransitions, s, newStatus)
}

func NewPaymentStatus(status string) (PaymentStatus, error) {
	s := PaymentStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус платежа")
	}
	return s, nil
}

type SettlementMethod string

const (
	SettlementMethodGateway     SettlementMethod = "gateway"
	SettlementMethodManualProof SettlementMethod = "manual_proof"
)

func (m SettlementMethod) IsValid() bool {
	return m == SettlementMethodGateway || m == SettlementMethodManualProof
}

type DisputeStatus string

const (
	DisputeStatusOpen          DisputeStatus = "open"
	DisputeStatusInvestigating DisputeStatus = "investigating"
	DisputeStatusResolved      DisputeStatus = "resolved"
	DisputeStatusClosed        DisputeStatus = "closed"
)

var disputeTransitions = map[DisputeStatus][]DisputeStatus{
	DisputeStatusOpen:          {DisputeStatusInvestigating, DisputeStatusResolved, DisputeStatusClosed},
	DisputeStatusInvestigating: {DisputeStatusResolved, DisputeStatusClosed},
	DisputeStatusResolved:      {DisputeStatusClosed},
	DisputeStatusClosed:        {},
}

func (s DisputeStatus) IsValid() bool {
	_, ok := disputeTransitions[s]
	return ok
}

// IsTerminal: после resolved спор больше не удерживает платёж.
func (s DisputeStatus) IsTerminal() bool {
	return s == DisputeStatusResolved || s == DisputeStatusClosed
}

func (s DisputeStatus) CanTransitionTo(newStatus DisputeStatus) bool {
	return allowed(disputeTransitions, s, newStatus)
}

func NewDisputeStatus(status string) (DisputeStatus, error) {
	s := DisputeStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус спора")
	}
	return s, nil
}

type DisputeOutcome string

const (
	DisputeOutcomeNone    DisputeOutcome = "none"
	DisputeOutcomeRefund  DisputeOutcome = "refund"
	DisputeOutcomeRelease DisputeOutcome = "release"
	DisputeOutcomePartial DisputeOutcome = "partial"
)

func (o DisputeOutcome) IsValid() bool {
	switch o {
	case DisputeOutcomeNone, DisputeOutcomeRefund, DisputeOutcomeRelease, DisputeOutcomePartial:
		return true
	}
	return false
}

// NewResolutionOutcome принимает только исходы, которыми можно разрешить спор.
func NewResolutionOutcome(outcome string) (DisputeOutcome, error) {
	o := DisputeOutcome(outcome)
	switch o {
	case DisputeOutcomeRefund, DisputeOutcomeRelease, DisputeOutcomePartial:
		return o, nil
	case "":
		return "", apperror.New(apperror.ErrCodeValidation, "решение по спору обязательно")
	}
	return "", apperror.New(apperror.ErrCodeValidation, "некорректное решение по спору")
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

func allowed[S comparable](table map[S][]S, from, to S) bool {
	next, ok := table[from]
	if !ok {
		return false
	}
	for _, status := range next {
		if status == to {
			return true
		}
	}
	return false
}

package persistence

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
)

// Строки таблиц. Доменные сущности не знают о тегах db.

type jobRow struct {
	ID                    uuid.UUID  `db:"id"`
	ClientID              uuid.UUID  `db:"client_id"`
	Title                 string     `db:"title"`
	Description           string     `db:"description"`
	BudgetAmount          int64      `db:"budget_amount"`
	Currency              string     `db:"currency"`
	Deadline              *time.Time `db:"deadline"`
	Status                string     `db:"status"`
	StatusBeforeDispute   *string    `db:"status_before_dispute"`
	AssignedWorkerID      *uuid.UUID `db:"assigned_worker_id"`
	AcceptedApplicationID *uuid.UUID `db:"accepted_application_id"`
	AgreedAmount          *int64     `db:"agreed_amount"`
	RevisionCount         int        `db:"revision_count"`
	LastRevisionReason    *string    `db:"last_revision_reason"`
	CancelReason          *string    `db:"cancel_reason"`
	Version               int64      `db:"version"`
	CreatedAt             time.Time  `db:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at"`
	CompletedAt           *time.Time `db:"completed_at"`
	CancelledAt           *time.Time `db:"cancelled_at"`
}

const jobColumns = `id, client_id, title, description, budget_amount, currency, deadline, status,
	status_before_dispute, assigned_worker_id, accepted_application_id, agreed_amount, revision_count,
	last_revision_reason, cancel_reason, version, created_at, updated_at, completed_at, cancelled_at`

func newJobRow(j *entity.Job) jobRow {
	row := jobRow{
		ID:                    j.ID,
		ClientID:              j.ClientID,
		Title:                 j.Title,
		Description:           j.Description,
		BudgetAmount:          j.Budget.Amount,
		Currency:              j.Budget.Currency,
		Deadline:              j.Deadline,
		Status:                string(j.Status),
		AssignedWorkerID:      j.AssignedWorkerID,
		AcceptedApplicationID: j.AcceptedApplicationID,
		RevisionCount:         j.RevisionCount,
		LastRevisionReason:    j.LastRevisionReason,
		CancelReason:          j.CancelReason,
		Version:               j.Version,
		CreatedAt:             j.CreatedAt,
		UpdatedAt:             j.UpdatedAt,
		CompletedAt:           j.CompletedAt,
		CancelledAt:           j.CancelledAt,
	}
	if j.StatusBeforeDispute != nil {
		s := string(*j.StatusBeforeDispute)
		row.StatusBeforeDispute = &s
	}
	if j.AgreedAmount != nil {
		amount := j.AgreedAmount.Amount
		row.AgreedAmount = &amount
	}
	return row
}

func (r jobRow) entity() *entity.Job {
	j := &entity.Job{
		ID:                    r.ID,
		ClientID:              r.ClientID,
		Title:                 r.Title,
		Description:           r.Description,
		Budget:                valueobject.Money{Amount: r.BudgetAmount, Currency: r.Currency},
		Deadline:              utcPtr(r.Deadline),
		Status:                valueobject.JobStatus(r.Status),
		AssignedWorkerID:      r.AssignedWorkerID,
		AcceptedApplicationID: r.AcceptedApplicationID,
		RevisionCount:         r.RevisionCount,
		LastRevisionReason:    r.LastRevisionReason,
		CancelReason:          r.CancelReason,
		Version:               r.Version,
		CreatedAt:             r.CreatedAt.UTC(),
		UpdatedAt:             r.UpdatedAt.UTC(),
		CompletedAt:           utcPtr(r.CompletedAt),
		CancelledAt:           utcPtr(r.CancelledAt),
	}
	if r.StatusBeforeDispute != nil {
		s := valueobject.JobStatus(*r.StatusBeforeDispute)
		j.StatusBeforeDispute = &s
	}
	if r.AgreedAmount != nil {
		j.AgreedAmount = &valueobject.Money{Amount: *r.AgreedAmount, Currency: r.Currency}
	}
	return j
}

type applicationRow struct {
	ID             uuid.UUID  `db:"id"`
	JobID          uuid.UUID  `db:"job_id"`
	WorkerID       uuid.UUID  `db:"worker_id"`
	ProposedAmount int64      `db:"proposed_amount"`
	Currency       string     `db:"currency"`
	CoverLetter    string     `db:"cover_letter"`
	Status         string     `db:"status"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
	DecidedAt      *time.Time `db:"decided_at"`
}

const applicationColumns = `id, job_id, worker_id, proposed_amount, currency, cover_letter, status, created_at, updated_at, decided_at`

func newApplicationRow(a *entity.Application) applicationRow {
	return applicationRow{
		ID:             a.ID,
		JobID:          a.JobID,
		WorkerID:       a.WorkerID,
		ProposedAmount: a.ProposedBudget.Amount,
		Currency:       a.ProposedBudget.Currency,
		CoverLetter:    a.CoverLetter,
		Status:         string(a.Status),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
		DecidedAt:      a.DecidedAt,
	}
}

func (r applicationRow) entity() *entity.Application {
	return &entity.Application{
		ID:             r.ID,
		JobID:          r.JobID,
		WorkerID:       r.WorkerID,
		ProposedBudget: valueobject.Money{Amount: r.ProposedAmount, Currency: r.Currency},
		CoverLetter:    r.CoverLetter,
		Status:         valueobject.ApplicationStatus(r.Status),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
		DecidedAt:      utcPtr(r.DecidedAt),
	}
}

type paymentRow struct {
	ID               uuid.UUID  `db:"id"`
	JobID            uuid.UUID  `db:"job_id"`
	PayerID          uuid.UUID  `db:"payer_id"`
	PayeeID          uuid.UUID  `db:"payee_id"`
	Amount           int64      `db:"amount"`
	OriginalAmount   *int64     `db:"original_amount"`
	Currency         string     `db:"currency"`
	Status           string     `db:"status"`
	Method           string     `db:"method"`
	ProofRef         *string    `db:"proof_ref"`
	ProofAttempts    int        `db:"proof_attempts"`
	ProofRejections  int        `db:"proof_rejections"`
	ReviewNote       *string    `db:"review_note"`
	GatewayReference *string    `db:"gateway_reference"`
	FailureReason    *string    `db:"failure_reason"`
	Held             bool       `db:"held"`
	HeldByDisputeID  *uuid.UUID `db:"held_by_dispute_id"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
	SettledAt        *time.Time `db:"settled_at"`
	RefundedAt       *time.Time `db:"refunded_at"`
}

const paymentColumns = `id, job_id, payer_id, payee_id, amount, original_amount, currency, status, method,
	proof_ref, proof_attempts, proof_rejections, review_note, gateway_reference, failure_reason,
	held, held_by_dispute_id, created_at, updated_at, settled_at, refunded_at`

func newPaymentRow(p *entity.Payment) paymentRow {
	return paymentRow{
		ID:               p.ID,
		JobID:            p.JobID,
		PayerID:          p.PayerID,
		PayeeID:          p.PayeeID,
		Amount:           p.Amount.Amount,
		OriginalAmount:   p.OriginalAmount,
		Currency:         p.Amount.Currency,
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

func (r paymentRow) entity() *entity.Payment {
	return &entity.Payment{
		ID:               r.ID,
		JobID:            r.JobID,
		PayerID:          r.PayerID,
		PayeeID:          r.PayeeID,
		Amount:           valueobject.Money{Amount: r.Amount, Currency: r.Currency},
		OriginalAmount:   r.OriginalAmount,
		Status:           valueobject.PaymentStatus(r.Status),
		Method:           valueobject.SettlementMethod(r.Method),
		ProofRef:         r.ProofRef,
		ProofAttempts:    r.ProofAttempts,
		ProofRejections:  r.ProofRejections,
		ReviewNote:       r.ReviewNote,
		GatewayReference: r.GatewayReference,
		FailureReason:    r.FailureReason,
		Held:             r.Held,
		HeldByDisputeID:  r.HeldByDisputeID,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
		SettledAt:        utcPtr(r.SettledAt),
		RefundedAt:       utcPtr(r.RefundedAt),
	}
}

type disputeRow struct {
	ID             uuid.UUID  `db:"id"`
	JobID          uuid.UUID  `db:"job_id"`
	InitiatorID    uuid.UUID  `db:"initiator_id"`
	InitiatorRole  string     `db:"initiator_role"`
	Description    string     `db:"description"`
	Status         string     `db:"status"`
	Outcome        string     `db:"outcome"`
	ResolutionNote *string    `db:"resolution_note"`
	PartialAmount  *int64     `db:"partial_amount"`
	ResolverID     *uuid.UUID `db:"resolver_id"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
	ResolvedAt     *time.Time `db:"resolved_at"`
	ClosedAt       *time.Time `db:"closed_at"`
}

const disputeColumns = `id, job_id, initiator_id, initiator_role, description, status, outcome,
	resolution_note, partial_amount, resolver_id, created_at, updated_at, resolved_at, closed_at`

func newDisputeRow(d *entity.Dispute) disputeRow {
	return disputeRow{
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

func (r disputeRow) entity() *entity.Dispute {
	return &entity.Dispute{
		ID:             r.ID,
		JobID:          r.JobID,
		InitiatorID:    r.InitiatorID,
		InitiatorRole:  valueobject.Role(r.InitiatorRole),
		Description:    r.Description,
		Status:         valueobject.DisputeStatus(r.Status),
		Outcome:        valueobject.DisputeOutcome(r.Outcome),
		ResolutionNote: r.ResolutionNote,
		PartialAmount:  r.PartialAmount,
		ResolverID:     r.ResolverID,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
		ResolvedAt:     utcPtr(r.ResolvedAt),
		ClosedAt:       utcPtr(r.ClosedAt),
	}
}

type eventRow struct {
	ID         uuid.UUID `db:"id"`
	JobID      uuid.UUID `db:"job_id"`
	ActorID    uuid.UUID `db:"actor_id"`
	Action     string    `db:"action"`
	FromStatus string    `db:"from_status"`
	ToStatus   string    `db:"to_status"`
	Payload    []byte    `db:"payload"`
	CreatedAt  time.Time `db:"created_at"`
}

const eventColumns = `id, job_id, actor_id, action, from_status, to_status, payload, created_at`

func (r eventRow) entity() (*entity.JobEvent, error) {
	payload, err := decodeMap(r.Payload)
	if err != nil {
		return nil, err
	}
	return &entity.JobEvent{
		ID:         r.ID,
		JobID:      r.JobID,
		ActorID:    r.ActorID,
		Action:     r.Action,
		FromStatus: valueobject.JobStatus(r.FromStatus),
		ToStatus:   valueobject.JobStatus(r.ToStatus),
		Payload:    payload,
		CreatedAt:  r.CreatedAt.UTC(),
	}, nil
}

type ratingRow struct {
	ID        uuid.UUID `db:"id"`
	JobID     uuid.UUID `db:"job_id"`
	RaterID   uuid.UUID `db:"rater_id"`
	RateeID   uuid.UUID `db:"ratee_id"`
	Score     int       `db:"score"`
	Comment   string    `db:"comment"`
	CreatedAt time.Time `db:"created_at"`
}

type notificationRow struct {
	ID          uuid.UUID `db:"id"`
	RecipientID uuid.UUID `db:"recipient_id"`
	Event       string    `db:"event"`
	Title       string    `db:"title"`
	Message     string    `db:"message"`
	Priority    string    `db:"priority"`
	Metadata    []byte    `db:"metadata"`
	IsRead      bool      `db:"is_read"`
	CreatedAt   time.Time `db:"created_at"`
}

const notificationColumns = `id, recipient_id, event, title, message, priority, metadata, is_read, created_at`

func (r notificationRow) entity() (*entity.Notification, error) {
	metadata, err := decodeMap(r.Metadata)
	if err != nil {
		return nil, err
	}
	return &entity.Notification{
		ID:          r.ID,
		RecipientID: r.RecipientID,
		Event:       r.Event,
		Title:       r.Title,
		Message:     r.Message,
		Priority:    valueobject.Priority(r.Priority),
		Metadata:    metadata,
		IsRead:      r.IsRead,
		CreatedAt:   r.CreatedAt.UTC(),
	}, nil
}

func encodeMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeMap(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

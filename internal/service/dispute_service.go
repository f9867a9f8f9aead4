package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/notify"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

// DisputeService - единственный источник данных о спорах.
type DisputeService struct {
	core
}

func NewDisputeService(store repository.Store, notifier repository.Notifier) *DisputeService {
	return &DisputeService{core: newCore(store, notifier, "disputes")}
}

// Open открывает спор по заказу. Незавершённый платёж замораживается.
func (s *DisputeService) Open(ctx context.Context, actor valueobject.Actor, jobID uuid.UUID, description string) (*entity.Dispute, error) {
	var dispute *entity.Dispute
	err := s.withinJob(ctx, jobID, func(ctx context.Context, tx repository.Tx, batch *notify.Batch) error {
		job, err := tx.Jobs().FindByID(ctx, jobID)
		if err != nil {
			return err
		}
		if !job.IsParticipant(actor.ID) && !actor.Is(valueobject.RoleHRAdmin) {
			return apperror.New(apperror.ErrCodeForbidden, "открыть спор могут только участники заказа или HR-администратор")
		}

		dispute, err = s.openTx(ctx, tx, batch, job, actor, description)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

// openTx открывает спор внутри уже захваченной блокировки заказа.
// Используется и при автоматической эскалации по лимитам.
func (c core) openTx(ctx context.Context, tx repository.Tx, batch *notify.Batch, job *entity.Job, actor valueobject.Actor, description string) (*entity.Dispute, error) {
	active, err := tx.Disputes().FindActiveByJobID(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, apperror.New(apperror.ErrCodeConflict, "по заказу уже открыт спор")
	}

	dispute, err := entity.NewDispute(job.ID, actor, description)
	if err != nil {
		return nil, err
	}

	from := job.Status
	if err := job.MarkDisputed(); err != nil {
		return nil, err
	}
	if err := tx.Disputes().Create(ctx, dispute); err != nil {
		return nil, err
	}
	if job.Status != from {
		if err := tx.Jobs().Update(ctx, job); err != nil {
			return nil, err
		}
	}

	payload := meta("dispute_id", dispute.ID.String())
	payment, err := tx.Payments().FindActiveByJobID(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if payment != nil && payment.Hold(dispute.ID) {
		if err := tx.Payments().Update(ctx, payment); err != nil {
			return nil, err
		}
		payload["held_payment_id"] = payment.ID.String()
	}

	if err := c.record(ctx, tx, job, actor.ID, actionDisputeOpened, from, payload); err != nil {
		return nil, err
	}

	batch.Add(EventDisputeOpened, "Открыт спор", "По заказу «"+job.Title+"» открыт спор: "+dispute.Description,
		valueobject.PriorityHigh, meta("job_id", job.ID.String(), "dispute_id", dispute.ID.String()),
		job.Participants()...)
	return dispute, nil
}

// SetStatus двигает спор только вперёд. Перевод в resolved требует вынесенного решения,
// закрытие без решения снимает заморозку и возвращает заказ в прежний статус.
func (s *DisputeService) SetStatus(ctx context.Context, actor valueobject.Actor, disputeID uuid.UUID, status string) (*entity.Dispute, error) {
	if err := requireRole(actor, valueobject.RoleHRAdmin); err != nil {
		return nil, apperror.New(apperror.ErrCodeForbidden, "статус спора меняет только HR-администратор")
	}
	target, err := valueobject.NewDisputeStatus(status)
	if err != nil {
		return nil, err
	}

	current, err := s.store.Disputes().FindByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	var dispute *entity.Dispute
	err = s.withinJob(ctx, current.JobID, func(ctx context.Context, tx repository.Tx, batch *notify.Batch) error {
		d, err := tx.Disputes().FindByID(ctx, disputeID)
		if err != nil {
			return err
		}
		dispute = d
		job, err := tx.Jobs().FindByID(ctx, dispute.JobID)
		if err != nil {
			return err
		}

		withdrawn := false
		switch target {
		case valueobject.DisputeStatusInvestigating:
			err = dispute.StartInvestigation()
		case valueobject.DisputeStatusResolved:
			err = dispute.MarkResolved()
		case valueobject.DisputeStatusClosed:
			withdrawn = dispute.Outcome == valueobject.DisputeOutcomeNone
			err = dispute.Close()
		default:
			err = apperror.Newf(apperror.ErrCodeIllegalTransition, "спор нельзя вернуть в статус %s", target)
		}
		if err != nil {
			return err
		}
		if err := tx.Disputes().Update(ctx, dispute); err != nil {
			return err
		}

		from := job.Status
		if withdrawn {
			if err := s.releaseHold(ctx, tx, dispute); err != nil {
				return err
			}
			job.RestoreAfterDispute()
			if job.Status != from {
				if err := tx.Jobs().Update(ctx, job); err != nil {
					return err
				}
			}
		}
		if err := s.record(ctx, tx, job, actor.ID, actionDisputeStatus, from,
			meta("dispute_id", dispute.ID.String(), "dispute_status", string(dispute.Status))); err != nil {
			return err
		}

		batch.Add(EventDisputeStatus, "Статус спора изменён", fmt.Sprintf("Спор по заказу «%s» переведён в статус %s", job.Title, dispute.Status),
			valueobject.PriorityNormal, meta("job_id", job.ID.String(), "dispute_id", dispute.ID.String(), "status", string(dispute.Status)),
			job.Participants()...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

func (s *DisputeService) releaseHold(ctx context.Context, tx repository.Tx, dispute *entity.Dispute) error {
	payment, err := tx.Payments().FindActiveByJobID(ctx, dispute.JobID)
	if err != nil || payment == nil {
		return err
	}
	if payment.HeldByDisputeID == nil || *payment.HeldByDisputeID != dispute.ID {
		return nil
	}
	payment.Release()
	return tx.Payments().Update(ctx, payment)
}

type ResolveDisputeInput struct {
	Outcome       string
	Note          string
	PartialAmount *int64
}

// ResolveResult - спор, платёж (если был) и заказ после применения решения.
type ResolveResult struct {
	Dispute *entity.Dispute
	Payment *entity.Payment
	Job     *entity.Job
}

// Resolve выносит решение по спору и применяет его к платежу и заказу.
func (s *DisputeService) Resolve(ctx context.Context, actor valueobject.Actor, disputeID uuid.UUID, input ResolveDisputeInput) (*ResolveResult, error) {
	if err := requireRole(actor, valueobject.RoleHRAdmin); err != nil {
		return nil, apperror.New(apperror.ErrCodeForbidden, "решение по спору выносит только HR-администратор")
	}
	outcome, err := valueobject.NewResolutionOutcome(input.Outcome)
	if err != nil {
		return nil, err
	}

	current, err := s.store.Disputes().FindByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	var result ResolveResult
	err = s.withinJob(ctx, current.JobID, func(ctx context.Context, tx repository.Tx, batch *notify.Batch) error {
		result = ResolveResult{}

		dispute, err := tx.Disputes().FindByID(ctx, disputeID)
		if err != nil {
			return err
		}
		if err := dispute.Resolve(outcome, input.Note, actor.ID, input.PartialAmount); err != nil {
			return err
		}

		job, err := tx.Jobs().FindByID(ctx, dispute.JobID)
		if err != nil {
			return err
		}
		payment, err := settlementTarget(ctx, tx, dispute.JobID)
		if err != nil {
			return err
		}

		from := job.Status
		if err := applyOutcome(dispute, job, payment); err != nil {
			return err
		}

		if err := tx.Disputes().Update(ctx, dispute); err != nil {
			return err
		}
		if payment != nil {
			if err := tx.Payments().Update(ctx, payment); err != nil {
				return err
			}
		}
		if job.Status != from {
			if err := tx.Jobs().Update(ctx, job); err != nil {
				return err
			}
		}

		payload := meta("dispute_id", dispute.ID.String(), "outcome", string(dispute.Outcome))
		if payment != nil {
			payload["payment_id"] = payment.ID.String()
			payload["payment_status"] = string(payment.Status)
			payload["amount"] = strconv.FormatInt(payment.Amount.Amount, 10)
		}
		if err := s.record(ctx, tx, job, actor.ID, actionDisputeResolved, from, payload); err != nil {
			return err
		}

		batch.Add(EventDisputeResolved, "Спор разрешён", resolutionMessage(job, dispute, payment),
			valueobject.PriorityHigh, payload, job.Participants()...)

		result = ResolveResult{Dispute: dispute, Payment: payment, Job: job}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"dispute_id": disputeID,
		"job_id":     result.Job.ID,
		"outcome":    outcome,
	}).Info("спор разрешён")
	return &result, nil
}

// settlementTarget - незавершённый платёж, а если его нет, последний проведённый.
// Возвращённый платёж решением спора не меняется.
func settlementTarget(ctx context.Context, tx repository.Tx, jobID uuid.UUID) (*entity.Payment, error) {
	payment, err := tx.Payments().FindActiveByJobID(ctx, jobID)
	if err != nil || payment != nil {
		return payment, err
	}
	latest, err := tx.Payments().FindLatestByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if latest != nil && latest.IsSettled() {
		return latest, nil
	}
	return nil, nil
}

func applyOutcome(dispute *entity.Dispute, job *entity.Job, payment *entity.Payment) error {
	disputed := job.Status == valueobject.JobStatusDisputed

	switch dispute.Outcome {
	case valueobject.DisputeOutcomeRefund:
		if payment != nil {
			if err := payment.RefundByResolution(); err != nil {
				return err
			}
		}
		if disputed {
			return job.Cancel("возврат средств по решению спора")
		}
	case valueobject.DisputeOutcomeRelease:
		if payment == nil {
			job.RestoreAfterDispute()
			return nil
		}
		if err := payment.ReleaseByResolution(); err != nil {
			return err
		}
		if disputed {
			return job.Complete()
		}
	case valueobject.DisputeOutcomePartial:
		if payment == nil {
			job.RestoreAfterDispute()
			return nil
		}
		if err := payment.SettlePartially(*dispute.PartialAmount); err != nil {
			return err
		}
		if disputed {
			return job.Complete()
		}
	}
	return nil
}

func resolutionMessage(job *entity.Job, dispute *entity.Dispute, payment *entity.Payment) string {
	msg := fmt.Sprintf("Спор по заказу «%s» разрешён: %s", job.Title, dispute.Outcome)
	if payment != nil {
		msg += fmt.Sprintf(", платёж %s (%s)", payment.Status, payment.Amount)
	}
	if dispute.ResolutionNote != nil {
		msg += ". " + *dispute.ResolutionNote
	}
	return msg
}

// Get доступен участникам заказа и администраторам.
func (s *DisputeService) Get(ctx context.Context, actor valueobject.Actor, disputeID uuid.UUID) (*entity.Dispute, error) {
	dispute, err := s.store.Disputes().FindByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	job, err := s.store.Jobs().FindByID(ctx, dispute.JobID)
	if err != nil {
		return nil, err
	}
	if !canViewJob(actor, job) {
		return nil, apperror.ErrForbidden
	}
	return dispute, nil
}

func (s *DisputeService) ListByJob(ctx context.Context, actor valueobject.Actor, jobID uuid.UUID) ([]*entity.Dispute, error) {
	job, err := s.store.Jobs().FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !canViewJob(actor, job) {
		return nil, apperror.ErrForbidden
	}
	return s.store.Disputes().FindByJobID(ctx, jobID)
}

// List - очередь споров для администраторов.
func (s *DisputeService) List(ctx context.Context, actor valueobject.Actor, status string, limit, offset int) ([]*entity.Dispute, error) {
	if !actor.Role.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	if status != "" {
		if _, err := valueobject.NewDisputeStatus(status); err != nil {
			return nil, err
		}
	}
	limit, offset = normalizePage(limit, offset)
	return s.store.Disputes().List(ctx, repository.DisputeFilter{Status: status, Limit: limit, Offset: offset})
}

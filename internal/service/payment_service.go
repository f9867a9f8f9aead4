package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/notify"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

const (
	ProofDecisionAccept = "accept"
	ProofDecisionReject = "reject"
)

// PaymentService ведёт расчёт по заказу: автоматическое списание через шлюз
// с переходом на ручную проверку подтверждения оплаты.
type PaymentService struct {
	core
	gateway        repository.PaymentGateway
	gatewayTimeout time.Duration
	policy         Policy
}

func NewPaymentService(store repository.Store, notifier repository.Notifier, gateway repository.PaymentGateway, gatewayTimeout time.Duration, policy Policy) *PaymentService {
	if gatewayTimeout <= 0 {
		gatewayTimeout = 10 * time.Second
	}
	return &PaymentService{
		core:           newCore(store, notifier, "payments"),
		gateway:        gateway,
		gatewayTimeout: gatewayTimeout,
		policy:         policy,
	}
}

type InitiatePaymentInput struct {
	// Amount в минимальных единицах валюты заказа. Ноль означает согласованную сумму.
	Amount int64
	// PayeeID необязателен и должен совпадать с назначенным исполнителем.
	PayeeID *uuid.UUID
}

// Initiate создаёт платёж в статусе pending для заказа, сданного на приёмку.
func (s *PaymentService) Initiate(ctx context.Context, actor valueobject.Actor, jobID uuid.UUID, input InitiatePaymentInput) (*entity.Payment, error) {
	var payment *entity.Payment
	err := s.withinJob(ctx, jobID, func(ctx context.Context, tx repository.Tx, batch *notify.Batch) error {
		job, err := jobForOwner(ctx, tx, jobID, actor)
		if err != nil {
			return err
		}
		if job.Status != valueobject.JobStatusAwaitingCompletion {
			return apperror.Newf(apperror.ErrCodeIllegalTransition, "оплата возможна только после сдачи работы (текущий статус: %s)", job.Status)
		}
		payee := *job.AssignedWorkerID
		if input.PayeeID != nil && *input.PayeeID != payee {
			return apperror.New(apperror.ErrCodeValidation, "получатель платежа должен быть исполнителем заказа")
		}

		active, err := tx.Payments().FindActiveByJobID(ctx, jobID)
		if err != nil {
			return err
		}
		if active != nil {
			return apperror.New(apperror.ErrCodeDuplicatePayment, "по заказу уже есть незавершённый платёж")
		}

		amount := job.Budget
		if job.AgreedAmount != nil {
			amount = *job.AgreedAmount
		}
		if input.Amount != 0 {
			amount, err = valueobject.NewPositiveMoney(input.Amount, amount.Currency)
			if err != nil {
				return err
			}
		}

		payment, err = entity.NewPayment(jobID, job.ClientID, payee, amount)
		if err != nil {
			return err
		}
		if err := tx.Payments().Create(ctx, payment); err != nil {
			return err
		}
		if err := s.record(ctx, tx, job, actor.ID, actionPaymentInitiated, job.Status,
			meta("payment_id", payment.ID.String(), "amount", payment.Amount.String())); err != nil {
			return err
		}

		batch.Add(EventPaymentInitiated, "Оплата инициирована", fmt.Sprintf("Заказчик инициировал оплату %s по заказу «%s»", payment.Amount, job.Title),
			valueobject.PriorityNormal, meta("job_id", jobID.String(), "payment_id", payment.ID.String()), payee)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// AttemptGatewaySettlement списывает средства через шлюз. Уже проведённый платёж
// возвращается без изменений. Ошибка или недоступность шлюза переводят платёж
// на ручную проверку и не считаются ошибкой для вызывающего.
func (s *PaymentService) AttemptGatewaySettlement(ctx context.Context, actor valueobject.Actor, paymentID uuid.UUID) (*entity.Payment, error) {
	current, err := s.store.Payments().FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	var payment *entity.Payment
	err = s.withinJob(ctx, current.JobID, func(ctx context.Context, tx repository.Tx, batch *notify.Batch) error {
		var err error
		payment, err = tx.Payments().FindByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.PayerID != actor.ID && !actor.Is(valueobject.RoleFinanceAdmin) {
			return apperror.New(apperror.ErrCodeForbidden, "провести платёж может только плательщик или финансовый администратор")
		}
		if payment.IsSettled() {
			return nil
		}
		if payment.Held {
			return apperror.New(apperror.ErrCodeIllegalTransition, "платёж заморожен до разрешения спора")
		}
		if payment.Status != valueobject.PaymentStatusPending {
			return apperror.Newf(apperror.ErrCodeIllegalTransition, "автоматическое проведение возможно только для ожидающего платежа (текущий статус: %s)", payment.Status)
		}

		job, err := tx.Jobs().FindByID(ctx, payment.JobID)
		if err != nil {
			return err
		}
		if err := ensureAwaitingCompletion(job); err != nil {
			return err
		}

		gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
		result, chargeErr := s.gateway.Charge(gctx, repository.ChargeRequest{
			IdempotencyKey: payment.ID.String(),
			Amount:         payment.Amount,
			PayerID:        payment.PayerID,
			PayeeID:        payment.PayeeID,
		})
		cancel()

		if chargeErr != nil {
			return s.fallBackToManual(ctx, tx, batch, job, payment, actor, chargeErr)
		}

		if err := payment.SettleByGateway(result.Reference); err != nil {
			return err
		}
		return s.completeJob(ctx, tx, batch, job, payment, actor, meta("gateway_reference", result.Reference))
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *PaymentService) fallBackToManual(ctx context.Context, tx repository.Tx, batch *notify.Batch, job *entity.Job, payment *entity.Payment, actor valueobject.Actor, cause error) error {
	reason := cause.Error()
	var declined *repository.GatewayDeclinedError
	if errors.As(cause, &declined) {
		reason = declined.Reason
	}

	s.log.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"job_id":     payment.JobID,
		"error":      cause.Error(),
	}).Warn("платёжный шлюз не провёл оплату, платёж переведён на ручную проверку")

	if err := payment.FallBackToManualReview(reason); err != nil {
		return err
	}
	if err := tx.Payments().Update(ctx, payment); err != nil {
		return err
	}
	if err := s.record(ctx, tx, job, actor.ID, actionPaymentManual, job.Status,
		meta("payment_id", payment.ID.String(), "reason", reason)); err != nil {
		return err
	}

	batch.Add(EventPaymentManualReview, "Нужно подтверждение оплаты",
		fmt.Sprintf("Автоматическая оплата заказа «%s» не прошла. Загрузите подтверждение перевода %s", job.Title, payment.Amount),
		valueobject.PriorityHigh, meta("job_id", job.ID.String(), "payment_id", payment.ID.String()), payment.PayerID)
	return nil
}

// ensureAwaitingCompletion не даёт провести платёж, если заказ уже не на приёмке.
func ensureAwaitingCompletion(job *entity.Job) error {
	if job.Status != valueobject.JobStatusAwaitingCompletion {
		return apperror.Newf(apperror.ErrCodeIllegalTransition, "платёж можно провести только по заказу на приёмке (текущий статус: %s)", job.Status)
	}
	return nil
}

// completeJob сохраняет проведённый платёж и завершает заказ.
func (s *PaymentService) completeJob(ctx context.Context, tx repository.Tx, batch *notify.Batch, job *entity.Job, payment *entity.Payment, actor valueobject.Actor, payload map[string]string) error {
	from := job.Status
	if err := job.Complete(); err != nil {
		return err
	}
	if err := tx.Payments().Update(ctx, payment); err != nil {
		return err
	}
	if err := tx.Jobs().Update(ctx, job); err != nil {
		return err
	}

	payload["payment_id"] = payment.ID.String()
	payload["method"] = string(payment.Method)
	if err := s.record(ctx, tx, job, actor.ID, actionCompleted, from, payload); err != nil {
		return err
	}

	batch.Add(EventPaymentSettled, "Оплата проведена", fmt.Sprintf("Оплата %s по заказу «%s» проведена", payment.Amount, job.Title),
		valueobject.PriorityHigh, meta("job_id", job.ID.String(), "payment_id", payment.ID.String()), payment.PayeeID, payment.PayerID)
	batch.Add(EventJobCompleted, "Заказ завершён", "Заказ «"+job.Title+"» завершён. Оцените работу участника",
		valueobject.PriorityNormal, meta("job_id", job.ID.String()), job.Participants()...)
	return nil
}

// CheckProofUpload проверяет до записи файла, что подтверждение можно приложить:
// загружает плательщик, платёж на ручной проверке и не заморожен.
func (s *PaymentService) CheckProofUpload(ctx context.Context, actor valueobject.Actor, paymentID uuid.UUID) error {
	payment, err := s.store.Payments().FindByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment.PayerID != actor.ID {
		return apperror.New(apperror.ErrCodeForbidden, "подтверждение загружает только плательщик")
	}
	if payment.Held {
		return apperror.New(apperror.ErrCodeIllegalTransition, "платёж заморожен до разрешения спора")
	}
	if payment.Status != valueobject.PaymentStatusManualReview {
		return apperror.Newf(apperror.ErrCodeIllegalTransition, "подтверждение оплаты принимается только на ручной проверке (текущий статус: %s)", payment.Status)
	}
	return nil
}

// SubmitProof прикладывает подтверждение оплаты. Повторная загрузка до проверки заменяет ссылку.
func (s *PaymentService) SubmitProof(ctx context.Context, actor valueobject.Actor, paymentID uuid.UUID, blobRef string) (*entity.Payment, error) {
	current, err := s.store.Payments().FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	var payment *entity.Payment
	err = s.withinJob(ctx, current.JobID, func(ctx context.Context, tx repository.Tx, batch *notify.Batch) error {
		var err error
		payment, err = tx.Payments().FindByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.PayerID != actor.ID {
			return apperror.New(apperror.ErrCodeForbidden, "подтверждение загружает только плательщик")
		}
		if err := payment.AttachProof(blobRef); err != nil {
			return err
		}
		if err := tx.Payments().Update(ctx, payment); err != nil {
			return err
		}

		job, err := tx.Jobs().FindByID(ctx, payment.JobID)
		if err != nil {
			return err
		}
		if err := s.record(ctx, tx, job, actor.ID, actionProofSubmitted, job.Status,
			meta("payment_id", payment.ID.String(), "attempt", strconv.Itoa(payment.ProofAttempts))); err != nil {
			return err
		}

		batch.Add(EventProofSubmitted, "Загружено подтверждение оплаты", "Заказчик загрузил подтверждение оплаты заказа «"+job.Title+"», ожидается проверка",
			valueobject.PriorityNormal, meta("job_id", job.ID.String(), "payment_id", payment.ID.String()), payment.PayeeID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// VerifyProof - решение финансового администратора по подтверждению оплаты.
func (s *PaymentService) VerifyProof(ctx context.Context, actor valueobject.Actor, paymentID uuid.UUID, decision, note string) (*entity.Payment, error) {
	if err := requireRole(actor, valueobject.RoleFinanceAdmin); err != nil {
		return nil, apperror.New(apperror.ErrCodeForbidden, "подтверждение проверяет только финансовый администратор")
	}
	decision = strings.ToLower(strings.TrimSpace(decision))
	if decision != ProofDecisionAccept && decision != ProofDecisionReject {
		return nil, apperror.New(apperror.ErrCodeValidation, "решение должно быть accept или reject")
	}

	current, err := s.store.Payments().FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	var payment *entity.Payment
	err = s.withinJob(ctx, current.JobID, func(ctx context.Context, tx repository.Tx, batch *notify.Batch) error {
		var err error
		payment, err = tx.Payments().FindByID(ctx, paymentID)
		if err != nil {
			return err
		}
		job, err := tx.Jobs().FindByID(ctx, payment.JobID)
		if err != nil {
			return err
		}

		if decision == ProofDecisionAccept {
			if err := ensureAwaitingCompletion(job); err != nil {
				return err
			}
			if err := payment.AcceptProof(note); err != nil {
				return err
			}
			return s.completeJob(ctx, tx, batch, job, payment, actor, meta("proof_ref", derefString(payment.ProofRef)))
		}

		if err := payment.RejectProof(note); err != nil {
			return err
		}
		if err := tx.Payments().Update(ctx, payment); err != nil {
			return err
		}
		if err := s.record(ctx, tx, job, actor.ID, actionProofRejected, job.Status,
			meta("payment_id", payment.ID.String(), "rejections", strconv.Itoa(payment.ProofRejections), "note", strings.TrimSpace(note))); err != nil {
			return err
		}

		batch.Add(EventProofRejected, "Подтверждение отклонено",
			fmt.Sprintf("Подтверждение оплаты заказа «%s» отклонено: %s. Загрузите новое", job.Title, strings.TrimSpace(note)),
			valueobject.PriorityHigh, meta("job_id", job.ID.String(), "payment_id", payment.ID.String()), payment.PayerID)

		if s.policy.MaxProofRejections > 0 && payment.ProofRejections >= s.policy.MaxProofRejections && s.policy.EscalateOnLimit {
			description := fmt.Sprintf("Подтверждение оплаты отклонено %d раз", payment.ProofRejections)
			if _, err := s.openTx(ctx, tx, batch, job, actor, description); err != nil {
				return err
			}
			// openTx заморозил платёж в своей копии, перечитываем актуальное состояние.
			payment, err = tx.Payments().FindByID(ctx, paymentID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// Get доступен участникам заказа и администраторам.
func (s *PaymentService) Get(ctx context.Context, actor valueobject.Actor, paymentID uuid.UUID) (*entity.Payment, error) {
	payment, err := s.store.Payments().FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.PayerID != actor.ID && payment.PayeeID != actor.ID && !actor.Role.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	return payment, nil
}

func (s *PaymentService) ListByJob(ctx context.Context, actor valueobject.Actor, jobID uuid.UUID) ([]*entity.Payment, error) {
	job, err := s.store.Jobs().FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !canViewJob(actor, job) {
		return nil, apperror.ErrForbidden
	}
	return s.store.Payments().FindByJobID(ctx, jobID)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

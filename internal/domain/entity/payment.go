package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

type Payment struct {
	ID               uuid.UUID
	JobID            uuid.UUID
	PayerID          uuid.UUID
	PayeeID          uuid.UUID
	Amount           valueobject.Money
	OriginalAmount   *int64
	Status           valueobject.PaymentStatus
	Method           valueobject.SettlementMethod
	ProofRef         *string
	ProofAttempts    int
	ProofRejections  int
	ReviewNote       *string
	GatewayReference *string
	FailureReason    *string
	Held             bool
	HeldByDisputeID  *uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
	SettledAt        *time.Time
	RefundedAt       *time.Time
}

func NewPayment(jobID, payerID, payeeID uuid.UUID, amount valueobject.Money) (*Payment, error) {
	if amount.Amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма платежа должна быть положительной")
	}
	if payerID == payeeID {
		return nil, apperror.New(apperror.ErrCodeValidation, "плательщик и получатель не могут совпадать")
	}

	now := time.Now().UTC()
	return &Payment{
		ID:        uuid.New(),
		JobID:     jobID,
		PayerID:   payerID,
		PayeeID:   payeeID,
		Amount:    amount,
		Status:    valueobject.PaymentStatusPending,
		Method:    valueobject.SettlementMethodGateway,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (p *Payment) ensureNotHeld() error {
	if p.Held {
		return apperror.New(apperror.ErrCodeIllegalTransition, "платёж заморожен до разрешения спора")
	}
	return nil
}

func (p *Payment) move(to valueobject.PaymentStatus) error {
	if !p.Status.CanTransitionTo(to) {
		return apperror.Newf(apperror.ErrCodeIllegalTransition, "недопустимый переход платежа %s -> %s", p.Status, to)
	}
	now := time.Now().UTC()
	p.Status = to
	p.UpdatedAt = now
	switch to {
	case valueobject.PaymentStatusSettled:
		p.SettledAt = &now
	case valueobject.PaymentStatusRefunded:
		p.RefundedAt = &now
	}
	return nil
}

// SettleByGateway фиксирует успешное списание через платёжный шлюз.
func (p *Payment) SettleByGateway(reference string) error {
	if err := p.ensureNotHeld(); err != nil {
		return err
	}
	if p.Status != valueobject.PaymentStatusPending {
		return apperror.Newf(apperror.ErrCodeIllegalTransition, "автоматическое проведение возможно только для ожидающего платежа (текущий статус: %s)", p.Status)
	}
	if err := p.move(valueobject.PaymentStatusSettled); err != nil {
		return err
	}
	if reference != "" {
		p.GatewayReference = &reference
	}
	return nil
}

// FallBackToManualReview переводит платёж на ручную проверку после отказа шлюза.
func (p *Payment) FallBackToManualReview(reason string) error {
	if err := p.ensureNotHeld(); err != nil {
		return err
	}
	if err := p.move(valueobject.PaymentStatusManualReview); err != nil {
		return err
	}
	p.Method = valueobject.SettlementMethodManualProof
	if reason != "" {
		p.FailureReason = &reason
	}
	return nil
}

func (p *Payment) AttachProof(ref string) error {
	if err := p.ensureNotHeld(); err != nil {
		return err
	}
	if p.Status != valueobject.PaymentStatusManualReview {
		return apperror.Newf(apperror.ErrCodeIllegalTransition, "подтверждение оплаты принимается только на ручной проверке (текущий статус: %s)", p.Status)
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return apperror.New(apperror.ErrCodeValidation, "ссылка на подтверждение оплаты обязательна")
	}
	p.ProofRef = &ref
	p.ProofAttempts++
	p.ReviewNote = nil
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (p *Payment) ensureProofUnderReview() error {
	if err := p.ensureNotHeld(); err != nil {
		return err
	}
	if p.Status != valueobject.PaymentStatusManualReview {
		return apperror.Newf(apperror.ErrCodeIllegalTransition, "платёж не находится на ручной проверке (текущий статус: %s)", p.Status)
	}
	if p.ProofRef == nil {
		return apperror.New(apperror.ErrCodeIllegalTransition, "подтверждение оплаты ещё не загружено")
	}
	return nil
}

func (p *Payment) AcceptProof(note string) error {
	if err := p.ensureProofUnderReview(); err != nil {
		return err
	}
	if err := p.move(valueobject.PaymentStatusSettled); err != nil {
		return err
	}
	p.setNote(note)
	return nil
}

// RejectProof оставляет платёж на ручной проверке и ждёт новое подтверждение.
func (p *Payment) RejectProof(note string) error {
	if err := p.ensureProofUnderReview(); err != nil {
		return err
	}
	p.ProofRef = nil
	p.ProofRejections++
	p.setNote(note)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (p *Payment) setNote(note string) {
	if note = strings.TrimSpace(note); note != "" {
		p.ReviewNote = &note
	}
}

// Hold замораживает незавершённый платёж на время спора.
func (p *Payment) Hold(disputeID uuid.UUID) bool {
	if p.Status.IsTerminal() {
		return false
	}
	p.Held = true
	p.HeldByDisputeID = &disputeID
	p.UpdatedAt = time.Now().UTC()
	return true
}

func (p *Payment) Release() {
	if !p.Held {
		return
	}
	p.Held = false
	p.HeldByDisputeID = nil
	p.UpdatedAt = time.Now().UTC()
}

// Методы ниже применяют решение по спору и поэтому игнорируют заморозку.

func (p *Payment) RefundByResolution() error {
	p.Release()
	return p.move(valueobject.PaymentStatusRefunded)
}

// ReleaseByResolution проводит платёж. Уже проведённый платёж не меняется.
func (p *Payment) ReleaseByResolution() error {
	p.Release()
	if p.Status == valueobject.PaymentStatusSettled {
		return nil
	}
	return p.move(valueobject.PaymentStatusSettled)
}

func (p *Payment) SettlePartially(amount int64) error {
	if amount <= 0 {
		return apperror.New(apperror.ErrCodeValidation, "сумма частичной выплаты должна быть положительной")
	}
	if amount > p.Amount.Amount {
		return apperror.New(apperror.ErrCodeValidation, "сумма частичной выплаты не может превышать сумму платежа")
	}
	if p.Status == valueobject.PaymentStatusRefunded {
		return apperror.New(apperror.ErrCodeIllegalTransition, "платёж уже возвращён")
	}

	p.Release()
	if p.Status != valueobject.PaymentStatusSettled {
		if err := p.move(valueobject.PaymentStatusSettled); err != nil {
			return err
		}
	}
	original := p.Amount.Amount
	p.OriginalAmount = &original
	p.Amount.Amount = amount
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (p *Payment) IsSettled() bool {
	return p.Status == valueobject.PaymentStatusSettled
}

func (p *Payment) Clone() *Payment {
	c := *p
	return &c
}

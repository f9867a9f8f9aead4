package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
)

// CheckInvariants проверяет те же правила, что и SQL-запросы PostgreSQL-хранилища.
func (s *Store) CheckInvariants(ctx context.Context) ([]repository.InvariantViolation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []repository.InvariantViolation
	add := func(invariant string, jobID uuid.UUID, format string, args ...any) {
		out = append(out, repository.InvariantViolation{
			Invariant: invariant,
			JobID:     jobID,
			Detail:    fmt.Sprintf(format, args...),
		})
	}

	accepted := make(map[uuid.UUID]int)
	for _, a := range s.applications {
		if a.IsAccepted() {
			accepted[a.JobID]++
		}
	}

	activePayments := make(map[uuid.UUID]int)
	settled := make(map[uuid.UUID]bool)
	for _, p := range s.payments {
		if !p.Status.IsTerminal() {
			activePayments[p.JobID]++
		}
		// Возврат по спору после завершения не отменяет факт проведения.
		if p.SettledAt != nil {
			settled[p.JobID] = true
		}
		if p.Held {
			ok := false
			if p.HeldByDisputeID != nil {
				if d, found := s.disputes[*p.HeldByDisputeID]; found && d.IsActive() {
					ok = true
				}
			}
			if !ok {
				add(repository.InvariantHeldHasDispute, p.JobID, "платёж %s заморожен без активного спора", p.ID)
			}
		}
	}

	for id, job := range s.jobs {
		if n := accepted[id]; n > 1 {
			add(repository.InvariantSingleAccepted, id, "принято откликов: %d", n)
		}
		if n := activePayments[id]; n > 1 {
			add(repository.InvariantSingleActivePay, id, "незавершённых платежей: %d", n)
		}
		if job.Status == valueobject.JobStatusCompleted && !settled[id] {
			add(repository.InvariantCompletedSettled, id, "заказ завершён без проведённого платежа")
		}
		// Заказ, отменённый до выбора исполнителя, остаётся без исполнителя.
		hasWorker := job.AssignedWorkerID != nil
		switch job.Status {
		case valueobject.JobStatusPosted:
			if hasWorker {
				add(repository.InvariantAssignment, id, "у опубликованного заказа есть исполнитель")
			}
		case valueobject.JobStatusCancelled:
		default:
			if !hasWorker {
				add(repository.InvariantAssignment, id, "заказ в статусе %s без исполнителя", job.Status)
			}
		}
	}
	return out, nil
}

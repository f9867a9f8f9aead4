package valueobject

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

type Role string

const (
	RoleClient       Role = "client"
	RoleWorker       Role = "worker"
	RoleHRAdmin      Role = "hr_admin"
	RoleFinanceAdmin Role = "finance_admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleClient, RoleWorker, RoleHRAdmin, RoleFinanceAdmin:
		return true
	}
	return false
}

func (r Role) IsAdmin() bool {
	return r == RoleHRAdmin || r == RoleFinanceAdmin
}

func NewRole(role string) (Role, error) {
	r := Role(role)
	if !r.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректная роль")
	}
	return r, nil
}

// Actor - аутентифицированный участник, выполняющий операцию.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func NewActor(id uuid.UUID, role string) (Actor, error) {
	if id == uuid.Nil {
		return Actor{}, apperror.ErrUnauthorized
	}
	r, err := NewRole(role)
	if err != nil {
		return Actor{}, apperror.New(apperror.ErrCodeForbidden, "неизвестная роль пользователя")
	}
	return Actor{ID: id, Role: r}, nil
}

func (a Actor) Is(role Role) bool {
	return a.Role == role
}

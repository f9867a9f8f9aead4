package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/http/handlers/common"
	"github.com/ignatzorin/job-settlement/internal/http/response"
	"github.com/ignatzorin/job-settlement/internal/service"
)

type AdminHandler struct {
	jobs *service.JobService
}

func NewAdminHandler(jobs *service.JobService) *AdminHandler {
	return &AdminHandler{jobs: jobs}
}

// Invariants GET /admin/invariants: пустой список означает согласованное состояние.
func (h *AdminHandler) Invariants(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	violations, err := h.jobs.CheckInvariants(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	if violations == nil {
		violations = []repository.InvariantViolation{}
	}
	response.Success(c, gin.H{
		"consistent": len(violations) == 0,
		"violations": violations,
	})
}

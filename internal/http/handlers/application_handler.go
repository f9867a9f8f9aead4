package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/http/dto"
	"github.com/ignatzorin/job-settlement/internal/http/handlers/common"
	"github.com/ignatzorin/job-settlement/internal/http/response"
	"github.com/ignatzorin/job-settlement/internal/service"
)

// ApplicationHandler обслуживает отклики на заказ.
type ApplicationHandler struct {
	applications    *service.ApplicationService
	defaultCurrency string
}

func NewApplicationHandler(applications *service.ApplicationService, defaultCurrency string) *ApplicationHandler {
	return &ApplicationHandler{applications: applications, defaultCurrency: defaultCurrency}
}

// Submit POST /jobs/:id/applications
func (h *ApplicationHandler) Submit(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.SubmitApplicationRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = h.defaultCurrency
	}
	proposed, err := valueobject.NewPositiveMoney(req.ProposedBudget, currency)
	if err != nil {
		response.Error(c, err)
		return
	}

	app, err := h.applications.Submit(c.Request.Context(), actor, jobID, service.SubmitApplicationInput{
		ProposedBudget: proposed,
		CoverLetter:    req.CoverLetter,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToApplicationResponse(app))
}

// List GET /jobs/:id/applications
func (h *ApplicationHandler) List(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	apps, err := h.applications.ListByJob(c.Request.Context(), actor, jobID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToApplicationResponses(apps))
}

// Accept POST /jobs/:id/applications/:applicationId/accept
func (h *ApplicationHandler) Accept(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	applicationID, err := common.ParseUUIDParam(c, "applicationId")
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.applications.Accept(c.Request.Context(), actor, jobID, applicationID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.AcceptApplicationResponse{
		Job:         dto.ToJobResponse(result.Job, time.Now()),
		Application: dto.ToApplicationResponse(result.Application),
		Rejected:    dto.ToApplicationResponses(result.Rejected),
	})
}

// Reject POST /jobs/:id/applications/:applicationId/reject
func (h *ApplicationHandler) Reject(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	applicationID, err := common.ParseUUIDParam(c, "applicationId")
	if err != nil {
		response.Error(c, err)
		return
	}

	app, err := h.applications.Reject(c.Request.Context(), actor, jobID, applicationID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToApplicationResponse(app))
}

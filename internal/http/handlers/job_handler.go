package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/job-settlement/internal/domain/entity"
	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/http/dto"
	"github.com/ignatzorin/job-settlement/internal/http/handlers/common"
	"github.com/ignatzorin/job-settlement/internal/http/response"
	"github.com/ignatzorin/job-settlement/internal/service"
)

// JobHandler обслуживает жизненный цикл заказа.
type JobHandler struct {
	jobs            *service.JobService
	defaultCurrency string
	now             func() time.Time
}

func NewJobHandler(jobs *service.JobService, defaultCurrency string) *JobHandler {
	return &JobHandler{jobs: jobs, defaultCurrency: defaultCurrency, now: time.Now}
}

// Post POST /jobs
func (h *JobHandler) Post(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.PostJobRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = h.defaultCurrency
	}
	budget, err := valueobject.NewPositiveMoney(req.Budget, currency)
	if err != nil {
		response.Error(c, err)
		return
	}

	job, err := h.jobs.Post(c.Request.Context(), actor, service.PostJobInput{
		Title:       req.Title,
		Description: req.Description,
		Budget:      budget,
		Deadline:    req.Deadline,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToJobResponse(job, h.now()))
}

// List GET /jobs?mine=true&status=posted
func (h *JobHandler) List(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	jobs, err := h.jobs.List(c.Request.Context(), actor, service.ListJobsInput{
		Mine:   c.Query("mine") == "true",
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, dto.ToJobResponses(jobs, h.now()), len(jobs), limit, offset)
}

// Get GET /jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	job, err := h.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToJobResponse(job, h.now()))
}

// History GET /jobs/:id/history
func (h *JobHandler) History(c *gin.Context) {
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

	events, err := h.jobs.History(c.Request.Context(), actor, jobID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToJobEventResponses(events))
}

// StartWork POST /jobs/:id/start
func (h *JobHandler) StartWork(c *gin.Context) {
	h.transition(c, h.jobs.StartWork)
}

// SubmitForReview POST /jobs/:id/submit
func (h *JobHandler) SubmitForReview(c *gin.Context) {
	h.transition(c, h.jobs.SubmitForReview)
}

// Resubmit POST /jobs/:id/resubmit
func (h *JobHandler) Resubmit(c *gin.Context) {
	h.transition(c, h.jobs.Resubmit)
}

// RequestRevision POST /jobs/:id/revision
func (h *JobHandler) RequestRevision(c *gin.Context) {
	h.transitionWithReason(c, h.jobs.RequestRevision)
}

// Cancel POST /jobs/:id/cancel
func (h *JobHandler) Cancel(c *gin.Context) {
	h.transitionWithReason(c, h.jobs.Cancel)
}

type jobTransition func(ctx context.Context, actor valueobject.Actor, jobID uuid.UUID) (*entity.Job, error)

func (h *JobHandler) transition(c *gin.Context, fn jobTransition) {
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

	job, err := fn(c.Request.Context(), actor, jobID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToJobResponse(job, h.now()))
}

func (h *JobHandler) transitionWithReason(c *gin.Context, fn func(context.Context, valueobject.Actor, uuid.UUID, string) (*entity.Job, error)) {
	var req dto.ReasonRequest
	if c.Request.ContentLength != 0 {
		if err := common.BindJSON(c, &req); err != nil {
			response.Error(c, err)
			return
		}
	}
	h.transition(c, func(ctx context.Context, actor valueobject.Actor, jobID uuid.UUID) (*entity.Job, error) {
		return fn(ctx, actor, jobID, req.Reason)
	})
}

// Rate POST /jobs/:id/ratings
func (h *JobHandler) Rate(c *gin.Context) {
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

	var req dto.RateJobRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	rating, err := h.jobs.Rate(c.Request.Context(), actor, jobID, req.Score, req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToRatingResponse(rating))
}

// Ratings GET /jobs/:id/ratings
func (h *JobHandler) Ratings(c *gin.Context) {
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	ratings, err := h.jobs.Ratings(c.Request.Context(), jobID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToRatingResponses(ratings))
}

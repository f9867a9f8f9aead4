package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/job-settlement/internal/http/dto"
	"github.com/ignatzorin/job-settlement/internal/http/handlers/common"
	"github.com/ignatzorin/job-settlement/internal/http/response"
	"github.com/ignatzorin/job-settlement/internal/service"
)

type DisputeHandler struct {
	disputes *service.DisputeService
}

func NewDisputeHandler(disputes *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputes: disputes}
}

// Open POST /jobs/:id/disputes
func (h *DisputeHandler) Open(c *gin.Context) {
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

	var req dto.OpenDisputeRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	dispute, err := h.disputes.Open(c.Request.Context(), actor, jobID, req.Description)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToDisputeResponse(dispute))
}

// ListByJob GET /jobs/:id/disputes
func (h *DisputeHandler) ListByJob(c *gin.Context) {
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

	disputes, err := h.disputes.ListByJob(c.Request.Context(), actor, jobID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDisputeResponses(disputes))
}

// List GET /disputes?status=open (только администраторы)
func (h *DisputeHandler) List(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	disputes, err := h.disputes.List(c.Request.Context(), actor, c.Query("status"), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, dto.ToDisputeResponses(disputes), len(disputes), limit, offset)
}

// Get GET /disputes/:id
func (h *DisputeHandler) Get(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	dispute, err := h.disputes.Get(c.Request.Context(), actor, disputeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDisputeResponse(dispute))
}

// SetStatus POST /disputes/:id/status
func (h *DisputeHandler) SetStatus(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.DisputeStatusRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	dispute, err := h.disputes.SetStatus(c.Request.Context(), actor, disputeID, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDisputeResponse(dispute))
}

// Resolve POST /disputes/:id/resolve
func (h *DisputeHandler) Resolve(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.ResolveDisputeRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.disputes.Resolve(c.Request.Context(), actor, disputeID, service.ResolveDisputeInput{
		Outcome:       req.Outcome,
		Note:          req.Note,
		PartialAmount: req.PartialAmount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.ResolveDisputeResponse{
		Dispute: dto.ToDisputeResponse(result.Dispute),
		Job:     dto.ToJobResponse(result.Job, time.Now()),
	}
	if result.Payment != nil {
		p := dto.ToPaymentResponse(result.Payment)
		resp.Payment = &p
	}
	response.Success(c, resp)
}

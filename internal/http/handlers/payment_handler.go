package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"

	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/http/dto"
	"github.com/ignatzorin/job-settlement/internal/http/handlers/common"
	"github.com/ignatzorin/job-settlement/internal/http/response"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
	"github.com/ignatzorin/job-settlement/internal/service"
	"github.com/ignatzorin/job-settlement/internal/storage"
)

// Разрешённые типы подтверждений оплаты (определяются по магическим байтам).
var allowedProofTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/gif":       true,
	"application/pdf": true,
}

type PaymentHandler struct {
	payments       *service.PaymentService
	proofs         repository.BlobStore
	maxUploadBytes int64
}

func NewPaymentHandler(payments *service.PaymentService, proofs repository.BlobStore, maxUploadBytes int64) *PaymentHandler {
	return &PaymentHandler{payments: payments, proofs: proofs, maxUploadBytes: maxUploadBytes}
}

// Initiate POST /jobs/:id/payments
func (h *PaymentHandler) Initiate(c *gin.Context) {
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

	var req dto.InitiatePaymentRequest
	if c.Request.ContentLength != 0 {
		if err := common.BindJSON(c, &req); err != nil {
			response.Error(c, err)
			return
		}
	}

	payment, err := h.payments.Initiate(c.Request.Context(), actor, jobID, service.InitiatePaymentInput{
		Amount:  req.Amount,
		PayeeID: req.PayeeID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToPaymentResponse(payment))
}

// ListByJob GET /jobs/:id/payments
func (h *PaymentHandler) ListByJob(c *gin.Context) {
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

	payments, err := h.payments.ListByJob(c.Request.Context(), actor, jobID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToPaymentResponses(payments))
}

// Get GET /payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	paymentID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	payment, err := h.payments.Get(c.Request.Context(), actor, paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToPaymentResponse(payment))
}

// Settle POST /payments/:id/settle
func (h *PaymentHandler) Settle(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	paymentID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	payment, err := h.payments.AttemptGatewaySettlement(c.Request.Context(), actor, paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToPaymentResponse(payment))
}

// UploadProof POST /payments/:id/proof (multipart, поле file)
func (h *PaymentHandler) UploadProof(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	paymentID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	if c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)
	}
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, apperror.New(apperror.ErrCodePayloadTooLarge, "файл подтверждения слишком большой"))
			return
		}
		response.BadRequest(c, "поле file обязательно")
		return
	}
	if file.Size == 0 {
		response.BadRequest(c, "файл не может быть пустым")
		return
	}
	if file.Size > h.maxUploadBytes {
		response.Error(c, apperror.Newf(apperror.ErrCodePayloadTooLarge, "размер файла превышает %d байт", h.maxUploadBytes))
		return
	}

	src, err := file.Open()
	if err != nil {
		response.Error(c, err)
		return
	}
	defer src.Close()

	// Тип определяется по первым 512 байтам, расширение имени не учитывается.
	head := make([]byte, 512)
	n, err := src.Read(head)
	if err != nil && err != io.EOF {
		response.BadRequest(c, "не удалось прочитать файл")
		return
	}
	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown || !allowedProofTypes[kind.MIME.Value] {
		response.Error(c, apperror.New(apperror.ErrCodeValidation,
			"неподдерживаемый тип файла, разрешены: "+strings.Join(allowedProofMIMEs(), ", ")))
		return
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.payments.CheckProofUpload(c.Request.Context(), actor, paymentID); err != nil {
		response.Error(c, err)
		return
	}

	ref, err := h.proofs.Store(c.Request.Context(), src)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			response.Error(c, apperror.Wrap(err, apperror.ErrCodePayloadTooLarge, "файл подтверждения слишком большой"))
			return
		}
		response.Error(c, err)
		return
	}

	payment, err := h.payments.SubmitProof(c.Request.Context(), actor, paymentID, ref)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToPaymentResponse(payment))
}

// DownloadProof GET /payments/:id/proof
func (h *PaymentHandler) DownloadProof(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	paymentID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	payment, err := h.payments.Get(c.Request.Context(), actor, paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if payment.ProofRef == nil {
		response.NotFound(c, "подтверждение оплаты не загружено")
		return
	}

	rc, err := h.proofs.Retrieve(c.Request.Context(), *payment.ProofRef)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer rc.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(rc, head)
	contentType := "application/octet-stream"
	if kind, err := filetype.Match(head[:n]); err == nil && kind != filetype.Unknown {
		contentType = kind.MIME.Value
	}
	c.DataFromReader(http.StatusOK, -1, contentType, io.MultiReader(bytes.NewReader(head[:n]), rc), nil)
}

// VerifyProof POST /payments/:id/verify
func (h *PaymentHandler) VerifyProof(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	paymentID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.VerifyProofRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	payment, err := h.payments.VerifyProof(c.Request.Context(), actor, paymentID, req.Decision, req.Note)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToPaymentResponse(payment))
}

func allowedProofMIMEs() []string {
	return []string{"image/jpeg", "image/png", "image/webp", "image/gif", "application/pdf"}
}

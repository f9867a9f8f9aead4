package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/http/middleware"
	"github.com/ignatzorin/job-settlement/internal/http/response"
)

func withActor(id uuid.UUID, role valueobject.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetActor(c, valueobject.Actor{ID: id, Role: role})
		c.Next()
	}
}

func multipartBody(t *testing.T, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", "proof.bin")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func TestPaymentHandler_Get_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &PaymentHandler{payments: nil}
	r.GET("/payments/:id", handler.Get)

	req, _ := http.NewRequest("GET", "/payments/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))
}

func TestPaymentHandler_Settle_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &PaymentHandler{payments: nil}
	r.POST("/payments/:id/settle", withActor(uuid.New(), "client"), handler.Settle)

	req, _ := http.NewRequest("POST", "/payments/invalid-uuid/settle", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentHandler_VerifyProof_MissingDecision(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &PaymentHandler{payments: nil}
	r.POST("/payments/:id/verify", withActor(uuid.New(), "finance_admin"), handler.VerifyProof)

	req, _ := http.NewRequest("POST", "/payments/"+uuid.NewString()+"/verify", bytes.NewBufferString(`{"note":"ok"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ARGUMENT", errorCode(t, w))
}

func TestPaymentHandler_UploadProof_MissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &PaymentHandler{payments: nil, maxUploadBytes: 1 << 20}
	r.POST("/payments/:id/proof", withActor(uuid.New(), "client"), handler.UploadProof)

	req, _ := http.NewRequest("POST", "/payments/"+uuid.NewString()+"/proof", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentHandler_UploadProof_RejectsUnknownType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &PaymentHandler{payments: nil, maxUploadBytes: 1 << 20}
	r.POST("/payments/:id/proof", withActor(uuid.New(), "client"), handler.UploadProof)

	body, contentType := multipartBody(t, []byte("just a plain text receipt, not an image"))
	req, _ := http.NewRequest("POST", "/payments/"+uuid.NewString()+"/proof", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ARGUMENT", errorCode(t, w))
}

func TestPaymentHandler_UploadProof_TooLarge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &PaymentHandler{payments: nil, maxUploadBytes: 16}
	r.POST("/payments/:id/proof", withActor(uuid.New(), "client"), handler.UploadProof)

	body, contentType := multipartBody(t, bytes.Repeat([]byte{0x89, 'P', 'N', 'G'}, 64))
	req, _ := http.NewRequest("POST", "/payments/"+uuid.NewString()+"/proof", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", errorCode(t, w))
}

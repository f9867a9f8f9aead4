package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/service"
)

func setupAuthRouter(tokens *service.TokenManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(tokens), func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": actor.ID.String(), "role": string(actor.Role)})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	tokens := service.NewTokenManager("test-secret", time.Hour)
	r := setupAuthRouter(tokens)

	issue := func(role valueobject.Role) string {
		token, _, err := tokens.Issue(valueobject.Actor{ID: uuid.New(), Role: role})
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"без заголовка", "", http.StatusUnauthorized},
		{"без Bearer", issue(valueobject.RoleClient), http.StatusUnauthorized},
		{"мусорный токен", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"чужая подпись", "Bearer " + foreignToken(t), http.StatusUnauthorized},
		{"неизвестная роль", "Bearer " + issue("superuser"), http.StatusForbidden},
		{"валидный токен", "Bearer " + issue(valueobject.RoleFinanceAdmin), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"role":"finance_admin"`)
			}
		})
	}
}

func foreignToken(t *testing.T) string {
	t.Helper()
	token, _, err := service.NewTokenManager("other-secret", time.Hour).
		Issue(valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleClient})
	require.NoError(t, err)
	return token
}

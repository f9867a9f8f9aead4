package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/job-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/job-settlement/internal/http/response"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
	"github.com/ignatzorin/job-settlement/internal/service"
)

// Context ключи для gin.Context.
const (
	ContextUserIDKey = "userID"
	ContextActorKey  = "actor"
)

// AuthMiddleware проверяет bearer токен и кладёт в контекст участника с ролью.
// Токен с ролью, которой нет в системе, отклоняется с 403.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			response.Unauthorized(c, "требуется авторизация")
			return
		}

		userID, role, err := tokens.ParseAccess(raw)
		if err != nil {
			response.Unauthorized(c, "токен невалиден")
			return
		}
		actor, err := valueobject.NewActor(userID, role)
		if err != nil {
			if apperror.IsForbidden(err) {
				response.Forbidden(c, "неизвестная роль пользователя")
				return
			}
			response.Unauthorized(c, "токен невалиден")
			return
		}

		SetActor(c, actor)
		c.Next()
	}
}

// SetActor кладёт участника в контекст запроса.
func SetActor(c *gin.Context, actor valueobject.Actor) {
	c.Set(ContextActorKey, actor)
	c.Set(ContextUserIDKey, actor.ID)
}

// ActorFrom достаёт участника, положенного AuthMiddleware.
func ActorFrom(c *gin.Context) (valueobject.Actor, bool) {
	raw, exists := c.Get(ContextActorKey)
	if !exists {
		return valueobject.Actor{}, false
	}
	actor, ok := raw.(valueobject.Actor)
	return actor, ok
}

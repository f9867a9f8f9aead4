package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/job-settlement/internal/http/response"
	"github.com/ignatzorin/job-settlement/internal/logger"
)

// ErrorHandler отдаёт ошибку, добавленную через c.Error, если хэндлер не записал ответ сам.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}
		response.Error(c, c.Errors.Last().Err)
	}
}

// Recovery превращает панику в хэндлере в ответ 500 и пишет её в лог.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		c.Abort()
		response.Error(c, fmt.Errorf("паника при обработке запроса: %v", recovered))
	})
}

// RequestLogger пишет в лог каждый запрос с его статусом и длительностью.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.Get().WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"ip":       c.ClientIP(),
		})
		if userID, ok := c.Get(ContextUserIDKey); ok {
			entry = entry.WithField("user_id", userID)
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("запрос обработан")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("запрос обработан")
		default:
			entry.Debug("запрос обработан")
		}
	}
}

package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/job-settlement/internal/config"
	"github.com/ignatzorin/job-settlement/internal/http/handlers"
	"github.com/ignatzorin/job-settlement/internal/http/middleware"
	"github.com/ignatzorin/job-settlement/internal/service"
)

// Handlers - набор хэндлеров, которые подключает SetupRouter.
type Handlers struct {
	Jobs          *handlers.JobHandler
	Applications  *handlers.ApplicationHandler
	Payments      *handlers.PaymentHandler
	Disputes      *handlers.DisputeHandler
	Notifications *handlers.NotificationHandler
	Admin         *handlers.AdminHandler
	WS            *handlers.WSHandler
	Health        *handlers.HealthHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokenManager *service.TokenManager) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)

	api := r.Group("/api")
	api.GET("/ws", h.WS.Handle)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(tokenManager))

	// Ограничение действует только на изменяющие запросы.
	limited := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
	byID := middleware.UUIDValidator("id")

	jobs := protected.Group("/jobs")
	{
		jobs.POST("", limited, h.Jobs.Post)
		jobs.GET("", h.Jobs.List)
		jobs.GET("/:id", byID, h.Jobs.Get)
		jobs.GET("/:id/history", byID, h.Jobs.History)
		jobs.GET("/:id/ratings", byID, h.Jobs.Ratings)
		jobs.POST("/:id/ratings", byID, limited, h.Jobs.Rate)

		jobs.POST("/:id/start", byID, limited, h.Jobs.StartWork)
		jobs.POST("/:id/submit", byID, limited, h.Jobs.SubmitForReview)
		jobs.POST("/:id/revision", byID, limited, h.Jobs.RequestRevision)
		jobs.POST("/:id/resubmit", byID, limited, h.Jobs.Resubmit)
		jobs.POST("/:id/cancel", byID, limited, h.Jobs.Cancel)

		jobs.POST("/:id/applications", byID, limited, h.Applications.Submit)
		jobs.GET("/:id/applications", byID, h.Applications.List)
		byApplication := middleware.UUIDValidator("id", "applicationId")
		jobs.POST("/:id/applications/:applicationId/accept", byApplication, limited, h.Applications.Accept)
		jobs.POST("/:id/applications/:applicationId/reject", byApplication, limited, h.Applications.Reject)

		jobs.POST("/:id/payments", byID, limited, h.Payments.Initiate)
		jobs.GET("/:id/payments", byID, h.Payments.ListByJob)

		jobs.POST("/:id/disputes", byID, limited, h.Disputes.Open)
		jobs.GET("/:id/disputes", byID, h.Disputes.ListByJob)
	}

	payments := protected.Group("/payments")
	{
		payments.GET("/:id", byID, h.Payments.Get)
		payments.POST("/:id/settle", byID, limited, h.Payments.Settle)
		payments.POST("/:id/proof", byID, limited, h.Payments.UploadProof)
		payments.GET("/:id/proof", byID, h.Payments.DownloadProof)
		payments.POST("/:id/verify", byID, limited, h.Payments.VerifyProof)
	}

	disputes := protected.Group("/disputes")
	{
		disputes.GET("", h.Disputes.List)
		disputes.GET("/:id", byID, h.Disputes.Get)
		disputes.POST("/:id/status", byID, limited, h.Disputes.SetStatus)
		disputes.POST("/:id/resolve", byID, limited, h.Disputes.Resolve)
	}

	notifications := protected.Group("/notifications")
	{
		notifications.GET("", h.Notifications.ListNotifications)
		notifications.GET("/unread/count", h.Notifications.CountUnread)
		notifications.PUT("/:id/read", byID, h.Notifications.MarkAsRead)
	}

	protected.GET("/admin/invariants", h.Admin.Invariants)

	return r
}

package server

import (
	"net/http"
	"time"

	"trade-closeout/internal/config"
	"trade-closeout/internal/handlers"
	"trade-closeout/internal/middleware"
	"trade-closeout/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

func NewRouter(cfg *config.Config) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.TokenTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("trade_session", store))

	// HEALTHCHECK
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authHandler := handlers.NewAuthHandler(cfg.JWTSecret, cfg.TokenTTL)

	api := r.Group("/api/v1")

	// AUTH
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)

	auth := api.Group("/")
	auth.Use(middleware.RequireAuth(cfg.JWTSecret), middleware.InjectUser())

	auth.GET("/auth/me", authHandler.Me)

	// ТРЕЙДЫ
	auth.POST("/milestones",
		middleware.RequireRole(models.RoleAdmin),
		handlers.CreateMilestone,
	)
	auth.GET("/milestones/archived", handlers.ListArchivedMilestones)
	auth.GET("/milestones/:id", handlers.GetMilestone)
	auth.GET("/milestones/:id/history", handlers.ShowMilestoneHistory)
	auth.POST("/milestones/:id/progress",
		middleware.RequireRole(models.RoleContractor),
		handlers.UpdateProgress,
	)
	auth.POST("/milestones/:id/progress/completion",
		middleware.RequireRole(models.RoleContractor),
		handlers.RequestCompletion,
	)
	auth.POST("/milestones/:id/archive",
		middleware.RequireRole(models.RoleClient),
		handlers.ArchiveMilestone,
	)

	// ПРИЁМКА
	auth.GET("/acceptance/milestone/:id", handlers.ListAcceptances)
	auth.GET("/acceptance/milestone/:id/defects", handlers.ListDefects)
	auth.POST("/acceptance/complete",
		middleware.RequireRole(models.RoleClient),
		handlers.CompleteAcceptance,
	)
	auth.PUT("/acceptance/defects/:id",
		middleware.RequireRole(models.RoleClient, models.RoleContractor),
		handlers.ResolveDefect,
	)
	auth.POST("/acceptance/:id/final-complete",
		middleware.RequireRole(models.RoleClient, models.RoleContractor),
		handlers.FinalComplete,
	)

	// СЧЕТА
	auth.GET("/invoices/milestone/:id", handlers.GetMilestoneInvoice)
	auth.GET("/invoices/:id/download", handlers.DownloadInvoice)
	auth.POST("/invoices/:id/send",
		middleware.RequireRole(models.RoleContractor),
		handlers.SendInvoice,
	)
	auth.POST("/invoices/:id/mark-viewed",
		middleware.RequireRole(models.RoleClient),
		handlers.MarkInvoiceViewed,
	)
	auth.POST("/invoices/:id/mark-paid",
		middleware.RequireRole(models.RoleClient),
		handlers.MarkInvoicePaid,
	)

	// АУДИТ
	auth.GET("/audit",
		middleware.RequireRole(models.RoleAdmin),
		handlers.ListAuditLogs,
	)

	return r
}

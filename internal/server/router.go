package server

import (
	"net/http"

	"asset-tracker/internal/config"
	"asset-tracker/internal/handlers"
	"asset-tracker/internal/logger"
	"asset-tracker/internal/metrics"
	"asset-tracker/internal/middleware"
	"asset-tracker/internal/models"
	"asset-tracker/internal/store"
	"asset-tracker/internal/workflow"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const sessionName = "asset_session"

func NewRouter(cfg *config.Config, svc *workflow.Services, st *store.Store, log *logger.Logger, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.AttachRequestID())
	r.Use(middleware.RequestLogger(log, m))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSOrigins))
	}

	cookies := cookie.NewStore([]byte(cfg.SessionSecret))
	cookies.Options(sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, cookies))
	r.Use(middleware.InjectUser(st))

	h := handlers.New(svc, log)

	// health
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	// auth
	r.POST("/api/auth/login", h.Login)
	r.POST("/api/auth/logout", h.Logout)

	api := r.Group("/api")
	api.Use(middleware.RequireAuth())
	admin := middleware.RequireRole(models.RoleAdmin)

	api.GET("/auth/me", h.Me)

	// users
	api.GET("/users", h.ListUsers)
	api.POST("/users", admin, h.CreateUser)
	api.PUT("/users/:id", admin, h.UpdateUser)
	api.DELETE("/users/:id", admin, h.DeleteUser)

	api.GET("/stats", h.Stats)

	// assets
	api.GET("/categories", h.ListCategories)
	api.GET("/assets", h.ListAssets)
	api.POST("/assets", h.CreateAsset)
	api.GET("/assets/:id", h.GetAsset)
	api.PUT("/assets/:id", h.UpdateAsset)
	api.DELETE("/assets/:id", admin, h.DeleteAsset)
	api.GET("/assets/:id/history", h.AssetHistory)
	api.GET("/assets/:id/safety-checks", h.AssetChecks)

	// requests
	api.GET("/transfers", h.ListTransfers)
	api.POST("/transfers", h.CreateTransfer)
	api.GET("/transfers/:id", h.GetTransfer)
	api.DELETE("/transfers/:id", h.CancelTransfer)
	api.POST("/transfers/:id/confirm", h.ConfirmTransfer)

	api.GET("/returns", h.ListReturns)
	api.POST("/returns", h.CreateReturn)
	api.GET("/returns/:id", h.GetReturn)
	api.DELETE("/returns/:id", h.CancelReturn)

	api.GET("/edit-requests", h.ListEdits)
	api.POST("/edit-requests", h.CreateEdit)
	api.GET("/edit-requests/:id", h.GetEdit)
	api.DELETE("/edit-requests/:id", h.CancelEdit)

	// approvals, admin only
	api.GET("/approvals/pending", admin, h.PendingApprovals)
	api.POST("/approvals/approve", admin, h.Approve)

	// safety checks
	api.GET("/safety-check-types", admin, h.ListCheckTypes)
	api.POST("/safety-check-types", admin, h.CreateCheckType)
	api.GET("/safety-check-types/:id", admin, h.GetCheckType)
	api.PUT("/safety-check-types/:id", admin, h.UpdateCheckType)
	api.DELETE("/safety-check-types/:id", admin, h.DeleteCheckType)

	api.GET("/safety-check-tasks", h.ListCheckTasks)
	api.POST("/safety-check-tasks", admin, h.CreateCheckTask)
	api.GET("/safety-check-tasks/:id", h.GetCheckTask)
	api.GET("/safety-check-tasks/:id/assets", h.CheckTaskAssets)
	api.PUT("/safety-check-tasks/:id", admin, h.UpdateCheckTask)
	api.DELETE("/safety-check-tasks/:id", admin, h.CancelCheckTask)

	api.GET("/safety-checks/my-tasks", h.MyCheckTasks)
	api.POST("/safety-checks/submit", h.SubmitCheck)

	return r
}

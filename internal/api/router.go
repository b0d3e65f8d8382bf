// Package api assembles the HTTP surface: gin engine, middleware chain and
// routes.
package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orrn/printdesk/internal/api/handlers"
	"github.com/orrn/printdesk/internal/api/middleware"
	"github.com/orrn/printdesk/internal/core"
	"github.com/orrn/printdesk/internal/hub"
)

type Deps struct {
	Jobs          *core.JobManager
	Notifications *core.Dispatcher
	History       *core.HistoryService
	Accounts      *core.AccountService
	Hub           *hub.Hub
	Auth          *middleware.AuthMiddleware
	DB            handlers.Pinger

	IsAdmin     func(username string) bool
	RecentLimit int
	MetricsPath string
	Logger      *slog.Logger
}

func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Metrics())

	users := handlers.NewUserHandler(d.Accounts, d.Auth, d.IsAdmin, d.Logger)
	jobs := handlers.NewJobHandler(d.Jobs, d.History, d.RecentLimit, d.Logger)
	notifs := handlers.NewNotificationHandler(d.Notifications, d.Hub, d.Logger)
	health := handlers.NewHealthHandler(d.DB, d.Logger)

	r.GET("/healthz", health.Healthz)
	if d.MetricsPath != "" {
		r.GET(d.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/api/v1")
	v1.POST("/users", users.Register)
	v1.POST("/auth/login", users.Login)
	v1.POST("/auth/logout", users.Logout)

	authed := v1.Group("")
	authed.Use(d.Auth.RequireAuth())
	{
		authed.GET("/me", users.Me)
		authed.PUT("/me", users.UpdateMe)

		authed.POST("/jobs", jobs.SubmitJob)
		authed.GET("/jobs/recent", jobs.RecentJobs)
		authed.GET("/jobs/:id", jobs.GetJob)
		authed.GET("/history", jobs.History)

		authed.GET("/notifications", notifs.List)
		authed.GET("/notifications/unread", notifs.UnreadCount)
		authed.POST("/notifications/:id/read", notifs.MarkRead)
		authed.POST("/notifications/clear", notifs.ClearAll)
		authed.GET("/notifications/ws", notifs.Subscribe)
	}

	admin := authed.Group("/admin")
	admin.Use(d.Auth.RequireAdmin())
	{
		admin.GET("/jobs", jobs.ListJobs)
		admin.GET("/jobs/stats", jobs.Stats)
		admin.POST("/jobs/:id/status", jobs.UpdateStatus)
		admin.GET("/jobs/:id/audit", jobs.AuditTrail)
		admin.POST("/notifications", notifs.Notify)
	}

	return r
}

package router

import (
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"github.com/ignatzorin/skillhire-backend/internal/config"
	"github.com/ignatzorin/skillhire-backend/internal/http/handlers"
	"github.com/ignatzorin/skillhire-backend/internal/http/middleware"
	"github.com/ignatzorin/skillhire-backend/internal/models"
)

// Handlers набор хэндлеров API.
type Handlers struct {
	Health        *handlers.HealthHandler
	WS            *handlers.WSHandler
	Jobs          *handlers.JobHandler
	Payments      *handlers.PaymentHandler
	Admin         *handlers.AdminHandler
	Chats         *handlers.ChatHandler
	Notifications *handlers.NotificationHandler
}

// Auth зависимости middleware аутентификации.
type Auth struct {
	Tokens     middleware.TokenParser
	Principals middleware.PrincipalLoader
}

func SetupRouter(cfg *config.Config, h Handlers, auth Auth, limitStore limiter.Store) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)

	api := r.Group("/api")
	api.GET("/ws", h.WS.Handle)

	public := api.Group("/")
	public.Use(middleware.RateLimitMiddleware(limitStore, cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		public.GET("/jobs", h.Jobs.ListJobs)
		public.GET("/jobs/:id", middleware.UUIDValidator("id"), h.Jobs.GetJob)
	}

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(auth.Tokens, auth.Principals))
	protected.Use(middleware.RateLimitMiddleware(limitStore, cfg.RateLimitLimit, cfg.RateLimitPeriod))

	client := middleware.RequireRole(models.RoleClient)
	freelancer := middleware.RequireRole(models.RoleFreelancer)
	admin := middleware.RequireRole(models.RoleAdmin)

	// Заказы
	{
		protected.POST("/jobs", client, h.Jobs.CreateJob)
		protected.GET("/jobs/my", client, h.Jobs.ListMyJobs)
		protected.POST("/jobs/:id/cancel", middleware.UUIDValidator("id"), client, h.Jobs.CancelJob)
		protected.POST("/jobs/:id/close", middleware.UUIDValidator("id"), admin, h.Jobs.CloseJob)
		protected.GET("/jobs/:id/applications", middleware.UUIDValidator("id"), client, h.Jobs.ListJobApplications)
		protected.POST("/jobs/:id/applications", middleware.UUIDValidator("id"), freelancer, h.Jobs.Apply)
		protected.POST("/jobs/:id/submission", middleware.UUIDValidator("id"), freelancer, h.Jobs.SubmitWork)
		protected.POST("/jobs/:id/submission/reject", middleware.UUIDValidator("id"), client, h.Jobs.RejectSubmission)
		protected.POST("/jobs/:id/complete", middleware.UUIDValidator("id"), client, h.Jobs.CompleteJob)
		protected.POST("/jobs/:id/invites", middleware.UUIDValidator("id"), client, h.Jobs.InviteFreelancer)
		protected.GET("/jobs/:id/invites", middleware.UUIDValidator("id"), client, h.Jobs.ListJobInvites)
	}

	// Отклики и приглашения
	{
		protected.GET("/applications/my", freelancer, h.Jobs.ListMyApplications)
		protected.PUT("/applications/:id/status", middleware.UUIDValidator("id"), client, h.Jobs.DecideApplication)
		protected.PUT("/applications/:id/withdraw", middleware.UUIDValidator("id"), freelancer, h.Jobs.WithdrawApplication)
		protected.GET("/invites/my", freelancer, h.Jobs.ListMyInvites)
		protected.PUT("/invites/:id/respond", middleware.UUIDValidator("id"), freelancer, h.Jobs.RespondToInvite)
	}

	// Платежи
	{
		protected.GET("/payments/transactions", h.Payments.ListTransactions)
		protected.GET("/payments/transactions/:id", middleware.UUIDValidator("id"), h.Payments.GetTransaction)
		protected.GET("/payments/earnings", freelancer, h.Payments.GetEarnings)
		protected.GET("/payments/balance", freelancer, h.Payments.GetBalance)
		protected.POST("/payments/withdraw", freelancer, h.Payments.RequestWithdrawal)
	}

	// Администрирование
	adminGroup := protected.Group("/admin")
	adminGroup.Use(admin)
	{
		adminGroup.GET("/withdrawals", h.Admin.ListWithdrawals)
		adminGroup.PUT("/withdrawals/:id/approve", middleware.UUIDValidator("id"), h.Admin.ApproveWithdrawal)
		adminGroup.PUT("/withdrawals/:id/reject", middleware.UUIDValidator("id"), h.Admin.RejectWithdrawal)
		adminGroup.GET("/commissions", h.Admin.Commissions)
	}

	// Чаты
	{
		protected.GET("/chats", h.Chats.ListChats)
		protected.POST("/chats/start", h.Chats.StartChat)
		protected.GET("/chats/:id", middleware.UUIDValidator("id"), h.Chats.GetChat)
		protected.GET("/chats/:id/messages", middleware.UUIDValidator("id"), h.Chats.ListMessages)
		protected.POST("/chats/:id/messages", middleware.UUIDValidator("id"), h.Chats.SendMessage)
		protected.PUT("/chats/:id/read", middleware.UUIDValidator("id"), h.Chats.MarkRead)
	}

	// Уведомления и устройства
	{
		protected.GET("/notifications", h.Notifications.ListNotifications)
		protected.GET("/notifications/unread/count", h.Notifications.CountUnread)
		protected.PUT("/notifications/read-all", h.Notifications.MarkAllAsRead)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), h.Notifications.MarkAsRead)
		protected.DELETE("/notifications/:id", middleware.UUIDValidator("id"), h.Notifications.DeleteNotification)
		protected.POST("/devices", h.Notifications.RegisterDevice)
		protected.DELETE("/devices/:token", h.Notifications.UnregisterDevice)
	}

	return r
}

package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/construction-backend/internal/config"
	"github.com/ignatzorin/construction-backend/internal/http/handlers"
	"github.com/ignatzorin/construction-backend/internal/http/middleware"
	"github.com/ignatzorin/construction-backend/internal/models"
	"github.com/ignatzorin/construction-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	bidHandler *handlers.BidHandler,
	projectHandler *handlers.ProjectHandler,
	contractHandler *handlers.ContractHandler,
	milestoneHandler *handlers.MilestoneHandler,
	escrowHandler *handlers.EscrowHandler,
	paymentHandler *handlers.PaymentHandler,
	disputeHandler *handlers.DisputeHandler,
	walletHandler *handlers.WalletHandler,
	eventsHandler *handlers.EventsHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
	authGroup.Use(authRateLimit)
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	// WebSocket аутентифицируется токеном в query-параметре
	api.GET("/events/ws", eventsHandler.Handle)

	// Подтверждение и отказ платежей приходят от шлюза
	api.POST("/payments/:id/confirm", middleware.UUIDValidator("id"), paymentHandler.Confirm)
	api.POST("/payments/:id/fail", middleware.UUIDValidator("id"), paymentHandler.Fail)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/auth/me", authHandler.Me)

		// Заявки
		protected.POST("/bids", bidHandler.Create)
		protected.GET("/bids/my", bidHandler.ListMy)
		protected.GET("/bids/:id", middleware.UUIDValidator("id"), bidHandler.Get)
		protected.POST("/bids/:id/respond", middleware.UUIDValidator("id"), bidHandler.Respond)
		protected.POST("/bids/:id/convert", middleware.UUIDValidator("id"), bidHandler.Convert)

		// Проекты
		protected.GET("/projects/my", projectHandler.ListMy)
		protected.GET("/projects/:id", middleware.UUIDValidator("id"), projectHandler.Get)
		protected.POST("/projects/:id/accept", middleware.UUIDValidator("id"), projectHandler.Accept)
		protected.POST("/projects/:id/reject", middleware.UUIDValidator("id"), projectHandler.Reject)
		protected.POST("/projects/:id/start", middleware.UUIDValidator("id"), projectHandler.Start)
		protected.POST("/projects/:id/complete", middleware.UUIDValidator("id"), projectHandler.Complete)
		protected.POST("/projects/:id/cancel", middleware.UUIDValidator("id"), projectHandler.Cancel)
		protected.GET("/projects/:id/events", middleware.UUIDValidator("id"), projectHandler.History)

		// Контракты
		protected.POST("/contracts", contractHandler.Draft)
		protected.GET("/contracts/:id", middleware.UUIDValidator("id"), contractHandler.Get)
		protected.GET("/projects/:id/contract", middleware.UUIDValidator("id"), contractHandler.GetByProject)
		protected.POST("/contracts/:id/sign", middleware.UUIDValidator("id"), contractHandler.Sign)
		protected.POST("/contracts/:id/terminate", middleware.UUIDValidator("id"), contractHandler.Terminate)

		// Этапы работ
		protected.POST("/projects/:id/milestones", middleware.UUIDValidator("id"), milestoneHandler.Create)
		protected.GET("/projects/:id/milestones", middleware.UUIDValidator("id"), milestoneHandler.List)
		protected.POST("/milestones/:id/start", middleware.UUIDValidator("id"), milestoneHandler.Start)
		protected.POST("/milestones/:id/submit", middleware.UUIDValidator("id"), milestoneHandler.Submit)
		protected.POST("/milestones/:id/approve", middleware.UUIDValidator("id"), milestoneHandler.Approve)
		protected.POST("/milestones/:id/reject", middleware.UUIDValidator("id"), milestoneHandler.Reject)

		// Escrow
		protected.POST("/escrows", escrowHandler.Hold)
		protected.GET("/escrows/:id", middleware.UUIDValidator("id"), escrowHandler.Get)
		protected.GET("/projects/:id/escrows", middleware.UUIDValidator("id"), escrowHandler.ListByProject)
		protected.POST("/escrows/:id/release", middleware.UUIDValidator("id"), escrowHandler.Release)
		protected.POST("/escrows/:id/refund", middleware.UUIDValidator("id"), escrowHandler.Refund)
		protected.POST("/escrows/:id/cancel", middleware.UUIDValidator("id"), escrowHandler.Cancel)

		// Платежи
		protected.POST("/payments", paymentHandler.Charge)
		protected.GET("/payments/my", paymentHandler.ListMy)
		protected.GET("/payments/:id", middleware.UUIDValidator("id"), paymentHandler.Get)
		protected.POST("/payments/:id/refund", middleware.UUIDValidator("id"), paymentHandler.Refund)
		protected.GET("/projects/:id/payments", middleware.UUIDValidator("id"), paymentHandler.ListByProject)

		// Споры
		protected.POST("/projects/:id/disputes", middleware.UUIDValidator("id"), disputeHandler.Raise)
		protected.GET("/projects/:id/disputes", middleware.UUIDValidator("id"), disputeHandler.ListByProject)
		protected.GET("/disputes/:id", middleware.UUIDValidator("id"), disputeHandler.Get)
		protected.POST("/disputes/:id/close", middleware.UUIDValidator("id"), disputeHandler.Close)

		// Кошелёк
		protected.GET("/wallet", walletHandler.Balance)
		protected.POST("/wallet/deposit", walletHandler.Deposit)
		protected.POST("/wallet/withdraw", walletHandler.Withdraw)
		protected.GET("/wallet/transactions", walletHandler.Transactions)
		protected.GET("/wallet/verify", walletHandler.VerifyLedger)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokenManager), middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/disputes", disputeHandler.ListByStatus)
		admin.POST("/disputes/:id/assign", middleware.UUIDValidator("id"), disputeHandler.Assign)
		admin.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), disputeHandler.Resolve)
	}

	return r
}

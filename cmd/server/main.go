package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/construction-backend/internal/config"
	"github.com/ignatzorin/construction-backend/internal/db"
	"github.com/ignatzorin/construction-backend/internal/events"
	"github.com/ignatzorin/construction-backend/internal/gateway"
	"github.com/ignatzorin/construction-backend/internal/goroutine"
	httpHandlers "github.com/ignatzorin/construction-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/construction-backend/internal/http/router"
	"github.com/ignatzorin/construction-backend/internal/logger"
	"github.com/ignatzorin/construction-backend/internal/repository"
	"github.com/ignatzorin/construction-backend/internal/service"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	bidRepo := repository.NewBidRepository(dbConn)
	projectRepo := repository.NewProjectRepository(dbConn)
	contractRepo := repository.NewContractRepository(dbConn)
	milestoneRepo := repository.NewMilestoneRepository(dbConn)
	escrowRepo := repository.NewEscrowRepository(dbConn)
	paymentRepo := repository.NewPaymentRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	walletRepo := repository.NewWalletRepository(dbConn)
	eventRepo := repository.NewEventRepository(dbConn)

	// Вебсокеты: рассылка доменных событий сторонам проекта.
	hub := events.NewHub(ctx, projectRepo)
	go hub.Run()

	// Платёжный шлюз: внешний по конфигурации либо песочница.
	var gw gateway.Gateway
	if cfg.GatewayBaseURL != "" {
		gw = gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayName, cfg.GatewayAPIKey, cfg.GatewayTimeout)
	} else {
		gw = gateway.NewSandbox()
	}

	// Сервисы.
	authService := service.NewAuthService(userRepo, tokenManager)
	bidService := service.NewBidService(bidRepo, cfg.BidTTL, cfg.CommissionPercent)
	projectService := service.NewProjectService(projectRepo, eventRepo, contractRepo)
	contractService := service.NewContractService(contractRepo, projectRepo, hub)
	milestoneService := service.NewMilestoneService(milestoneRepo, projectRepo, hub)
	escrowService := service.NewEscrowService(escrowRepo, projectRepo, milestoneRepo, hub, cfg.DefaultAutoReleaseDays)
	paymentService := service.NewPaymentService(paymentRepo, projectRepo, gw, hub)
	disputeService := service.NewDisputeService(disputeRepo, escrowRepo, projectRepo, hub)
	walletService := service.NewWalletService(walletRepo)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	bidHandler := httpHandlers.NewBidHandler(bidService)
	projectHandler := httpHandlers.NewProjectHandler(projectService)
	contractHandler := httpHandlers.NewContractHandler(contractService)
	milestoneHandler := httpHandlers.NewMilestoneHandler(milestoneService)
	escrowHandler := httpHandlers.NewEscrowHandler(escrowService)
	paymentHandler := httpHandlers.NewPaymentHandler(paymentService)
	disputeHandler := httpHandlers.NewDisputeHandler(disputeService)
	walletHandler := httpHandlers.NewWalletHandler(walletService)
	eventsHandler := httpHandlers.NewEventsHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Фоновые задачи: истечение ставок и автоосвобождение escrow.
	recovery := goroutine.NewRecoveryHandler(logger.Log)
	recovery.SafeGoWithContext(ctx, func(ctx context.Context) {
		runSweep(ctx, cfg.BidSweepInterval, func(now time.Time) {
			if _, err := bidService.SweepExpired(ctx, now); err != nil {
				logger.Log.WithError(err).Error("main: ошибка обработки истёкших ставок")
			}
		})
	})
	recovery.SafeGoWithContext(ctx, func(ctx context.Context) {
		runSweep(ctx, cfg.AutoReleaseSweepInterval, func(now time.Time) {
			if _, err := escrowService.AutoReleaseSweep(ctx, now); err != nil {
				logger.Log.WithError(err).Error("main: ошибка автоосвобождения escrow")
			}
		})
	})

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, authHandler, bidHandler, projectHandler, contractHandler, milestoneHandler, escrowHandler, paymentHandler, disputeHandler, walletHandler, eventsHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// runSweep вызывает fn по тикеру до отмены контекста.
func runSweep(ctx context.Context, interval time.Duration, fn func(now time.Time)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			fn(now)
		}
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/skillhire-backend/internal/config"
	"github.com/ignatzorin/skillhire-backend/internal/db"
	"github.com/ignatzorin/skillhire-backend/internal/domain/valueobject"
	httpHandlers "github.com/ignatzorin/skillhire-backend/internal/http/handlers"
	"github.com/ignatzorin/skillhire-backend/internal/http/middleware"
	httpRouter "github.com/ignatzorin/skillhire-backend/internal/http/router"
	"github.com/ignatzorin/skillhire-backend/internal/logger"
	"github.com/ignatzorin/skillhire-backend/internal/presence"
	"github.com/ignatzorin/skillhire-backend/internal/push"
	"github.com/ignatzorin/skillhire-backend/internal/repository"
	"github.com/ignatzorin/skillhire-backend/internal/service"
	"github.com/ignatzorin/skillhire-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}
	logger.Init(cfg.LogLevel, cfg.Env)
	log := logger.WithComponent("main")

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("ошибка миграций: %v", err)
	}

	// Redis необязателен: без него присутствие и лимиты живут в памяти процесса.
	redisClient, err := db.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("ошибка подключения к redis: %v", err)
	}
	if redisClient != nil {
		defer closeRedis(redisClient)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	skillRepo := repository.NewSkillRepository(dbConn)
	settingsRepo := repository.NewSettingsRepository(dbConn)
	jobRepo := repository.NewJobRepository(dbConn)
	ledgerRepo := repository.NewLedgerRepository(dbConn)
	chatRepo := repository.NewChatRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	deviceRepo := repository.NewDeviceRepository(dbConn)

	// Сервисы.
	settingsService := service.NewSettingsService(settingsRepo, service.NewCacheService(), cfg.Marketplace)
	ledgerService := service.NewLedgerService(ledgerRepo, settingsService, userRepo, valueobject.Money(cfg.Marketplace.MinWithdrawal))
	withdrawalService := service.NewWithdrawalService(ledgerService, ledgerRepo)
	chatService := service.NewChatService(chatRepo, userRepo, cfg.Marketplace.MessageMaxLength)
	jobService := service.NewJobService(jobRepo, skillRepo, userRepo, ledgerService, chatService)
	notificationService := service.NewNotificationService(notificationRepo)
	deviceService := service.NewDeviceService(deviceRepo)

	// Вебсокеты.
	var presenceStore presence.Store = presence.NewMemoryStore()
	if redisClient != nil {
		presenceStore = presence.NewRedisStore(redisClient, presence.DefaultTTL)
	}

	hub := ws.NewHub(ctx, presenceStore)
	hub.SetNotificationSaver(ws.NotificationSaverFunc(notificationService.CreateNotificationForWS))
	hub.SetPusher(push.NewDispatcher(deviceRepo, newPushSender(ctx, cfg.FirebaseCredPath)))
	hub.SetStatusRecorder(userRepo)
	hub.SetChatActions(chatService)
	go hub.Run()

	jobService.SetHub(hub)
	withdrawalService.SetHub(hub)
	chatService.SetHub(hub)

	limitStore, err := middleware.NewRateLimitStore(redisClient)
	if err != nil {
		log.Fatalf("ошибка подготовки rate limit: %v", err)
	}

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Health:        httpHandlers.NewHealthHandler(dbConn, redisClient, hub),
		WS:            httpHandlers.NewWSHandler(hub, tokenManager, userRepo, cfg.AllowedOrigins),
		Jobs:          httpHandlers.NewJobHandler(jobService),
		Payments:      httpHandlers.NewPaymentHandler(ledgerService),
		Admin:         httpHandlers.NewAdminHandler(withdrawalService, ledgerService),
		Chats:         httpHandlers.NewChatHandler(chatService),
		Notifications: httpHandlers.NewNotificationHandler(notificationService, deviceService),
	}, httpRouter.Auth{
		Tokens:     tokenManager,
		Principals: userRepo,
	}, limitStore)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("ошибка остановки http сервера")
		}
	}()

	log.Infof("HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("сервер завершился с ошибкой: %v", err)
	}
}

// newPushSender возвращает FCM, если заданы учётные данные, иначе пуши не отправляются.
func newPushSender(ctx context.Context, credentialsFile string) push.Sender {
	if credentialsFile == "" {
		return push.NoopSender{}
	}
	sender, err := push.NewFCMSender(ctx, credentialsFile)
	if err != nil {
		logger.Log.WithError(err).Warn("main: FCM недоступен, пуш-уведомления отключены")
		return push.NoopSender{}
	}
	return sender
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		logger.Log.WithError(err).Error("main: ошибка закрытия базы")
	}
}

func closeRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		logger.Log.WithError(err).Error("main: ошибка закрытия redis")
	}
}

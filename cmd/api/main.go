package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mlavigne/notify-api/internal/config"
	"github.com/mlavigne/notify-api/internal/handler"
	authHandler "github.com/mlavigne/notify-api/internal/handler/auth"
	notificationHandler "github.com/mlavigne/notify-api/internal/handler/notification"
	userHandler "github.com/mlavigne/notify-api/internal/handler/user"
	"github.com/mlavigne/notify-api/internal/middleware"
	"github.com/mlavigne/notify-api/internal/repository/postgres"
	"github.com/mlavigne/notify-api/internal/router"
	"github.com/mlavigne/notify-api/internal/scheduler"
	authService "github.com/mlavigne/notify-api/internal/service/auth"
	notificationService "github.com/mlavigne/notify-api/internal/service/notification"
	responseService "github.com/mlavigne/notify-api/internal/service/response"
	userService "github.com/mlavigne/notify-api/internal/service/user"
	"github.com/mlavigne/notify-api/internal/storage"
	"github.com/mlavigne/notify-api/pkg/logger"
	"github.com/mlavigne/notify-api/pkg/messaging/redis"
	"github.com/mlavigne/notify-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.NewMetrics("notify", "api")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Initialize repositories
	base := postgres.NewBaseRepository(db)
	notificationRepo := postgres.NewNotificationRepository(base)
	userRepo := postgres.NewUserRepository(base)

	// Delivery-log broker; fired notifications are announced here.
	zl := log.Logger
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
		PoolSize:     10,
		MinIdleConns: 2,
	}, &zl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	// Scheduling engine: owns all deferred sends for this process.
	engine := scheduler.NewEngine(notificationRepo, broker, appLogger, appMetrics, scheduler.Config{
		RetryAttempts: cfg.Scheduler.RetryAttempts,
		RetryDelay:    cfg.Scheduler.RetryDelay,
	})

	// Initialize services
	notificationSvc := notificationService.NewService(notificationRepo, userRepo, engine, appLogger)
	responseSvc := responseService.NewService(notificationRepo, userRepo)
	userSvc := userService.NewService(userRepo, appLogger)
	authSvc := authService.NewService(cfg.Auth)

	store := storage.NewLocalStore(cfg.Uploads)

	// Initialize handlers
	authMiddleware := middleware.NewAuthMiddleware(authSvc)
	h := handler.NewHandler()
	notificationH := notificationHandler.NewHandler(notificationSvc, responseSvc, store)
	userH := userHandler.NewHandler(userSvc, store)
	authH := authHandler.NewHandler(authSvc)

	r := router.NewRouter(authMiddleware, notificationH, userH, authH, h, router.Config{
		RateLimitRPS:  50,
		RateBurst:     100,
		CORSConfig:    middleware.DefaultCORSConfig(),
		UploadsDir:    cfg.Uploads.Dir,
		MetricsPrefix: "notify",
	})
	r.Setup()

	// Re-register every still-pending deferred send before serving traffic.
	if err := engine.RecoverPending(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to recover pending notifications")
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	engine.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped")
}

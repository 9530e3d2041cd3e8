package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/FilipeAphrody/sentinel-identity/internal/config"
	delivery "github.com/FilipeAphrody/sentinel-identity/internal/delivery/http"
	"github.com/FilipeAphrody/sentinel-identity/internal/messaging"
	"github.com/FilipeAphrody/sentinel-identity/internal/repository"
	"github.com/FilipeAphrody/sentinel-identity/internal/usecase"
	"github.com/FilipeAphrody/sentinel-identity/pkg/security"

	_ "github.com/lib/pq" // Postgres driver
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// 1. Load Configuration from Environment
	// Missing signing secrets abort startup here.
	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Infrastructure (Persistence, Cache, Broker)
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer rdb.Close()

	publisher := messaging.NewPublisher(cfg.RabbitMQURL, logger)
	publisher.Connect()
	defer publisher.Close()

	// 3. Initialize Repositories and Security Primitives
	credRepo := repository.NewPostgresCredentialRepo(db)
	revocationRepo := repository.NewRedisRevocationRepo(rdb)
	tokens := security.NewTokenManager(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)

	// 4. Initialize Business Logic
	sessions := usecase.NewSessionUsecase(credRepo, revocationRepo, publisher, tokens, logger)

	// 5. Setup Framework and Global Middlewares
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.Secure())

	// 6. Register Delivery Handlers (Routes)
	accessGuard := delivery.AccessGuard(tokens, revocationRepo)
	refreshGuard := delivery.RefreshGuard(tokens, revocationRepo)

	v1 := e.Group("/v1/auth")
	delivery.NewAuthHandler(v1, sessions, revocationRepo, accessGuard, refreshGuard)

	// 7. Health Check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"status": "healthy",
			"broker": publisher.State().String(),
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// 8. Start Server with Graceful Shutdown
	go func() {
		logger.Info("starting sentinel identity server", "port", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server exiting")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/yolymatics/tutoring-service/internal/cache"
	"github.com/yolymatics/tutoring-service/internal/config"
	"github.com/yolymatics/tutoring-service/internal/handlers"
	"github.com/yolymatics/tutoring-service/internal/repositories/postgres"
	"github.com/yolymatics/tutoring-service/internal/services"
	"github.com/yolymatics/tutoring-service/internal/storage"
	"github.com/yolymatics/tutoring-service/internal/utils"
	"github.com/yolymatics/tutoring-service/internal/validator"
	"github.com/yolymatics/tutoring-service/pkg"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(slogLogger)
	logger := utils.NewSlogLogger(slogLogger)

	// Initialize database
	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize Redis (if configured); caches fall back to in-process LRUs
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Failed to initialize Redis, using local caches", "error", err)
			redisClient = nil
		}
	}
	cacheManager := cache.NewCacheManager(redisClient)

	// Initialize repositories
	repoManager := postgres.NewRepositoryManager(pkg.NewRepositoryConfig(cfg, db, redisClient, cacheManager))
	if err := repoManager.Initialize(); err != nil {
		log.Fatalf("Failed to initialize repositories: %v", err)
	}

	bus, err := pkg.NewEventBus(cfg, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize event bus: %v", err)
	}

	store, err := pkg.NewStore(cfg, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize file storage: %v", err)
	}

	// Initialize services
	serviceManager := services.NewServiceManager(services.Dependencies{
		Repo:      repoManager.GetRepository(),
		Cache:     cacheManager,
		Bus:       bus,
		Store:     store,
		Mailer:    pkg.NewMailer(cfg, slogLogger),
		Validator: validator.New(),
		Logger:    slogLogger,
	}, services.ServiceManagerConfig{
		Auth: services.AuthServiceConfig{
			LoginPath: cfg.Auth.LoginPath,
			PublicURL: cfg.Auth.PublicURL,
		},
		MaxUploadSize:     cfg.Upload.MaxSize,
		SubscribeResolver: true,
	})
	if err := serviceManager.Initialize(context.Background()); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.MaxMultipartMemory = cfg.Upload.MaxSize

	handlers.SetupMiddleware(router, logger, cfg.CORS.AllowedOrigins)

	routerConfig := handlers.RouterConfig{
		LoginPath:    cfg.Auth.LoginPath,
		SecureCookie: cfg.IsProduction(),
		Files:        true,
	}
	if local, ok := store.(*storage.LocalStore); ok {
		routerConfig.StaticURL = cfg.Upload.BaseURL
		routerConfig.StaticDir = local.Dir()
	}
	handlers.NewHandlerManager(serviceManager, routerConfig, logger).SetupRoutes(router)

	// Create HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"auth_provider", cfg.Auth.Provider,
			"storage", store.Name())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Stops the session resolver, then the event bus
	if err := serviceManager.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown services", "error", err)
	}

	if err := repoManager.Shutdown(ctx); err != nil {
		logger.Error("Failed to close repositories", "error", err)
	}

	logger.Info("Server exited")
}

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/grading-integrity-service/internal/cache"
	"github.com/SAP-F-2025/grading-integrity-service/internal/config"
	"github.com/SAP-F-2025/grading-integrity-service/internal/events"
	"github.com/SAP-F-2025/grading-integrity-service/internal/handlers"
	"github.com/SAP-F-2025/grading-integrity-service/internal/repositories/casdoor"
	"github.com/SAP-F-2025/grading-integrity-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/grading-integrity-service/internal/scorer"
	"github.com/SAP-F-2025/grading-integrity-service/internal/services"
	"github.com/SAP-F-2025/grading-integrity-service/internal/utils"
	"github.com/SAP-F-2025/grading-integrity-service/internal/validator"
	"github.com/SAP-F-2025/grading-integrity-service/pkg"
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
	logger := utils.NewSlogLogger(slogLogger)

	// Initialize database
	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize Redis (if configured)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			log.Printf("Warning: Failed to initialize Redis: %v", err)
		}
	}

	// Initialize repositories
	repoConfig := postgres.RepositoryConfig{
		DB:          db,
		RedisClient: redisClient,
		CasdoorConfig: casdoor.CasdoorConfig{
			Endpoint:         cfg.Casdoor.Endpoint,
			ClientID:         cfg.Casdoor.ClientID,
			ClientSecret:     cfg.Casdoor.ClientSecret,
			Certificate:      cfg.Casdoor.Cert,
			OrganizationName: cfg.Casdoor.Organization,
			ApplicationName:  cfg.Casdoor.Application,
		},
	}
	repoManager := postgres.NewRepositoryManager(repoConfig)
	if err := repoManager.Initialize(); err != nil {
		log.Fatalf("Failed to initialize repositories: %v", err)
	}

	// Initialize the grading job bus
	publisher, subscriber, err := setupEventBus(cfg, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize event bus: %v", err)
	}

	// Initialize the external scorer
	var extScorer scorer.ExternalScorer
	if cfg.ScorerURL != "" {
		extScorer = scorer.NewHTTPScorer(cfg.ScorerURL, cfg.ScorerAPIKey, cfg.ScorerTimeout)
	} else {
		logger.Warn("SCORER_URL not set, open-ended grading uses the mock scorer")
		extScorer = scorer.NewMockScorer()
	}

	// Submission-integrity caches need Redis; without it nonces fall
	// back to the database copy and rate limiting is disabled.
	var rateBudget *cache.RateBudget
	var nonceCache *cache.NonceCache
	if redisClient != nil {
		rateBudget = cache.NewRateBudget(redisClient, cfg.SubmitRateLimit, cfg.SubmitRateWindow)
		nonceCache = cache.NewNonceCache(redisClient)
	}

	// Initialize validator
	validator := validator.New()

	// Initialize services
	serviceManager := services.NewDefaultServiceManager(db, repoManager.GetRepository(), slogLogger, validator, services.Dependencies{
		Publisher:      publisher,
		Subscriber:     subscriber,
		Scorer:         extScorer,
		RateBudget:     rateBudget,
		NonceCache:     nonceCache,
		GradingWorkers: cfg.GradingWorkers,
	})
	if err := serviceManager.Initialize(context.Background()); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	// Initialize handlers
	handlerManager := handlers.NewHandlerManager(serviceManager, validator, logger, cfg.Casdoor, repoManager.GetRepository().User())

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Setup middleware
	handlers.SetupMiddleware(router, logger)

	// Setup routes
	handlerManager.SetupRoutes(router)

	// Create HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Shutdown services (stops the grading worker and closes the publisher)
	if err := serviceManager.Shutdown(ctx); err != nil {
		log.Printf("Failed to shutdown services: %v", err)
	}

	// Close the subscriber after the worker has drained
	if subscriber != nil {
		if err := subscriber.Close(); err != nil {
			log.Printf("Failed to close subscriber: %v", err)
		}
	}

	// Close database connection
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	// Close Redis connection
	if redisClient != nil {
		redisClient.Close()
	}

	logger.Info("Server exited")
}

// setupEventBus builds the grading job transport. Kafka is the
// production driver; the channel driver runs the worker in-process and
// is meant for development and tests.
func setupEventBus(cfg *config.Config, logger *slog.Logger) (events.EventPublisher, message.Subscriber, error) {
	switch cfg.QueueDriver {
	case "kafka":
		publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka publisher: %w", err)
		}
		subscriber, err := events.NewKafkaSubscriber(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka subscriber: %w", err)
		}
		return publisher, subscriber, nil

	default:
		publisher, subscriber := events.NewGoChannelBus(logger)
		return publisher, subscriber, nil
	}
}

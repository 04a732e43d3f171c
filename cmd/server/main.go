package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/tipcircle/backend/docs"
	"github.com/tipcircle/backend/internal/config"
	"github.com/tipcircle/backend/internal/database"
	"github.com/tipcircle/backend/internal/handlers"
	"github.com/tipcircle/backend/internal/logging"
	mW "github.com/tipcircle/backend/internal/middleware"
	"github.com/tipcircle/backend/internal/monitoring"
	"github.com/tipcircle/backend/internal/services"
	"github.com/tipcircle/backend/internal/storage"
	"github.com/tipcircle/backend/internal/storage/memory"
	"github.com/tipcircle/backend/internal/storage/postgres"
)

// @title Tip Ledger API
// @version 1.0
// @description Applies and reverses tip batches against profile and team balances
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	configErr := config.Load(".env")

	logger := logging.NewLogger()
	if configErr != nil {
		logger.WithError(configErr).Info("Config file not found, using environment and defaults")
	}

	cfg := config.LoadLedgerConfig()

	docs.SwaggerInfo.Host = "localhost:" + cfg.Port

	var db *sql.DB
	var store storage.LedgerStore
	switch cfg.Store {
	case "memory":
		logger.Warn("Using in-memory ledger store, balances are lost on restart")
		store = memory.NewLedgerStore(cfg.LockTimeout)
	default:
		db = database.InitDatabase(logger)
		defer db.Close()
		store = postgres.NewPostgresLedgerStore(db, cfg.LockTimeout)
	}

	redisClient := database.InitRedis(logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	trigger := newLeaderboardTrigger(cfg, redisClient, logger)
	if closer, ok := trigger.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close leaderboard trigger")
			}
		}()
	}

	metrics := monitoring.NewMetricsCollector("tip-ledger")

	tipOutcomeService := services.NewTipOutcomeService(store, trigger, logger,
		services.WithMetrics(metrics),
		services.WithNotifyTimeout(cfg.NotifyTimeout),
	)

	var guard *services.IdempotencyGuard
	if redisClient != nil {
		guard = services.NewIdempotencyGuard(redisClient, cfg.IdempotencyTTL)
	}
	tipOutcomeHandler := handlers.NewTipOutcomeHandler(tipOutcomeService, store, guard, logger, cfg.MaxBatchSize)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(metrics.MetricsMiddleware)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "healthy"}
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				status["status"] = "degraded"
				status["database"] = "unreachable"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	})

	r.Handle("/metrics", metrics.Handler())

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mW.AuthMiddleware(viper.GetString("jwt.secret_key")))

		r.Post("/tips/outcomes", tipOutcomeHandler.ApplyOutcome)
		r.Get("/profiles/{profileId}", tipOutcomeHandler.GetProfile)
		r.Get("/teams/{teamId}", tipOutcomeHandler.GetTeam)
	})

	// Start server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.WithField("port", cfg.Port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	// Let in-flight leaderboard refreshes reach their queue
	tipOutcomeService.Wait()

	logger.Info("Server stopped")
}

func newLeaderboardTrigger(cfg *config.LedgerConfig, redisClient *redis.Client, logger *logrus.Logger) services.LeaderboardTrigger {
	switch cfg.LeaderboardTransport {
	case "kafka":
		logger.WithFields(logrus.Fields{
			"brokers": cfg.KafkaBrokers,
			"topic":   cfg.KafkaTopic,
		}).Info("Leaderboard refreshes go to Kafka")
		return services.NewKafkaLeaderboardPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		if redisClient == nil {
			logger.Warn("Redis unavailable, leaderboard refreshes will only be logged")
			return services.NewLoggingLeaderboardTrigger(logger)
		}
		return services.NewRedisLeaderboardQueue(redisClient, cfg.LeaderboardQueue)
	}
}

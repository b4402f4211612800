package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/noteflow/noteflow/internal/adapter/ai"
	"github.com/noteflow/noteflow/internal/adapter/broker"
	httpadapter "github.com/noteflow/noteflow/internal/adapter/http"
	"github.com/noteflow/noteflow/internal/adapter/persistence"
	"github.com/noteflow/noteflow/internal/adapter/redisstore"
	"github.com/noteflow/noteflow/internal/config"
	"github.com/noteflow/noteflow/internal/events"
	"github.com/noteflow/noteflow/internal/ports"
	"github.com/noteflow/noteflow/internal/service/jwt"
	"github.com/noteflow/noteflow/internal/service/lock"
	"github.com/noteflow/noteflow/internal/service/logger"
	"github.com/noteflow/noteflow/internal/service/password"
	"github.com/noteflow/noteflow/internal/service/ratelimit"
	"github.com/noteflow/noteflow/internal/usecase"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	structuredLogger := logger.NewStructuredLogger(logger.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: "noteflow-api",
	})
	structuredLogger.Info(ctx, "Application starting", map[string]interface{}{
		"env": cfg.Environment,
	})

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		structuredLogger.Error(ctx, "Failed to open database", err, nil)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		structuredLogger.Error(ctx, "Failed to connect to database", err, nil)
		os.Exit(1)
	}

	kvStore, err := redisstore.New(cfg.RedisURL)
	if err != nil {
		structuredLogger.Error(ctx, "Failed to connect to Redis", err, nil)
		os.Exit(1)
	}
	defer kvStore.Close()

	mq, err := broker.Dial(cfg.RabbitMQURL, structuredLogger)
	if err != nil {
		structuredLogger.Error(ctx, "Failed to connect to RabbitMQ", err, nil)
		os.Exit(1)
	}
	defer mq.Close()

	publisher, err := events.NewPublisher(mq, structuredLogger)
	if err != nil {
		structuredLogger.Error(ctx, "Failed to set up event publisher", err, nil)
		os.Exit(1)
	}

	embedder, chatProvider := buildAIProviders(cfg)

	noteRepo := persistence.NewPostgresNoteRepository(db)
	auditRepo := persistence.NewPostgresAuditRepository(db)
	embeddingRepo := persistence.NewPostgresEmbeddingRepository(db)
	userRepo := persistence.NewPostgresUserRepository(db)
	usageRepo := persistence.NewPostgresUsageRepository(db)

	lockManager := lock.NewManager(kvStore, lock.Config{
		MaxAttempts: cfg.LockMaxAttempts,
		RetryDelay:  cfg.LockRetryDelay,
		RetryJitter: cfg.LockRetryJitter,
	}, structuredLogger)

	limiter := ratelimit.NewService(kvStore, ratelimit.Config{
		Enabled:  cfg.RateLimitEnabled,
		Capacity: cfg.RateLimitCapacity,
		Window:   cfg.RateLimitWindow,
	}, structuredLogger)

	tokens := jwt.NewService(cfg.JWTSecret, cfg.AccessTokenTTL)
	passwords := password.NewService(0)

	noteUseCase := usecase.NewNoteUseCase(noteRepo, publisher, lockManager, cfg.LockTTL, structuredLogger)
	chatUseCase := usecase.NewChatUseCase(noteRepo, embeddingRepo, usageRepo, embedder, chatProvider, cfg.ChatTopK, structuredLogger)
	auditUseCase := usecase.NewAuditUseCase(auditRepo)
	authUseCase := usecase.NewAuthUseCase(userRepo, passwords, tokens)

	server := httpadapter.NewServer(httpadapter.ServerConfig{
		Port:         cfg.ServerPort,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, noteUseCase, chatUseCase, auditUseCase, authUseCase, tokens, limiter, structuredLogger)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			structuredLogger.Error(ctx, "HTTP server failed", err, nil)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		structuredLogger.Error(ctx, "Graceful shutdown failed", err, nil)
	}
	structuredLogger.Info(ctx, "Application stopped", nil)
}

// buildAIProviders selects the configured AI backend. Mock mode keeps the
// whole stack runnable without an API key.
func buildAIProviders(cfg *config.Config) (ports.EmbeddingProvider, ports.ChatProvider) {
	if cfg.AIProvider == "mock" {
		mock := ai.NewMockAdapter(cfg.EmbeddingDim)
		return mock, mock
	}
	adapter := ai.NewOpenAIAdapter(ports.AIConfig{
		APIKey:         cfg.AIAPIKey,
		BaseURL:        cfg.AIBaseURL,
		EmbeddingModel: cfg.EmbeddingModel,
		ChatModel:      cfg.ChatModel,
		EmbeddingDim:   cfg.EmbeddingDim,
		TimeoutMs:      cfg.AITimeoutMs,
	})
	return adapter, adapter
}

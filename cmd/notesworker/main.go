package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/noteflow/noteflow/internal/adapter/ai"
	"github.com/noteflow/noteflow/internal/adapter/broker"
	"github.com/noteflow/noteflow/internal/adapter/persistence"
	"github.com/noteflow/noteflow/internal/config"
	"github.com/noteflow/noteflow/internal/ports"
	"github.com/noteflow/noteflow/internal/service/logger"
	"github.com/noteflow/noteflow/internal/worker"
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
		ServiceName: "noteflow-notes-worker",
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

	mq, err := broker.Dial(cfg.RabbitMQURL, structuredLogger)
	if err != nil {
		structuredLogger.Error(ctx, "Failed to connect to RabbitMQ", err, nil)
		os.Exit(1)
	}
	defer mq.Close()

	var embedder ports.EmbeddingProvider
	if cfg.AIProvider == "mock" {
		embedder = ai.NewMockAdapter(cfg.EmbeddingDim)
	} else {
		embedder = ai.NewOpenAIAdapter(ports.AIConfig{
			APIKey:         cfg.AIAPIKey,
			BaseURL:        cfg.AIBaseURL,
			EmbeddingModel: cfg.EmbeddingModel,
			ChatModel:      cfg.ChatModel,
			EmbeddingDim:   cfg.EmbeddingDim,
			TimeoutMs:      cfg.AITimeoutMs,
		})
	}

	embeddingWorker, err := worker.NewEmbeddingWorker(mq, persistence.NewPostgresEmbeddingRepository(db), embedder, structuredLogger)
	if err != nil {
		structuredLogger.Error(ctx, "Failed to set up embedding worker", err, nil)
		os.Exit(1)
	}
	if err := embeddingWorker.Start(); err != nil {
		structuredLogger.Error(ctx, "Failed to start embedding worker", err, nil)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := embeddingWorker.Stop(); err != nil {
		structuredLogger.Error(ctx, "Failed to stop embedding worker", err, nil)
	}
	structuredLogger.Info(ctx, "Notes worker stopped", nil)
}

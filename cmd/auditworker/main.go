package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/noteflow/noteflow/internal/adapter/broker"
	"github.com/noteflow/noteflow/internal/adapter/persistence"
	"github.com/noteflow/noteflow/internal/config"
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
		ServiceName: "noteflow-audit-worker",
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

	auditWorker, err := worker.NewAuditWorker(mq, persistence.NewPostgresAuditRepository(db), structuredLogger)
	if err != nil {
		structuredLogger.Error(ctx, "Failed to set up audit worker", err, nil)
		os.Exit(1)
	}
	if err := auditWorker.Start(); err != nil {
		structuredLogger.Error(ctx, "Failed to start audit worker", err, nil)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Stop waits for the in-flight message before returning, so a handled
	// but unacked event is never lost on shutdown.
	if err := auditWorker.Stop(); err != nil {
		structuredLogger.Error(ctx, "Failed to stop audit worker", err, nil)
	}
	structuredLogger.Info(ctx, "Audit worker stopped", nil)
}

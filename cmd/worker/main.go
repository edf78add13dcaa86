package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BboySticker/serverless/internal/app"
	"github.com/BboySticker/serverless/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := app.NewLogger(cfg)
	if err != nil {
		slog.Error("failed to create logger", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize notifier: %v", err)
	}

	source, err := a.NewSource(ctx)
	if err != nil {
		a.Close(context.Background())
		logger.Fatalf("Failed to initialize message source: %v", err)
	}

	runErr := a.RunWorker(ctx, source)

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.Close(closeCtx)

	if runErr != nil {
		logger.Fatalf("Worker stopped: %v", runErr)
	}

	logger.Info("Worker exited gracefully")
}

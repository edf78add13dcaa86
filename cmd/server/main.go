package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BboySticker/serverless/internal/app"
	"github.com/BboySticker/serverless/internal/config"
	"github.com/BboySticker/serverless/snshttp"
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

	s, err := snshttp.New(a.Handler, logger,
		snshttp.WithAllowedTopics(cfg.Server.AllowedTopics...),
		snshttp.WithMode(cfg.Server.Mode),
		snshttp.WithSignatureVerification(cfg.Server.VerifySignatures),
	)
	if err != nil {
		a.Close(context.Background())
		logger.Fatalf("Failed to create SNS endpoint: %v", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sweepDone := make(chan struct{})

	go func() {
		defer close(sweepDone)

		if err := a.RunSweeper(ctx); err != nil {
			logger.Errorf("Expired token sweeper failed: %v", err)
		}
	}()

	go func() {
		logger.WithField("address", srv.Addr).Info("Server starting")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	<-sweepDone
	a.Close(shutdownCtx)

	logger.Info("Server exited gracefully")
}

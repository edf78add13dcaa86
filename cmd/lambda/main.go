package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/BboySticker/serverless/internal/app"
	"github.com/BboySticker/serverless/internal/config"
	"github.com/aws/aws-lambda-go/lambda"
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

	ctx := context.Background()

	// Connections are reused across warm invocations.
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize notifier: %v", err)
	}

	lambda.StartWithOptions(a.Handler.HandleSNSEvent, lambda.WithEnableSIGTERM(func() {
		a.Close(ctx)
	}))
}

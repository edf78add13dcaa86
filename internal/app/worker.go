package app

import (
	"context"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/BboySticker/serverless/notifier"
	"github.com/BboySticker/serverless/pubsub"
	"github.com/BboySticker/serverless/sqs"
	"golang.org/x/sync/errgroup"
)

// Source delivers queue messages to a sink channel and closes it when done.
type Source interface {
	Name() string
	Receive(ctx context.Context, sinkCh chan<- *notifier.QueueItem) error
}

// NewSource creates the configured queue source.
//
//nolint:ireturn // The source kind is chosen at runtime
func (a *App) NewSource(ctx context.Context) (Source, error) {
	cfg := a.Config

	if err := cfg.ValidateSource(); err != nil {
		return nil, err
	}

	switch cfg.Source.Kind {
	case "sqs":
		if err := a.loadAWS(ctx); err != nil {
			return nil, err
		}

		c, err := sqs.New(&a.AWS, cfg.SQS.Queue, a.Logger,
			sqs.WithVisibilityTimeout(cfg.SQS.VisibilityTimeout),
		).Init(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQS source: %w", err)
		}

		return c, nil

	case "pubsub":
		gcp, err := gcppubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
		}

		a.addCloser(func(context.Context) error { return gcp.Close() })

		c, err := pubsub.New(gcp, cfg.PubSub.Subscription, a.Logger)
		if err != nil {
			return nil, err
		}

		if _, err := c.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize Pub/Sub source: %w", err)
		}

		return c, nil

	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

// RunWorker consumes source until ctx is cancelled, alongside the expired
// token sweeper. Messages already delivered to the consumer are still
// handled after cancellation; the consumer stops once the source closes
// its channel.
func (a *App) RunWorker(ctx context.Context, source Source) error {
	itemCh := make(chan *notifier.QueueItem)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCanceled(source.Receive(gctx, itemCh))
	})

	g.Go(func() error {
		return a.Handler.Consume(context.WithoutCancel(gctx), itemCh)
	})

	g.Go(func() error {
		return a.RunSweeper(gctx)
	})

	a.Logger.WithField("source", source.Name()).Info("Worker started")

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

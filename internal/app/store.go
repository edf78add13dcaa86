package app

import (
	"context"
	"fmt"

	"github.com/BboySticker/serverless/dynamodb"
	"github.com/BboySticker/serverless/internal/config"
	"github.com/BboySticker/serverless/memory"
	"github.com/BboySticker/serverless/notifier"
	"github.com/BboySticker/serverless/postgres"
	"github.com/BboySticker/serverless/redis"
	goredis "github.com/redis/go-redis/v9"
)

func (a *App) newStore(ctx context.Context, o *options) (notifier.TokenStore, error) {
	cfg := a.Config

	switch cfg.Store.Backend {
	case "memory":
		a.Logger.Info("Using the in-memory token store, debouncing is not shared between instances")
		return memory.New(), nil

	case "dynamodb":
		if err := a.loadAWS(ctx); err != nil {
			return nil, err
		}

		c := dynamodb.New(&a.AWS, cfg.DynamoDB.Table,
			dynamodb.WithConsistentRead(cfg.DynamoDB.ConsistentRead),
			dynamodb.WithTTLValidation(cfg.DynamoDB.ValidateTTL),
		)

		if err := c.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to DynamoDB: %w", err)
		}

		if err := c.Init(ctx, cfg.DynamoDB.SkipInit); err != nil {
			return nil, fmt.Errorf("failed to initialize DynamoDB table %s: %w", cfg.DynamoDB.Table, err)
		}

		return c, nil

	case "postgres":
		c := postgres.New(postgresOptions(cfg)...)

		if err := c.Connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}

		a.addCloser(c.Close)

		if err := c.Init(ctx, false); err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres schema: %w", err)
		}

		return c, nil

	case "redis":
		rdb := o.redisClient
		if rdb == nil {
			rdb = goredis.NewClient(&goredis.Options{
				Addr:     cfg.Redis.Address,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
		}

		c, err := redis.New(rdb, redis.WithKeyPrefix(cfg.Redis.KeyPrefix))
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis store: %w", err)
		}

		a.addCloser(func(context.Context) error { return c.Close() })

		if err := c.Ping(ctx); err != nil {
			return nil, fmt.Errorf("failed to reach Redis at %s: %w", cfg.Redis.Address, err)
		}

		return c, nil

	default:
		return nil, fmt.Errorf("unknown token store backend %q", cfg.Store.Backend)
	}
}

func postgresOptions(cfg *config.Config) []postgres.Option {
	opts := []postgres.Option{
		postgres.WithHost(cfg.Postgres.Host),
		postgres.WithPort(cfg.Postgres.Port),
		postgres.WithUser(cfg.Postgres.User),
		postgres.WithPassword(cfg.Postgres.Password),
		postgres.WithDatabase(cfg.Postgres.Database),
		postgres.WithSSLMode(postgres.SSLMode(cfg.Postgres.SSLMode)),
		postgres.WithTokensTable(cfg.Postgres.Table),
	}

	if cfg.Postgres.TTLCleanupInterval > 0 {
		opts = append(opts, postgres.WithTTLCleanupInterval(cfg.Postgres.TTLCleanupInterval))
	}

	return opts
}

// Package app builds the notifier, its token store, mailer and message
// sources from a config.Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/BboySticker/serverless/internal/config"
	"github.com/BboySticker/serverless/logging"
	"github.com/BboySticker/serverless/notifier"
	"github.com/BboySticker/serverless/ses"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	goredis "github.com/redis/go-redis/v9"
	"github.com/slackmgr/types"
)

// Option overrides a dependency that New would otherwise build from config.
type Option func(*options)

type options struct {
	store       notifier.TokenStore
	mailer      notifier.Mailer
	redisClient goredis.UniversalClient
}

// WithStore uses store instead of the configured backend.
func WithStore(store notifier.TokenStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithMailer uses mailer instead of SES.
func WithMailer(mailer notifier.Mailer) Option {
	return func(o *options) {
		o.mailer = mailer
	}
}

// WithRedisClient uses rdb for the redis backend instead of dialing
// redis.address.
func WithRedisClient(rdb goredis.UniversalClient) Option {
	return func(o *options) {
		o.redisClient = rdb
	}
}

// App holds the wired components. Call Close when done.
type App struct {
	Config  *config.Config
	AWS     aws.Config
	Logger  types.Logger
	Store   notifier.TokenStore
	Mailer  notifier.Mailer
	Handler *notifier.Handler

	closers   []func(context.Context) error
	awsLoaded bool
}

// NewLogger creates the process logger from the log settings.
func NewLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format == "json")
}

// LoadAWSConfig resolves AWS credentials and region. A configured endpoint
// is applied to every service client.
func LoadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if cfg.AWS.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
	}

	return awsCfg, nil
}

// New wires the store, the mailer and the notification handler.
func New(ctx context.Context, cfg *config.Config, logger types.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{
		Config: cfg,
		Logger: logger.WithField("component", "app"),
	}

	store := o.store
	if store == nil {
		s, err := a.newStore(ctx, o)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}

		store = s
	}

	mailer := o.mailer
	if mailer == nil {
		if err := a.loadAWS(ctx); err != nil {
			a.Close(ctx)
			return nil, err
		}

		m := ses.New(&a.AWS,
			ses.WithSendRate(cfg.SES.SendRate),
			ses.WithMaxAttempts(cfg.SES.MaxAttempts),
			ses.WithConfigurationSet(cfg.SES.ConfigurationSet),
		)

		if err := m.Connect(); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to create SES mailer: %w", err)
		}

		mailer = m
	}

	handler, err := notifier.New(store, mailer, logger,
		notifier.WithDebounceWindow(cfg.Debounce.Window),
		notifier.WithSubject(cfg.Email.Subject),
		notifier.WithLinkScheme(cfg.Email.LinkScheme),
	)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Store = store
	a.Mailer = mailer
	a.Handler = handler

	a.Logger.
		WithField("store", cfg.Store.Backend).
		WithField("debounce_window", cfg.Debounce.Window.String()).
		Info("Notification handler initialized")

	return a, nil
}

func (a *App) loadAWS(ctx context.Context) error {
	if a.awsLoaded {
		return nil
	}

	awsCfg, err := LoadAWSConfig(ctx, a.Config)
	if err != nil {
		return err
	}

	a.AWS = awsCfg
	a.awsLoaded = true

	return nil
}

func (a *App) addCloser(f func(context.Context) error) {
	a.closers = append(a.closers, f)
}

// Close releases connections in reverse order of creation. Errors are
// logged.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.Logger.Errorf("Failed to close resource: %v", err)
		}
	}

	a.closers = nil
}

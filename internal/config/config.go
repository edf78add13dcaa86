package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable override.
// Example: BILLNOTIFY_STORE_BACKEND overrides store.backend.
const EnvPrefix = "BILLNOTIFY"

// Config holds all application configuration.
type Config struct {
	AWS      AWSConfig      `mapstructure:"aws"`
	Store    StoreConfig    `mapstructure:"store"`
	DynamoDB DynamoDBConfig `mapstructure:"dynamodb"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Debounce DebounceConfig `mapstructure:"debounce"`
	Email    EmailConfig    `mapstructure:"email"`
	SES      SESConfig      `mapstructure:"ses"`
	Source   SourceConfig   `mapstructure:"source"`
	SQS      SQSConfig      `mapstructure:"sqs"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// AWSConfig holds AWS SDK settings. Endpoint overrides the service endpoint
// for every AWS client, typically for LocalStack.
type AWSConfig struct {
	Region   string `mapstructure:"region"   validate:"required"`
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
}

// StoreConfig selects the token store backend.
type StoreConfig struct {
	Backend       string        `mapstructure:"backend"        validate:"oneof=memory dynamodb postgres redis"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gte=0"`
}

type DynamoDBConfig struct {
	Table          string `mapstructure:"table"`
	ConsistentRead bool   `mapstructure:"consistent_read"`
	ValidateTTL    bool   `mapstructure:"validate_ttl"`
	SkipInit       bool   `mapstructure:"skip_init"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"     validate:"gte=1,lte=65535"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	Table    string `mapstructure:"table"`

	// TTLCleanupInterval starts the client's own cleanup goroutine when
	// positive. Use it instead of store.sweep_interval for processes, such as
	// the Lambda handler, that do not run the sweeper.
	TTLCleanupInterval time.Duration `mapstructure:"ttl_cleanup_interval" validate:"gte=0"`
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"         validate:"gte=0"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// DebounceConfig holds the suppression window applied per recipient.
type DebounceConfig struct {
	Window time.Duration `mapstructure:"window" validate:"gt=0"`
}

type EmailConfig struct {
	Subject    string `mapstructure:"subject"     validate:"required"`
	LinkScheme string `mapstructure:"link_scheme" validate:"oneof=http https"`
}

type SESConfig struct {
	SendRate         float64 `mapstructure:"send_rate"         validate:"gte=0"`
	MaxAttempts      int     `mapstructure:"max_attempts"      validate:"gte=1,lte=10"`
	ConfigurationSet string  `mapstructure:"configuration_set"`
}

// SourceConfig selects where the worker reads notifications from.
type SourceConfig struct {
	Kind string `mapstructure:"kind" validate:"oneof=sqs pubsub"`
}

type SQSConfig struct {
	Queue             string `mapstructure:"queue"`
	VisibilityTimeout int32  `mapstructure:"visibility_timeout" validate:"gte=10,lte=3600"`
}

type PubSubConfig struct {
	ProjectID    string `mapstructure:"project_id"`
	Subscription string `mapstructure:"subscription"`
}

// ServerConfig holds settings for the SNS HTTP endpoint.
type ServerConfig struct {
	Port             int      `mapstructure:"port"              validate:"gte=1,lte=65535"`
	Mode             string   `mapstructure:"mode"              validate:"oneof=debug release test"`
	AllowedTopics    []string `mapstructure:"allowed_topics"`
	VerifySignatures bool     `mapstructure:"verify_signatures"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// Load reads configuration from config.yaml, a .env file and environment
// variables, in increasing order of precedence.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	_ = godotenv.Load()

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Comma-separated list from the environment.
	if topics := v.GetString("server.allowed_topics"); topics != "" && len(cfg.Server.AllowedTopics) == 0 {
		for topic := range strings.SplitSeq(topics, ",") {
			if topic = strings.TrimSpace(topic); topic != "" {
				cfg.Server.AllowedTopics = append(cfg.Server.AllowedTopics, topic)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("store.backend", "dynamodb")
	v.SetDefault("store.sweep_interval", 0)
	v.SetDefault("dynamodb.table", "csye6225")
	v.SetDefault("dynamodb.consistent_read", false)
	v.SetDefault("dynamodb.validate_ttl", true)
	v.SetDefault("dynamodb.skip_init", false)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.database", "postgres")
	v.SetDefault("postgres.ssl_mode", "prefer")
	v.SetDefault("postgres.table", "notification_tokens")
	v.SetDefault("postgres.ttl_cleanup_interval", 0)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "billnotify:token:")
	v.SetDefault("debounce.window", time.Hour)
	v.SetDefault("email.subject", "Due Bills")
	v.SetDefault("email.link_scheme", "http")
	v.SetDefault("ses.send_rate", 1.0)
	v.SetDefault("ses.max_attempts", 1)
	v.SetDefault("ses.configuration_set", "")
	v.SetDefault("source.kind", "sqs")
	v.SetDefault("sqs.queue", "")
	v.SetDefault("sqs.visibility_timeout", 30)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.subscription", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allowed_topics", "")
	v.SetDefault("server.verify_signatures", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks enumerations and ranges, then the settings required by
// the selected backend.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch c.Store.Backend {
	case "dynamodb":
		if c.DynamoDB.Table == "" {
			return errors.New("invalid configuration: dynamodb.table is required for the dynamodb store")
		}
	case "postgres":
		if c.Postgres.Host == "" || c.Postgres.Database == "" {
			return errors.New("invalid configuration: postgres.host and postgres.database are required for the postgres store")
		}
	case "redis":
		if c.Redis.Address == "" {
			return errors.New("invalid configuration: redis.address is required for the redis store")
		}
	}

	return nil
}

// ValidateSource checks the settings required by the selected worker source.
func (c *Config) ValidateSource() error {
	switch c.Source.Kind {
	case "sqs":
		if c.SQS.Queue == "" {
			return errors.New("invalid configuration: sqs.queue is required for the sqs source")
		}
	case "pubsub":
		if c.PubSub.ProjectID == "" || c.PubSub.Subscription == "" {
			return errors.New("invalid configuration: pubsub.project_id and pubsub.subscription are required for the pubsub source")
		}
	}

	return nil
}

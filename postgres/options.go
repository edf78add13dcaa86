package postgres

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// validIdentifier matches valid PostgreSQL unquoted identifiers.
// Must start with letter or underscore, followed by letters, digits, or underscores.
var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultTokensTable is the default name of the notification token table.
const DefaultTokensTable = "notification_tokens"

// SSLMode represents PostgreSQL SSL connection modes.
type SSLMode string

const (
	SSLModeDisable    SSLMode = "disable"     // No SSL
	SSLModeAllow      SSLMode = "allow"       // Try non-SSL first, then SSL
	SSLModePrefer     SSLMode = "prefer"      // Try SSL first, then non-SSL (default)
	SSLModeRequire    SSLMode = "require"     // Only SSL (no certificate verification)
	SSLModeVerifyCA   SSLMode = "verify-ca"   // SSL with CA verification
	SSLModeVerifyFull SSLMode = "verify-full" // SSL with CA and hostname verification
)

// Option is a functional option for configuring a Client.
type Option func(*options)

type options struct {
	host                      string
	port                      int
	user                      string
	password                  string
	database                  string
	sslMode                   SSLMode
	poolMaxConnections        *int32
	poolMinConnections        *int32
	poolMaxConnectionLifetime *time.Duration
	poolMaxConnectionIdleTime *time.Duration
	poolHealthCheckPeriod     *time.Duration
	tokensTable               string
	ttlCleanupInterval        *time.Duration
	clock                     func() time.Time
}

func newOptions() *options {
	return &options{
		host:        "localhost",
		port:        5432,
		sslMode:     SSLModePrefer,
		tokensTable: DefaultTokensTable,
		clock:       time.Now,
	}
}

func WithHost(host string) Option {
	return func(o *options) { o.host = host }
}

func WithPort(port int) Option {
	return func(o *options) { o.port = port }
}

func WithUser(user string) Option {
	return func(o *options) { o.user = user }
}

func WithPassword(password string) Option {
	return func(o *options) { o.password = password }
}

func WithDatabase(database string) Option {
	return func(o *options) { o.database = database }
}

func WithSSLMode(mode SSLMode) Option {
	return func(o *options) { o.sslMode = mode }
}

func WithPoolMaxConnections(n int32) Option {
	return func(o *options) { o.poolMaxConnections = &n }
}

func WithPoolMinConnections(n int32) Option {
	return func(o *options) { o.poolMinConnections = &n }
}

func WithPoolMaxConnectionLifetime(d time.Duration) Option {
	return func(o *options) { o.poolMaxConnectionLifetime = &d }
}

func WithPoolMaxConnectionIdleTime(d time.Duration) Option {
	return func(o *options) { o.poolMaxConnectionIdleTime = &d }
}

func WithPoolHealthCheckPeriod(d time.Duration) Option {
	return func(o *options) { o.poolHealthCheckPeriod = &d }
}

// WithTokensTable sets the token table name. Default: "notification_tokens".
func WithTokensTable(name string) Option {
	return func(o *options) { o.tokensTable = name }
}

// WithTTLCleanupInterval enables a background goroutine, started by
// [Client.Init], that deletes expired tokens at the given interval. Cleanup
// is disabled by default: expired tokens never suppress notifications, so
// leaving them in place only costs storage.
func WithTTLCleanupInterval(d time.Duration) Option {
	return func(o *options) { o.ttlCleanupInterval = &d }
}

// WithClock sets the clock used to decide which tokens have expired during
// cleanup. Defaults to [time.Now].
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

type dbRow struct {
	DataType   string
	IsNullable string
}

func (o *options) validate() error {
	if o.port < 1 || o.port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", o.port)
	}

	if o.user == "" {
		return errors.New("user is required")
	}

	if o.database == "" {
		return errors.New("database is required")
	}

	if !o.sslMode.isValid() {
		return fmt.Errorf("invalid SSL mode: %s", o.sslMode)
	}

	if err := validateTableName(o.tokensTable); err != nil {
		return fmt.Errorf("invalid tokens table name: %w", err)
	}

	if o.ttlCleanupInterval != nil && *o.ttlCleanupInterval <= 0 {
		return errors.New("TTL cleanup interval must be positive")
	}

	if o.clock == nil {
		return errors.New("clock cannot be nil")
	}

	return nil
}

func validateTableName(name string) error {
	if !validIdentifier.MatchString(name) {
		return fmt.Errorf("table name %q contains invalid characters", name)
	}

	return nil
}

// isValid returns true if the SSL mode is a valid PostgreSQL SSL mode.
func (s SSLMode) isValid() bool {
	switch s {
	case SSLModeDisable, SSLModeAllow, SSLModePrefer, SSLModeRequire, SSLModeVerifyCA, SSLModeVerifyFull:
		return true
	default:
		return false
	}
}

func (o *options) connectionString() string {
	host := net.JoinHostPort(o.host, strconv.Itoa(o.port))

	user := url.QueryEscape(o.user)

	if o.password != "" {
		user += ":" + url.QueryEscape(o.password)
	}

	return fmt.Sprintf("postgres://%s@%s/%s?sslmode=%s", user, host, o.database, o.sslMode)
}

func (o *options) createStatements() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (recipient_key text PRIMARY KEY, link text NOT NULL, expires_at bigint NOT NULL);`, o.tokensTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_expires_at_idx ON %s (expires_at);`, o.tokensTable, o.tokensTable),
	}
}

func (o *options) dropStatements() []string {
	return []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE;", o.tokensTable),
	}
}

func (o *options) verifyCurrentDatabaseVersion(actualRows map[string]*dbRow) error {
	expectedRows := map[string]*dbRow{
		o.tokensTable + ".recipient_key": {DataType: "text", IsNullable: "NO"},
		o.tokensTable + ".link":          {DataType: "text", IsNullable: "NO"},
		o.tokensTable + ".expires_at":    {DataType: "bigint", IsNullable: "NO"},
	}

	for id, expectedRow := range expectedRows {
		actual, ok := actualRows[id]
		if !ok {
			return fmt.Errorf("expected row '%s' not found in current database schema", id)
		}

		if !strings.EqualFold(actual.DataType, expectedRow.DataType) {
			return fmt.Errorf("data type mismatch for '%s': expected %s, got %s", id, expectedRow.DataType, actual.DataType)
		}

		if !strings.EqualFold(actual.IsNullable, expectedRow.IsNullable) {
			return fmt.Errorf("nullability mismatch for '%s': expected %s, got %s", id, expectedRow.IsNullable, actual.IsNullable)
		}
	}

	return nil
}

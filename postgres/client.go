package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BboySticker/serverless/notifier"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var errNotConnected = errors.New("client is not connected")

// ErrTokenNotFound is returned by UpdateToken when no row exists for the
// recipient.
var ErrTokenNotFound = errors.New("token not found")

// pool defines the interface for database operations.
// This interface is satisfied by *pgxpool.Pool and can be mocked for testing.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
	Ping(ctx context.Context) error
}

// Client is a PostgreSQL-backed implementation of [notifier.TokenStore].
type Client struct {
	conn      pool
	opts      *options
	cancelTTL context.CancelFunc
}

func New(opts ...Option) *Client {
	o := newOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Client{opts: o}
}

func (c *Client) Connect(ctx context.Context) error {
	// Close existing connection if any to prevent leaks
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("invalid Postgres db configuration: %w", err)
	}

	config, err := pgxpool.ParseConfig(c.opts.connectionString())
	if err != nil {
		return fmt.Errorf("failed to parse Postgres db connection string: %w", err)
	}

	if c.opts.poolMaxConnections != nil {
		config.MaxConns = *c.opts.poolMaxConnections
	}

	if c.opts.poolMinConnections != nil {
		config.MinConns = *c.opts.poolMinConnections
	}

	if c.opts.poolMaxConnectionLifetime != nil {
		config.MaxConnLifetime = *c.opts.poolMaxConnectionLifetime
	}

	if c.opts.poolMaxConnectionIdleTime != nil {
		config.MaxConnIdleTime = *c.opts.poolMaxConnectionIdleTime
	}

	if c.opts.poolHealthCheckPeriod != nil {
		config.HealthCheckPeriod = *c.opts.poolHealthCheckPeriod
	}

	conn, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create new Postgres connection pool: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping Postgres db: %w", err)
	}

	c.conn = conn

	return nil
}

func (c *Client) Close(_ context.Context) error {
	if c.cancelTTL != nil {
		c.cancelTTL()
		c.cancelTTL = nil
	}

	if c.conn == nil {
		return nil
	}

	c.conn.Close()

	c.conn = nil

	return nil
}

// Init creates the token table and its expiry index if they do not exist,
// then verifies the column layout unless skipSchemaValidation is true. If a
// cleanup interval was configured, Init also starts the background cleanup
// goroutine, which runs until [Client.Close].
func (c *Client) Init(ctx context.Context, skipSchemaValidation bool) error {
	if c.conn == nil {
		return errNotConnected
	}

	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin init transaction: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }() // No-op if committed

	for _, sql := range c.opts.createStatements() {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to execute create statement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit init transaction: %w", err)
	}

	if !skipSchemaValidation {
		if err := c.verifySchema(ctx); err != nil {
			return err
		}
	}

	if c.cancelTTL == nil && c.opts.ttlCleanupInterval != nil {
		ttlCtx, cancel := context.WithCancel(context.Background())
		c.cancelTTL = cancel

		//nolint:contextcheck // The cleanup goroutine must outlive the Init call.
		go c.runTTLCleanup(ttlCtx)
	}

	return nil
}

func (c *Client) verifySchema(ctx context.Context) error {
	query := "SELECT table_name, column_name, data_type, is_nullable FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1 ORDER BY ordinal_position"

	rows, err := c.conn.Query(ctx, query, c.opts.tokensTable)
	if err != nil {
		return fmt.Errorf("failed to query information schema: %w", err)
	}

	defer rows.Close()

	infoRows := map[string]*dbRow{}

	for rows.Next() {
		var table, column string
		infoRow := &dbRow{}

		if err := rows.Scan(&table, &column, &infoRow.DataType, &infoRow.IsNullable); err != nil {
			return fmt.Errorf("failed to scan row from information schema: %w", err)
		}

		infoRows[table+"."+column] = infoRow
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating over rows from information schema: %w", err)
	}

	if err := c.opts.verifyCurrentDatabaseVersion(infoRows); err != nil {
		return fmt.Errorf("failed to verify current database version: %w", err)
	}

	return nil
}

// DropAllData drops the token table. Intended for tests only.
func (c *Client) DropAllData(ctx context.Context) error {
	if c.conn == nil {
		return errNotConnected
	}

	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin drop tables transaction: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }() // No-op if committed

	for _, sql := range c.opts.dropStatements() {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to execute drop statement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit drop tables transaction: %w", err)
	}

	return nil
}

// FindToken returns the recipient's token, or (nil, nil) if there is none.
func (c *Client) FindToken(ctx context.Context, recipient string) (*notifier.Token, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}

	if recipient == "" {
		return nil, errors.New("recipient cannot be empty")
	}

	query := fmt.Sprintf("SELECT recipient_key, link, expires_at FROM %s WHERE recipient_key = $1", c.opts.tokensTable)

	row := c.conn.QueryRow(ctx, query, recipient)

	var token notifier.Token

	if err := row.Scan(&token.RecipientKey, &token.Link, &token.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil //nolint:nilnil
		}

		return nil, fmt.Errorf("failed to find token in Postgres db: %w", err)
	}

	return &token, nil
}

// CreateToken inserts token. A concurrent insert for the same recipient is
// resolved by overwriting the existing row.
func (c *Client) CreateToken(ctx context.Context, token *notifier.Token) error {
	if c.conn == nil {
		return errNotConnected
	}

	if err := validateToken(token); err != nil {
		return err
	}

	sql := fmt.Sprintf("INSERT INTO %s (recipient_key, link, expires_at) VALUES ($1, $2, $3) ON CONFLICT (recipient_key) DO UPDATE SET link = EXCLUDED.link, expires_at = EXCLUDED.expires_at", c.opts.tokensTable)

	if _, err := c.conn.Exec(ctx, sql, token.RecipientKey, token.Link, token.ExpiresAt); err != nil {
		return fmt.Errorf("failed to create token in Postgres db: %w", err)
	}

	return nil
}

// UpdateToken overwrites the link and expiry of an existing token. It returns
// [ErrTokenNotFound] if the row has been removed since it was read.
func (c *Client) UpdateToken(ctx context.Context, token *notifier.Token) error {
	if c.conn == nil {
		return errNotConnected
	}

	if err := validateToken(token); err != nil {
		return err
	}

	sql := fmt.Sprintf("UPDATE %s SET link = $2, expires_at = $3 WHERE recipient_key = $1", c.opts.tokensTable)

	tag, err := c.conn.Exec(ctx, sql, token.RecipientKey, token.Link, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to update token in Postgres db: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w for recipient %s", ErrTokenNotFound, token.RecipientKey)
	}

	return nil
}

// DeleteExpired removes tokens whose expiry is at or before the current time
// and returns the number of rows deleted.
func (c *Client) DeleteExpired(ctx context.Context) (int, error) {
	if c.conn == nil {
		return 0, errNotConnected
	}

	sql := fmt.Sprintf("DELETE FROM %s WHERE expires_at <= $1", c.opts.tokensTable)

	tag, err := c.conn.Exec(ctx, sql, c.opts.clock().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens from Postgres db: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

func (c *Client) runTTLCleanup(ctx context.Context) {
	ticker := time.NewTicker(*c.opts.ttlCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = c.DeleteExpired(ctx)
		}
	}
}

func validateToken(token *notifier.Token) error {
	if token == nil {
		return errors.New("token cannot be nil")
	}

	if token.RecipientKey == "" {
		return errors.New("token recipient key cannot be empty")
	}

	return nil
}

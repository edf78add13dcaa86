package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/BboySticker/serverless/notifier"
	goredis "github.com/redis/go-redis/v9"
)

const (
	linkField      = "link"
	expiresAtField = "expires_at"
)

// ErrSchemaMismatch is returned when a stored token hash lacks a valid expiry.
var ErrSchemaMismatch = errors.New("token hash does not match the expected schema")

// Client is a Redis-backed implementation of [notifier.TokenStore].
type Client struct {
	rdb  goredis.UniversalClient
	opts *Options
}

// New creates a Client on top of an existing go-redis client.
func New(rdb goredis.UniversalClient, opts ...Option) (*Client, error) {
	if rdb == nil {
		return nil, errors.New("redis client cannot be nil")
	}

	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("invalid Redis options: %w", err)
	}

	return &Client{rdb: rdb, opts: options}, nil
}

// Ping verifies the Redis connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	return nil
}

// Close closes the underlying Redis client.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// FindToken returns the recipient's token, or (nil, nil) if there is none.
func (c *Client) FindToken(ctx context.Context, recipient string) (*notifier.Token, error) {
	if recipient == "" {
		return nil, errors.New("recipient cannot be empty")
	}

	fields, err := c.rdb.HGetAll(ctx, c.key(recipient)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read token from Redis: %w", err)
	}

	if len(fields) == 0 {
		return nil, nil //nolint:nilnil
	}

	raw, ok := fields[expiresAtField]
	if !ok {
		return nil, fmt.Errorf("%w: token for %s has no %s field", ErrSchemaMismatch, recipient, expiresAtField)
	}

	expiresAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: token for %s has invalid %s: %w", ErrSchemaMismatch, recipient, expiresAtField, err)
	}

	return &notifier.Token{
		RecipientKey: recipient,
		Link:         fields[linkField],
		ExpiresAt:    expiresAt,
	}, nil
}

// CreateToken writes token and sets the key expiry.
func (c *Client) CreateToken(ctx context.Context, token *notifier.Token) error {
	if err := c.write(ctx, token); err != nil {
		return fmt.Errorf("failed to create token in Redis: %w", err)
	}

	return nil
}

// UpdateToken overwrites the link and expiry of the recipient's token. The
// hash is recreated if Redis has evicted it in the meantime.
func (c *Client) UpdateToken(ctx context.Context, token *notifier.Token) error {
	if err := c.write(ctx, token); err != nil {
		return fmt.Errorf("failed to update token in Redis: %w", err)
	}

	return nil
}

func (c *Client) write(ctx context.Context, token *notifier.Token) error {
	if token == nil {
		return errors.New("token cannot be nil")
	}

	if token.RecipientKey == "" {
		return errors.New("token recipient key cannot be empty")
	}

	key := c.key(token.RecipientKey)
	evictAt := time.Unix(token.ExpiresAt, 0).Add(c.opts.evictionGrace)

	_, err := c.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key, linkField, token.Link, expiresAtField, strconv.FormatInt(token.ExpiresAt, 10))
		pipe.ExpireAt(ctx, key, evictAt)
		return nil
	})

	return err
}

func (c *Client) key(recipient string) string {
	return c.opts.keyPrefix + recipient
}

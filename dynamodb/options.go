package dynamodb

import (
	"errors"
	"time"
)

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the configuration for a [Client].
type Options struct {
	keyAttr        string
	linkAttr       string
	expirationAttr string
	consistentRead bool
	validateTTL    bool
	dynamoDBAPI    API
	clock          func() time.Time
}

func newOptions() *Options {
	return &Options{
		keyAttr:        DefaultKeyAttr,
		linkAttr:       DefaultLinkAttr,
		expirationAttr: DefaultExpirationAttr,
		validateTTL:    true,
		clock:          time.Now,
	}
}

func (o *Options) validate() error {
	if o.keyAttr == "" {
		return errors.New("key attribute name cannot be empty")
	}

	if o.linkAttr == "" {
		return errors.New("link attribute name cannot be empty")
	}

	if o.expirationAttr == "" {
		return errors.New("expiration attribute name cannot be empty")
	}

	if o.keyAttr == o.linkAttr || o.keyAttr == o.expirationAttr || o.linkAttr == o.expirationAttr {
		return errors.New("attribute names must be distinct")
	}

	return nil
}

// WithKeyAttribute sets the partition key attribute name. Default: "emailId".
func WithKeyAttribute(name string) Option {
	return func(o *Options) {
		o.keyAttr = name
	}
}

// WithLinkAttribute sets the link attribute name. Default: "link".
func WithLinkAttribute(name string) Option {
	return func(o *Options) {
		o.linkAttr = name
	}
}

// WithExpirationAttribute sets the expiry attribute name, which is also
// expected to be the table's TTL attribute. Default: "expirationTime".
func WithExpirationAttribute(name string) Option {
	return func(o *Options) {
		o.expirationAttr = name
	}
}

// WithConsistentRead enables strongly consistent reads for token lookups.
// This narrows, but does not close, the window in which two concurrent
// messages for the same recipient both see no active token.
func WithConsistentRead(enabled bool) Option {
	return func(o *Options) {
		o.consistentRead = enabled
	}
}

// WithTTLValidation controls whether [Client.Init] requires TTL to be enabled
// on the expiry attribute. Default: true.
func WithTTLValidation(enabled bool) Option {
	return func(o *Options) {
		o.validateTTL = enabled
	}
}

// WithAPI sets a custom [API] implementation. This is useful when a custom
// DynamoDB configuration is required, or for injecting mocks in tests.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.dynamoDBAPI = api
	}
}

// WithClock sets the clock used by [Client.DeleteExpired]. Defaults to
// [time.Now].
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.clock = clock
	}
}

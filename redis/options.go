package redis

import (
	"errors"
	"time"
)

const (
	// DefaultKeyPrefix is prepended to the recipient key to form the Redis key.
	DefaultKeyPrefix = "billnotify:token:"

	// DefaultEvictionGrace is added to a token's expiry when setting the key TTL.
	DefaultEvictionGrace = time.Minute
)

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the configuration for a [Client].
type Options struct {
	keyPrefix     string
	evictionGrace time.Duration
}

func newOptions() *Options {
	return &Options{
		keyPrefix:     DefaultKeyPrefix,
		evictionGrace: DefaultEvictionGrace,
	}
}

func (o *Options) validate() error {
	if o.keyPrefix == "" {
		return errors.New("key prefix cannot be empty")
	}

	if o.evictionGrace < 0 {
		return errors.New("eviction grace cannot be negative")
	}

	return nil
}

// WithKeyPrefix sets the prefix of every token key. Default: "billnotify:token:".
func WithKeyPrefix(prefix string) Option {
	return func(o *Options) {
		o.keyPrefix = prefix
	}
}

// WithEvictionGrace sets how long after expiry Redis keeps a token key.
// Default: 1 minute.
func WithEvictionGrace(d time.Duration) Option {
	return func(o *Options) {
		o.evictionGrace = d
	}
}

package ses

import (
	"errors"

	"golang.org/x/time/rate"
)

const (
	// DefaultSendRate is the SES sandbox sending quota, in emails per second.
	DefaultSendRate = 1.0

	// DefaultMaxAttempts disables SDK retries for a single send. A retried
	// SendEmail after a timeout can deliver the same email twice.
	DefaultMaxAttempts = 1

	charset = "UTF-8"
)

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the configuration for a [Client].
type Options struct {
	sendRate         float64
	maxAttempts      int
	configurationSet string
	client           API
}

func newOptions() *Options {
	return &Options{
		sendRate:    DefaultSendRate,
		maxAttempts: DefaultMaxAttempts,
	}
}

func (o *Options) validate() error {
	if o.sendRate < 0 {
		return errors.New("send rate cannot be negative")
	}

	if o.maxAttempts < 1 {
		return errors.New("max attempts must be at least 1")
	}

	return nil
}

func (o *Options) limit() rate.Limit {
	if o.sendRate == 0 {
		return rate.Inf
	}

	return rate.Limit(o.sendRate)
}

// WithSendRate limits outgoing emails per second, matching the account's SES
// sending quota. Zero disables rate limiting. Default: 1.
func WithSendRate(perSecond float64) Option {
	return func(o *Options) {
		o.sendRate = perSecond
	}
}

// WithMaxAttempts sets the maximum number of SDK attempts per send, including
// the first. Values above 1 let the SDK retry throttling and 5xx errors at
// the risk of duplicate emails. Default: 1.
func WithMaxAttempts(n int) Option {
	return func(o *Options) {
		o.maxAttempts = n
	}
}

// WithConfigurationSet sets the SES configuration set applied to every email.
func WithConfigurationSet(name string) Option {
	return func(o *Options) {
		o.configurationSet = name
	}
}

// WithClient injects a custom [API] implementation, typically a mock.
func WithClient(api API) Option {
	return func(o *Options) {
		o.client = api
	}
}

package pubsub

import (
	"errors"
	"time"

	"cloud.google.com/go/pubsub/v2"
)

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the resolved subscriber settings for a [Client].
type Options struct {
	maxExtension               time.Duration
	maxDurationPerAckExtension time.Duration
	minDurationPerAckExtension time.Duration
	maxOutstandingMessages     int
	maxOutstandingBytes        int
	shutdownTimeout            time.Duration
	source                     subscriberSource
}

func newOptions() *Options {
	return &Options{
		maxExtension:               10 * time.Minute,
		maxDurationPerAckExtension: time.Minute,
		minDurationPerAckExtension: 10 * time.Second,
		maxOutstandingMessages:     100,
		maxOutstandingBytes:        1e6, // 1 MB
		shutdownTimeout:            time.Second,
	}
}

func (o *Options) validate() error {
	if o.maxExtension < time.Minute || o.maxExtension > time.Hour {
		return errors.New("max extension must be between 1 minute and 1 hour")
	}

	if o.maxDurationPerAckExtension < 10*time.Second || o.maxDurationPerAckExtension > 600*time.Second {
		return errors.New("max duration per ack extension must be between 10 seconds and 10 minutes")
	}

	if o.minDurationPerAckExtension < 10*time.Second || o.minDurationPerAckExtension > 600*time.Second {
		return errors.New("min duration per ack extension must be between 10 seconds and 10 minutes")
	}

	if o.minDurationPerAckExtension >= o.maxDurationPerAckExtension {
		return errors.New("min duration per ack extension must be less than max duration per ack extension")
	}

	if o.maxOutstandingMessages < 1 {
		return errors.New("max outstanding messages must be greater than or equal to 1")
	}

	if o.maxOutstandingBytes < 1e4 {
		return errors.New("max outstanding bytes must be greater than or equal to 10 KB")
	}

	if o.shutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be greater than zero")
	}

	return nil
}

// receiveSettings starts from the library defaults, so settings without an
// option, such as NumGoroutines, keep their default values.
func (o *Options) receiveSettings() pubsub.ReceiveSettings {
	settings := pubsub.DefaultReceiveSettings

	settings.MaxExtension = o.maxExtension
	settings.MaxDurationPerAckExtension = o.maxDurationPerAckExtension
	settings.MinDurationPerAckExtension = o.minDurationPerAckExtension
	settings.MaxOutstandingMessages = o.maxOutstandingMessages
	settings.MaxOutstandingBytes = o.maxOutstandingBytes
	settings.ShutdownOptions = &pubsub.ShutdownOptions{
		Behavior: pubsub.ShutdownBehaviorNackImmediately,
		Timeout:  o.shutdownTimeout,
	}

	return settings
}

// WithMaxExtension sets how long a message's ack deadline may be extended
// in total. Must be between 1 minute and 1 hour. Default: 10 minutes.
func WithMaxExtension(d time.Duration) Option {
	return func(o *Options) {
		o.maxExtension = d
	}
}

func WithMaxDurationPerAckExtension(d time.Duration) Option {
	return func(o *Options) {
		o.maxDurationPerAckExtension = d
	}
}

func WithMinDurationPerAckExtension(d time.Duration) Option {
	return func(o *Options) {
		o.minDurationPerAckExtension = d
	}
}

// WithMaxOutstandingMessages limits unacknowledged messages held by the
// client. Default: 100.
func WithMaxOutstandingMessages(n int) Option {
	return func(o *Options) {
		o.maxOutstandingMessages = n
	}
}

func WithMaxOutstandingBytes(n int) Option {
	return func(o *Options) {
		o.maxOutstandingBytes = n
	}
}

// WithShutdownTimeout bounds how long Receive waits for in-flight messages
// to be nacked after its context is cancelled. Default: 1 second.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.shutdownTimeout = d
	}
}

// WithSubscriberSource replaces the GCP client as the source of
// subscriptions, typically with a fake.
func WithSubscriberSource(source subscriberSource) Option {
	return func(o *Options) {
		o.source = source
	}
}

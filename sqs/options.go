package sqs

import (
	"errors"
	"time"
)

// Option is a functional option for configuring a [Client].
// Options are passed to [New] and applied before [Client.Init] is called.
type Option func(*Options)

// Options holds the resolved configuration for a [Client].
type Options struct {
	visibilityTimeoutSeconds int32
	receiveMaxMessages       int32
	receiveWaitTimeSeconds   int32
	apiMaxRetryAttempts      int
	apiMaxRetryBackoffDelay  time.Duration
	maxMessageExtension      time.Duration
	maxOutstandingMessages   int
	maxOutstandingBytes      int
	readErrorBackoff         time.Duration
	capacityPollInterval     time.Duration
	api                      API
}

func newOptions() *Options {
	return &Options{
		visibilityTimeoutSeconds: 30,
		receiveMaxMessages:       10,
		receiveWaitTimeSeconds:   20,
		apiMaxRetryAttempts:      5,
		apiMaxRetryBackoffDelay:  10 * time.Second,
		maxMessageExtension:      10 * time.Minute,
		maxOutstandingMessages:   100,
		maxOutstandingBytes:      1e6, // 1 MB
		readErrorBackoff:         5 * time.Second,
		capacityPollInterval:     2 * time.Second,
	}
}

func (o *Options) validate() error {
	if o.visibilityTimeoutSeconds < 10 || o.visibilityTimeoutSeconds > 3600 {
		return errors.New("SQS message visibility timeout must be between 10 seconds and 1 hour")
	}

	if o.receiveMaxMessages < 1 || o.receiveMaxMessages > 10 {
		return errors.New("max number of messages per SQS receive must be between 1 and 10")
	}

	if o.receiveWaitTimeSeconds < 0 || o.receiveWaitTimeSeconds > 20 {
		return errors.New("SQS receive wait time must be between 0 and 20 seconds")
	}

	if o.apiMaxRetryAttempts < 0 || o.apiMaxRetryAttempts > 10 {
		return errors.New("max SQS API retry attempts must be between 0 and 10")
	}

	if o.apiMaxRetryBackoffDelay < time.Second || o.apiMaxRetryBackoffDelay > 30*time.Second {
		return errors.New("max SQS API retry backoff delay must be between 1 and 30 seconds")
	}

	if o.maxMessageExtension < time.Minute || o.maxMessageExtension > 12*time.Hour {
		return errors.New("max message extension must be between 1 minute and 12 hours")
	}

	if o.maxOutstandingMessages < 1 {
		return errors.New("max outstanding messages must be greater than or equal to 1")
	}

	if o.maxOutstandingBytes < 1e4 {
		return errors.New("max outstanding bytes must be greater than or equal to 10 KB")
	}

	if o.readErrorBackoff <= 0 {
		return errors.New("read error backoff must be positive")
	}

	return nil
}

// WithVisibilityTimeout sets the visibility timeout applied to each received
// message, in seconds. Must be between 10 and 3600. Default: 30.
func WithVisibilityTimeout(seconds int32) Option {
	return func(o *Options) {
		o.visibilityTimeoutSeconds = seconds
	}
}

// WithReceiveMaxMessages sets the maximum number of messages returned by a
// single ReceiveMessage call. Must be between 1 and 10. Default: 10.
func WithReceiveMaxMessages(n int32) Option {
	return func(o *Options) {
		o.receiveMaxMessages = n
	}
}

// WithReceiveWaitTime sets the long-poll wait for each ReceiveMessage call,
// in seconds. Must be between 0 and 20. Default: 20.
func WithReceiveWaitTime(seconds int32) Option {
	return func(o *Options) {
		o.receiveWaitTimeSeconds = seconds
	}
}

// WithAPIMaxRetryAttempts sets the maximum number of SDK retry attempts for
// failed SQS API calls. Must be between 0 and 10. Default: 5.
func WithAPIMaxRetryAttempts(n int) Option {
	return func(o *Options) {
		o.apiMaxRetryAttempts = n
	}
}

// WithAPIMaxRetryBackoffDelay caps the SDK backoff between retries. Must be
// between 1 and 30 seconds. Default: 10 seconds.
func WithAPIMaxRetryBackoffDelay(d time.Duration) Option {
	return func(o *Options) {
		o.apiMaxRetryBackoffDelay = d
	}
}

// WithMaxMessageExtension sets how long after receipt a message's visibility
// may still be extended. Must be between 1 minute and 12 hours, the SQS
// maximum. Default: 10 minutes.
func WithMaxMessageExtension(d time.Duration) Option {
	return func(o *Options) {
		o.maxMessageExtension = d
	}
}

// WithMaxOutstandingMessages sets the number of in-flight messages at which
// [Client.Receive] pauses reading. Default: 100.
func WithMaxOutstandingMessages(n int) Option {
	return func(o *Options) {
		o.maxOutstandingMessages = n
	}
}

// WithMaxOutstandingBytes sets the total in-flight body size at which
// [Client.Receive] pauses reading. Must be at least 10 KB. Default: 1 MB.
func WithMaxOutstandingBytes(n int) Option {
	return func(o *Options) {
		o.maxOutstandingBytes = n
	}
}

// WithReadErrorBackoff sets the delay before retrying after a failed
// ReceiveMessage call. Default: 5 seconds.
func WithReadErrorBackoff(d time.Duration) Option {
	return func(o *Options) {
		o.readErrorBackoff = d
	}
}

// WithAPI replaces the AWS SQS client, typically with a mock.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.api = api
	}
}

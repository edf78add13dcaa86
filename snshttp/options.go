package snshttp

import (
	"errors"
	"net/http"
	"time"
)

// Option is a functional option for configuring a [Server].
type Option func(*Options)

type Options struct {
	allowedTopics    map[string]struct{}
	httpClient       *http.Client
	confirmTimeout   time.Duration
	mode             string
	verifySignatures bool
}

func newOptions() *Options {
	return &Options{
		allowedTopics:    map[string]struct{}{},
		confirmTimeout:   10 * time.Second,
		mode:             "release",
		verifySignatures: true,
	}
}

func (o *Options) validate() error {
	if o.confirmTimeout <= 0 {
		return errors.New("subscription confirmation timeout must be positive")
	}

	switch o.mode {
	case "debug", "release", "test":
	default:
		return errors.New("gin mode must be one of debug, release or test")
	}

	return nil
}

// WithAllowedTopics restricts accepted messages to the given topic ARNs.
// Messages from any other topic are rejected with 403. By default every
// topic is accepted.
func WithAllowedTopics(arns ...string) Option {
	return func(o *Options) {
		for _, arn := range arns {
			if arn != "" {
				o.allowedTopics[arn] = struct{}{}
			}
		}
	}
}

// WithHTTPClient sets the client used to visit SubscribeURL and to download
// signing certificates.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) {
		o.httpClient = c
	}
}

// WithConfirmTimeout bounds the SubscribeURL and SigningCertURL requests.
// Default: 10 seconds.
func WithConfirmTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.confirmTimeout = d
	}
}

// WithMode sets the gin mode ("debug", "release" or "test"). Default: release.
func WithMode(mode string) Option {
	return func(o *Options) {
		o.mode = mode
	}
}

// WithSignatureVerification turns SNS signature checks on or off. Turn it
// off only for local testing against an SNS emulator that does not sign
// messages. Default: on.
func WithSignatureVerification(enabled bool) Option {
	return func(o *Options) {
		o.verifySignatures = enabled
	}
}

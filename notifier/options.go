package notifier

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultDebounceWindow is how long a token suppresses repeat
	// notifications to the same recipient.
	DefaultDebounceWindow = time.Hour

	// DefaultSubject is the subject line of every notification email.
	DefaultSubject = "Due Bills"

	// DefaultLinkScheme is prepended to the bill link in the email body.
	DefaultLinkScheme = "http"
)

// Option is a functional option for configuring a [Handler].
type Option func(*Options)

// Options holds the configuration for a [Handler].
type Options struct {
	debounceWindow time.Duration
	subject        string
	linkScheme     string
	clock          func() time.Time
}

func newOptions() *Options {
	return &Options{
		debounceWindow: DefaultDebounceWindow,
		subject:        DefaultSubject,
		linkScheme:     DefaultLinkScheme,
		clock:          time.Now,
	}
}

func (o *Options) validate() error {
	if o.debounceWindow < time.Second {
		return errors.New("debounce window must be at least one second")
	}

	if strings.TrimSpace(o.subject) == "" {
		return errors.New("email subject cannot be empty")
	}

	if o.linkScheme != "http" && o.linkScheme != "https" {
		return errors.New("link scheme must be http or https")
	}

	if o.clock == nil {
		return errors.New("clock cannot be nil")
	}

	return nil
}

// WithDebounceWindow sets how long a token suppresses repeat notifications.
// The window is stored with second precision. Default: 1 hour.
func WithDebounceWindow(d time.Duration) Option {
	return func(o *Options) {
		o.debounceWindow = d
	}
}

// WithSubject overrides the email subject. Default: "Due Bills".
func WithSubject(subject string) Option {
	return func(o *Options) {
		o.subject = subject
	}
}

// WithLinkScheme sets the URL scheme used for the bill link, either "http"
// or "https". Default: "http".
func WithLinkScheme(scheme string) Option {
	return func(o *Options) {
		o.linkScheme = scheme
	}
}

// WithClock sets the clock used to compute and compare token expiry.
// Defaults to [time.Now].
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.clock = clock
	}
}

package notifier

import (
	"context"
	"time"
)

// Token gates repeat notifications to a single recipient. ExpiresAt is the
// unix time (in seconds) at which the debounce window ends.
type Token struct {
	RecipientKey string
	Link         string
	ExpiresAt    int64
}

// Active reports whether the token still suppresses notifications at now.
func (t *Token) Active(now time.Time) bool {
	return t != nil && now.Unix() < t.ExpiresAt
}

// Remaining returns the time left until the token expires, or zero if it
// has already expired.
func (t *Token) Remaining(now time.Time) time.Duration {
	if !t.Active(now) {
		return 0
	}

	return time.Unix(t.ExpiresAt, 0).Sub(now)
}

// TokenStore persists one [Token] per recipient.
type TokenStore interface {
	// FindToken returns the token for recipient, or (nil, nil) if none exists.
	FindToken(ctx context.Context, recipient string) (*Token, error)

	// CreateToken writes token unconditionally.
	CreateToken(ctx context.Context, token *Token) error

	// UpdateToken refreshes the link and expiry of an existing token.
	UpdateToken(ctx context.Context, token *Token) error
}

// Email is a single outbound message with both a plain text and an HTML body.
type Email struct {
	To      string
	From    string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers an [Email] and returns the provider-assigned message ID.
type Mailer interface {
	Send(ctx context.Context, email Email) (string, error)
}

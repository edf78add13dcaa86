package notifier

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/slackmgr/types"
)

const bodyText = "Here is the due for next X days."

var (
	// ErrStore wraps token store failures. These are fatal for the message.
	ErrStore = errors.New("token store failure")

	// ErrMailer wraps email provider failures. These are fatal for the message.
	ErrMailer = errors.New("email provider failure")
)

// Outcome describes what [Handler.Handle] did with a message.
type Outcome int

const (
	// OutcomeFailed is returned together with a non-nil error.
	OutcomeFailed Outcome = iota

	// OutcomeSent means the token was written and the email sent.
	OutcomeSent

	// OutcomeDebounced means an active token suppressed the email.
	OutcomeDebounced

	// OutcomeDropped means the message was malformed and ignored.
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeDebounced:
		return "debounced"
	case OutcomeDropped:
		return "dropped"
	default:
		return "failed"
	}
}

// Handler is the notification debouncer. Use [New] to create one.
type Handler struct {
	store  TokenStore
	mailer Mailer
	logger types.Logger
	opts   *Options
}

// New creates a Handler backed by the given store and mailer.
func New(store TokenStore, mailer Mailer, logger types.Logger, opts ...Option) (*Handler, error) {
	if store == nil {
		return nil, errors.New("token store cannot be nil")
	}

	if mailer == nil {
		return nil, errors.New("mailer cannot be nil")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("invalid notifier options: %w", err)
	}

	return &Handler{
		store:  store,
		mailer: mailer,
		logger: logger.WithField("component", "notifier"),
		opts:   options,
	}, nil
}

// Handle processes a single raw notification message.
//
// Malformed messages are logged and reported as [OutcomeDropped] with a nil
// error. If the recipient holds an active token the message is reported as
// [OutcomeDebounced] and neither the store nor the mailer is written to.
// Otherwise the token is created or refreshed and the email is sent.
func (h *Handler) Handle(ctx context.Context, raw string) (Outcome, error) {
	n, err := ParseMessage(raw)
	if err != nil {
		h.logger.Errorf("Failed to parse notification message, dropping it: %v", err)
		return OutcomeDropped, nil
	}

	logger := h.logger.
		WithField("recipient", n.OwnerEmail).
		WithField("domain", n.Domain)

	logger.Debugf("Processing notification for record %s", n.RecordID)

	existing, err := h.findToken(ctx, n.OwnerEmail)
	if err != nil {
		return OutcomeFailed, err
	}

	now := h.opts.clock()

	if existing.Active(now) {
		logger.
			WithField("remaining_minutes", int(existing.Remaining(now).Minutes())).
			Info("Notification token not expired, skipping email")

		return OutcomeDebounced, nil
	}

	if _, err := h.writeToken(ctx, existing, n.OwnerEmail, n.Link, now); err != nil {
		return OutcomeFailed, err
	}

	logger.Info("Notification token saved")

	messageID, err := h.DispatchEmail(ctx, n.OwnerEmail, n.Domain, n.Link)
	if err != nil {
		logger.Errorf("Failed to send notification email: %v", err)
		return OutcomeFailed, err
	}

	logger.WithField("message_id", messageID).Info("Notification email sent")

	return OutcomeSent, nil
}

// IsDebounced reports whether recipient holds a token that has not yet
// expired.
func (h *Handler) IsDebounced(ctx context.Context, recipient string) (bool, error) {
	token, err := h.findToken(ctx, recipient)
	if err != nil {
		return false, err
	}

	return token.Active(h.opts.clock()), nil
}

// UpsertToken creates the recipient's token, or refreshes the link and
// expiry of an existing one. The new expiry is now plus the debounce window.
func (h *Handler) UpsertToken(ctx context.Context, recipient, link string) (*Token, error) {
	existing, err := h.findToken(ctx, recipient)
	if err != nil {
		return nil, err
	}

	return h.writeToken(ctx, existing, recipient, link, h.opts.clock())
}

// DispatchEmail sends the due-bill email for link to recipient, from
// noreply@domain. It returns the provider-assigned message ID.
func (h *Handler) DispatchEmail(ctx context.Context, recipient, domain, link string) (string, error) {
	url := h.opts.linkScheme + "://" + link

	email := Email{
		To:      recipient,
		From:    "noreply@" + domain,
		Subject: h.opts.subject,
		Text:    bodyText + "\n" + url,
		HTML: "<html>\n<head></head>\n<body>\n    <h4>" + html.EscapeString(h.opts.subject) + "</h4>\n" +
			"<p>" + bodyText + "<br/><br/>" + html.EscapeString(url) + "</p></body></html>",
	}

	messageID, err := h.mailer.Send(ctx, email)
	if err != nil {
		return "", fmt.Errorf("%w: failed to send email to %s: %w", ErrMailer, recipient, err)
	}

	return messageID, nil
}

func (h *Handler) findToken(ctx context.Context, recipient string) (*Token, error) {
	token, err := h.store.FindToken(ctx, recipient)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to find token for %s: %w", ErrStore, recipient, err)
	}

	return token, nil
}

func (h *Handler) writeToken(ctx context.Context, existing *Token, recipient, link string, now time.Time) (*Token, error) {
	token := &Token{
		RecipientKey: recipient,
		Link:         link,
		ExpiresAt:    now.Add(h.opts.debounceWindow).Unix(),
	}

	if existing == nil {
		if err := h.store.CreateToken(ctx, token); err != nil {
			return nil, fmt.Errorf("%w: failed to create token for %s: %w", ErrStore, recipient, err)
		}

		return token, nil
	}

	if err := h.store.UpdateToken(ctx, token); err != nil {
		return nil, fmt.Errorf("%w: failed to update token for %s: %w", ErrStore, recipient, err)
	}

	return token, nil
}

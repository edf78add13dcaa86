// Package notifier implements the due-bill notification debouncer.
//
// # Overview
//
// A [Handler] receives a notification message describing an overdue bill,
// checks a per-recipient token in a [TokenStore] and, unless a token issued
// within the debounce window is still active, refreshes the token and sends
// an email through a [Mailer] containing a link to the bill:
//
//	{"ownerEmail":"a@b.com","recordId":"42","domain":"x.com"}
//
// results in an email to a@b.com, from noreply@x.com, containing
// http://x.com/v1/bills/42.
//
// # Getting Started
//
// Create a Handler with [New], supplying a store, a mailer and a logger:
//
//	handler, err := notifier.New(store, mailer, logger,
//	    notifier.WithDebounceWindow(time.Hour),
//	)
//
// The handler can then be driven by any transport: [Handler.HandleSNSEvent]
// is a Lambda entry point, [Handler.Consume] drains a channel of
// [QueueItem] values produced by the sqs and pubsub packages, and
// [Handler.Handle] processes a single raw message.
//
// # Errors
//
// Malformed messages are logged and dropped without touching the store or
// the mailer. Store and mailer failures are returned wrapped in [ErrStore]
// and [ErrMailer]; the handler never retries, so redelivery is left to the
// transport.
//
// # Concurrency
//
// [Handler] holds no mutable state and is safe for concurrent use. The
// read-then-write sequence on a recipient's token is not atomic: two
// messages for the same recipient processed at the same time may both send
// an email.
package notifier

package notifier

import (
	"context"
	"time"
)

// QueueItem is a message delivered by a queue consumer. Exactly one of Ack
// or Nack should be called once the message has been processed.
type QueueItem struct {
	MessageID        string
	ReceiveTimestamp time.Time
	Body             string
	Ack              func()
	Nack             func()
}

// Consume handles items from itemCh until the channel is closed or ctx is
// cancelled. Bodies wrapped in an SNS notification document are unwrapped
// first. Items are acked when the message was sent, debounced or dropped,
// and nacked when a store or mailer failure occurred so the transport can
// redeliver them.
//
// Consume returns nil when itemCh is closed, and ctx.Err() on cancellation.
func (h *Handler) Consume(ctx context.Context, itemCh <-chan *QueueItem) error {
	h.logger.Info("Notification consumer started")
	defer h.logger.Info("Notification consumer exited")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-itemCh:
			if !ok {
				return nil
			}

			h.consumeItem(ctx, item)
		}
	}
}

func (h *Handler) consumeItem(ctx context.Context, item *QueueItem) {
	if item == nil {
		return
	}

	logger := h.logger.WithField("message_id", item.MessageID)

	outcome, err := h.Handle(ctx, UnwrapEnvelope(item.Body))
	if err != nil {
		logger.Errorf("Failed to handle queue message, leaving it for redelivery: %v", err)

		if item.Nack != nil {
			item.Nack()
		}

		return
	}

	logger.WithField("outcome", outcome.String()).Debug("Queue message handled")

	if item.Ack != nil {
		item.Ack()
	}
}

package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/BboySticker/serverless/notifier"
	"github.com/slackmgr/types"
)

// subscriberSource hands out subscriptions by name. *pubsub.Client is
// wrapped by gcpSource; tests inject a fake with [WithSubscriberSource].
type subscriberSource interface {
	Subscriber(name string) subscription
}

// subscription is the part of *pubsub.Subscriber the Client drives.
type subscription interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
	ApplySettings(settings pubsub.ReceiveSettings)
}

type gcpSource struct {
	client *pubsub.Client
}

//nolint:ireturn // Satisfies subscriberSource
func (g gcpSource) Subscriber(name string) subscription {
	return gcpSubscription{sub: g.client.Subscriber(name)}
}

type gcpSubscription struct {
	sub *pubsub.Subscriber
}

func (g gcpSubscription) Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error {
	return g.sub.Receive(ctx, f)
}

func (g gcpSubscription) ApplySettings(settings pubsub.ReceiveSettings) {
	g.sub.ReceiveSettings = settings
}

// Client receives notification messages from a single subscription.
type Client struct {
	gcpClient     *pubsub.Client
	source        subscriberSource
	sub           subscription
	subscription  string
	opts          *Options
	logger        types.Logger
	initialized   atomic.Bool
	isReceiving   atomic.Bool
	receiveSinkCh chan<- *notifier.QueueItem
}

func New(c *pubsub.Client, subscription string, logger types.Logger, opts ...Option) (*Client, error) {
	if c == nil {
		return nil, errors.New("pub/sub client cannot be nil")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		gcpClient:    c,
		subscription: subscription,
		opts:         options,
		logger:       logger.WithField("component", "pubsub").WithField("subscription", subscription),
	}, nil
}

// Init validates the options and configures the subscriber. It is
// idempotent.
func (c *Client) Init() (*Client, error) {
	if c.initialized.Load() {
		return c, nil
	}

	if c.subscription == "" {
		return nil, errors.New("pub/sub subscription cannot be empty")
	}

	if err := c.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid pub/sub subscriber options: %w", err)
	}

	c.source = c.opts.source
	if c.source == nil {
		c.source = gcpSource{client: c.gcpClient}
	}

	c.sub = c.source.Subscriber(c.subscription)
	c.sub.ApplySettings(c.opts.receiveSettings())

	c.initialized.Store(true)

	return c, nil
}

func (c *Client) Name() string {
	return c.subscription
}

// Receive starts receiving messages from the subscription and sends them to the sink channel.
// The sink channel is always closed when this method returns, including on validation errors.
func (c *Client) Receive(ctx context.Context, sinkCh chan<- *notifier.QueueItem) error {
	defer close(sinkCh)

	if !c.initialized.Load() {
		return errors.New("pub/sub client not initialized")
	}

	if !c.isReceiving.CompareAndSwap(false, true) {
		return errors.New("pub/sub client is already receiving messages")
	}

	c.receiveSinkCh = sinkCh

	defer func() {
		c.isReceiving.Store(false)
		c.receiveSinkCh = nil
		c.logger.Debug("Stopped receiving pub/sub messages")
	}()

	c.logger.Debug("Started receiving pub/sub messages")

	return c.sub.Receive(ctx, c.receiveHandler)
}

func (c *Client) receiveHandler(ctx context.Context, msg *pubsub.Message) {
	item := &notifier.QueueItem{
		MessageID:        msg.ID,
		ReceiveTimestamp: time.Now(),
		Body:             string(msg.Data),
		Ack:              msg.Ack,
		Nack:             msg.Nack,
	}

	if err := trySend(ctx, item, c.receiveSinkCh); err != nil {
		msg.Nack()

		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			c.logger.Errorf("Failed to send pub/sub message %s to sink channel: %v", msg.ID, err)
		}

		return
	}

	logger := c.logger.WithField("message_id", msg.ID)

	if msg.DeliveryAttempt != nil && *msg.DeliveryAttempt > 1 {
		logger = logger.WithField("delivery_attempt", *msg.DeliveryAttempt)
	}

	logger.Debug("Pub/Sub message sent to sink channel")
}

func trySend(ctx context.Context, msg *notifier.QueueItem, sinkCh chan<- *notifier.QueueItem) error {
	select {
	case sinkCh <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

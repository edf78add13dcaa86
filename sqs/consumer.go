package sqs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/BboySticker/serverless/notifier"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/slackmgr/types"
)

// settleTimeout bounds delete and release calls, which run detached from the
// caller's context.
const settleTimeout = 2 * time.Second

// API is the subset of the AWS SQS client used by [Client].
type API interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// Client consumes bill notification messages from an SQS queue. Each message
// is delivered to a sink channel as a [notifier.QueueItem] while its
// visibility timeout is extended in the background.
//
// Create a Client with [New], then call [Client.Init] once before
// [Client.Receive].
type Client struct {
	client      API
	queueName   string
	queueURL    string
	awsCfg      *aws.Config
	opts        *Options
	keeper      *visibilityKeeper
	keeperCh    chan *inFlightMessage
	logger      types.Logger
	initialized bool
}

// New creates a Client for the named queue. It does not contact AWS.
func New(awsCfg *aws.Config, queueName string, logger types.Logger, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	logger = logger.
		WithField("component", "sqs").
		WithField("queue_name", queueName)

	return &Client{
		awsCfg:    awsCfg,
		queueName: queueName,
		opts:      options,
		keeperCh:  make(chan *inFlightMessage, 1000),
		logger:    logger,
	}
}

// Init validates the options, resolves the queue URL and starts the
// visibility keeper. The keeper runs until ctx is cancelled.
//
// Init is idempotent but not thread-safe.
func (c *Client) Init(ctx context.Context) (*Client, error) {
	if c.initialized {
		return c, nil
	}

	if c.queueName == "" {
		return nil, errors.New("SQS queue name cannot be empty")
	}

	if err := c.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid SQS options: %w", err)
	}

	if c.opts.api != nil {
		c.client = c.opts.api
	} else {
		if c.awsCfg == nil {
			return nil, errors.New("AWS config cannot be nil")
		}

		c.client = sqs.NewFromConfig(*c.awsCfg, func(o *sqs.Options) {
			o.Retryer = retry.AddWithMaxBackoffDelay(o.Retryer, c.opts.apiMaxRetryBackoffDelay)
			o.Retryer = retry.AddWithMaxAttempts(o.Retryer, c.opts.apiMaxRetryAttempts)
		})
	}

	resp, err := c.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(c.queueName)})
	if err != nil {
		return nil, fmt.Errorf("failed to get SQS queue URL for %s: %w", c.queueName, err)
	}

	c.queueURL = aws.ToString(resp.QueueUrl)
	c.keeper = newVisibilityKeeper(c.opts, c.logger)

	go c.keeper.run(ctx, c.keeperCh)

	c.initialized = true

	return c, nil
}

// Name returns the queue name supplied to [New].
func (c *Client) Name() string {
	return c.queueName
}

// Receive reads messages until ctx is cancelled and sends each one to sinkCh.
// It closes sinkCh before returning.
//
// Ack deletes the message. Nack resets its visibility timeout to zero so that
// SQS redelivers it immediately. Reading pauses while the in-flight limits
// are reached, and backs off after a failed receive.
func (c *Client) Receive(ctx context.Context, sinkCh chan<- *notifier.QueueItem) error {
	defer close(sinkCh)

	if !c.initialized {
		return errors.New("SQS client not initialized")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := c.read(ctx, sinkCh)
		if err == nil {
			continue
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Errorf("Error reading SQS queue %s: %v", c.queueName, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.readErrorBackoff):
		}
	}
}

func (c *Client) read(ctx context.Context, sinkCh chan<- *notifier.QueueItem) error {
	for !c.keeper.HasCapacity() {
		c.logger.Debug("SQS in-flight limit reached, waiting before reading more messages")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.capacityPollInterval):
		}
	}

	input := &sqs.ReceiveMessageInput{
		QueueUrl:                    &c.queueURL,
		MaxNumberOfMessages:         c.opts.receiveMaxMessages,
		VisibilityTimeout:           c.opts.visibilityTimeoutSeconds,
		WaitTimeSeconds:             c.opts.receiveWaitTimeSeconds,
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{sqstypes.MessageSystemAttributeNameApproximateReceiveCount},
	}

	output, err := c.client.ReceiveMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to receive SQS messages: %w", err)
	}

	now := time.Now()

	for _, m := range output.Messages {
		msgID := aws.ToString(m.MessageId)
		receiptHandle := aws.ToString(m.ReceiptHandle)
		body := aws.ToString(m.Body)

		msg := newInFlightMessage(msgID, c.opts.visibilityTimeoutSeconds, len(body))

		msg.ack = func() { //nolint:contextcheck // must complete regardless of the caller's context
			c.deleteMessage(msgID, receiptHandle)
		}

		msg.release = func() { //nolint:contextcheck // must complete regardless of the caller's context
			c.releaseMessage(msgID, receiptHandle)
		}

		msg.extend = func(ctx context.Context) error {
			return c.changeMessageVisibility(ctx, msgID, receiptHandle, c.opts.visibilityTimeoutSeconds)
		}

		if err := trySend(ctx, msg, c.keeperCh); err != nil {
			return err
		}

		item := &notifier.QueueItem{
			MessageID:        msgID,
			ReceiveTimestamp: now,
			Body:             body,
			Ack:              msg.Ack,
			Nack:             msg.Nack,
		}

		if err := trySend(ctx, item, sinkCh); err != nil {
			return err
		}

		logger := c.logger.WithField("message_id", msgID)

		if n, err := strconv.Atoi(m.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]); err == nil && n > 1 {
			logger = logger.WithField("receive_count", n)
		}

		logger.Debug("SQS message received")
	}

	return nil
}

func (c *Client) deleteMessage(messageID, receiptHandle string) {
	logger := c.logger.WithField("message_id", messageID)

	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	input := &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: &receiptHandle,
	}

	if _, err := c.client.DeleteMessage(ctx, input); err != nil {
		logger.Errorf("Failed to delete SQS message: %v", err)
		return
	}

	logger.Debug("SQS message deleted")
}

func (c *Client) releaseMessage(messageID, receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	if err := c.changeMessageVisibility(ctx, messageID, receiptHandle, 0); err != nil {
		c.logger.WithField("message_id", messageID).Errorf("Failed to release SQS message: %v", err)
	}
}

func (c *Client) changeMessageVisibility(ctx context.Context, messageID, receiptHandle string, timeoutSeconds int32) error {
	input := &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          &c.queueURL,
		ReceiptHandle:     &receiptHandle,
		VisibilityTimeout: timeoutSeconds,
	}

	if _, err := c.client.ChangeMessageVisibility(ctx, input); err != nil {
		return fmt.Errorf("failed to change SQS message visibility: %w", err)
	}

	c.logger.
		WithField("message_id", messageID).
		WithField("visibility_timeout_seconds", timeoutSeconds).
		Debug("SQS message visibility changed")

	return nil
}

func trySend[T any](ctx context.Context, msg T, sinkCh chan<- T) error {
	select {
	case sinkCh <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package ses delivers notification emails through Amazon SES.
package ses

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BboySticker/serverless/notifier"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"golang.org/x/time/rate"
)

// API is the subset of the SES client used by [Client].
type API interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Client is an SES-backed implementation of [notifier.Mailer].
type Client struct {
	client  API
	awsCfg  *aws.Config
	opts    *Options
	limiter *rate.Limiter
}

// New creates a Client. Call [Client.Connect] before use.
func New(awsCfg *aws.Config, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		awsCfg: awsCfg,
		opts:   options,
	}
}

// Connect validates the options and creates the SES client from the AWS
// config provided to [New], unless one was injected with [WithClient].
func (c *Client) Connect() error {
	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("invalid SES options: %w", err)
	}

	c.limiter = rate.NewLimiter(c.opts.limit(), 1)

	if c.opts.client != nil {
		c.client = c.opts.client
		return nil
	}

	if c.awsCfg == nil {
		return errors.New("AWS config cannot be nil")
	}

	c.client = ses.NewFromConfig(*c.awsCfg, func(o *ses.Options) {
		o.RetryMaxAttempts = c.opts.maxAttempts
	})

	return nil
}

// Send delivers email and returns the SES message ID. It blocks until the
// send rate allows another email or ctx is done.
func (c *Client) Send(ctx context.Context, email notifier.Email) (string, error) {
	if c.client == nil {
		return "", errors.New("SES client is not connected")
	}

	if strings.TrimSpace(email.To) == "" {
		return "", errors.New("destination address is required")
	}

	if strings.TrimSpace(email.From) == "" {
		return "", errors.New("source address is required")
	}

	if email.Text == "" && email.HTML == "" {
		return "", errors.New("email body is empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for SES send rate: %w", err)
	}

	input := &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: []string{strings.TrimSpace(email.To)},
		},
		Source: aws.String(email.From),
		Message: &sestypes.Message{
			Subject: content(email.Subject),
			Body: &sestypes.Body{
				Text: content(email.Text),
				Html: content(email.HTML),
			},
		},
	}

	if cs := strings.TrimSpace(c.opts.configurationSet); cs != "" {
		input.ConfigurationSetName = aws.String(cs)
	}

	output, err := c.client.SendEmail(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to send email via SES: %w", err)
	}

	return aws.ToString(output.MessageId), nil
}

func content(data string) *sestypes.Content {
	if data == "" {
		return nil
	}

	return &sestypes.Content{
		Charset: aws.String(charset),
		Data:    aws.String(data),
	}
}

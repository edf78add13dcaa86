package ses_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BboySticker/serverless/notifier"
	"github.com/BboySticker/serverless/ses"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsses "github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSES struct {
	inputs []*awsses.SendEmailInput
	err    error
}

func (m *mockSES) SendEmail(_ context.Context, params *awsses.SendEmailInput, _ ...func(*awsses.Options)) (*awsses.SendEmailOutput, error) {
	m.inputs = append(m.inputs, params)

	if m.err != nil {
		return nil, m.err
	}

	return &awsses.SendEmailOutput{MessageId: aws.String("0100018d-abc")}, nil
}

var _ notifier.Mailer = (*ses.Client)(nil)

func newTestClient(t *testing.T, mock *mockSES, opts ...ses.Option) *ses.Client {
	t.Helper()

	opts = append([]ses.Option{ses.WithClient(mock), ses.WithSendRate(0)}, opts...)
	client := ses.New(&aws.Config{}, opts...)
	require.NoError(t, client.Connect())

	return client
}

func testEmail() notifier.Email {
	return notifier.Email{
		To:      "a@b.com",
		From:    "noreply@x.com",
		Subject: "Due Bills",
		Text:    "Here is the due for next X days.\nhttp://x.com/v1/bills/42",
		HTML:    "<p>http://x.com/v1/bills/42</p>",
	}
}

func TestConnect_InvalidOptions(t *testing.T) {
	t.Parallel()

	require.Error(t, ses.New(&aws.Config{}, ses.WithMaxAttempts(0)).Connect())
	require.Error(t, ses.New(&aws.Config{}, ses.WithSendRate(-1)).Connect())
	require.Error(t, ses.New(nil).Connect())
}

func TestSend(t *testing.T) {
	t.Parallel()

	mock := &mockSES{}
	client := newTestClient(t, mock, ses.WithConfigurationSet("billing"))

	id, err := client.Send(context.Background(), testEmail())

	require.NoError(t, err)
	assert.Equal(t, "0100018d-abc", id)
	require.Len(t, mock.inputs, 1)

	input := mock.inputs[0]
	assert.Equal(t, []string{"a@b.com"}, input.Destination.ToAddresses)
	assert.Equal(t, "noreply@x.com", aws.ToString(input.Source))
	assert.Equal(t, "Due Bills", aws.ToString(input.Message.Subject.Data))
	assert.Equal(t, "UTF-8", aws.ToString(input.Message.Subject.Charset))
	assert.Contains(t, aws.ToString(input.Message.Body.Text.Data), "http://x.com/v1/bills/42")
	assert.Equal(t, "UTF-8", aws.ToString(input.Message.Body.Html.Charset))
	assert.Equal(t, "billing", aws.ToString(input.ConfigurationSetName))
}

func TestSend_TextOnly(t *testing.T) {
	t.Parallel()

	mock := &mockSES{}
	client := newTestClient(t, mock)

	email := testEmail()
	email.HTML = ""

	_, err := client.Send(context.Background(), email)

	require.NoError(t, err)
	assert.Nil(t, mock.inputs[0].Message.Body.Html)
	assert.Nil(t, mock.inputs[0].ConfigurationSetName)
}

func TestSend_Validation(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, &mockSES{})

	for name, mutate := range map[string]func(*notifier.Email){
		"missing to":   func(e *notifier.Email) { e.To = " " },
		"missing from": func(e *notifier.Email) { e.From = "" },
		"empty body":   func(e *notifier.Email) { e.Text, e.HTML = "", "" },
	} {
		email := testEmail()
		mutate(&email)

		_, err := client.Send(context.Background(), email)
		require.Error(t, err, name)
	}
}

func TestSend_NotConnected(t *testing.T) {
	t.Parallel()

	_, err := ses.New(&aws.Config{}).Send(context.Background(), testEmail())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestSend_APIError(t *testing.T) {
	t.Parallel()

	mock := &mockSES{err: errors.New("MessageRejected: Email address is not verified")}
	client := newTestClient(t, mock)

	_, err := client.Send(context.Background(), testEmail())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "MessageRejected")
}

func TestSend_RateLimited(t *testing.T) {
	t.Parallel()

	mock := &mockSES{}
	client := newTestClient(t, mock, ses.WithSendRate(0.001))

	_, err := client.Send(context.Background(), testEmail())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Send(ctx, testEmail())

	require.Error(t, err)
	assert.Len(t, mock.inputs, 1)
}

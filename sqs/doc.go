// Package sqs consumes due-bill notifications from an AWS SQS queue.
//
// [Client] long-polls a standard or FIFO queue and delivers each message to
// a caller-supplied channel as a [notifier.QueueItem]. Queues subscribed to
// an SNS topic receive the SNS notification document as the message body;
// [notifier.Handler.Consume] unwraps it before handling.
//
//	client, err := sqs.New(&awsCfg, "bill-notifications", logger,
//	    sqs.WithVisibilityTimeout(60),
//	).Init(ctx)
//
//	itemCh := make(chan *notifier.QueueItem)
//	go client.Receive(ctx, itemCh)
//
//	return handler.Consume(ctx, itemCh)
//
// # Acknowledgement
//
// Ack deletes the message from the queue. Nack resets its visibility timeout
// to zero so that SQS redelivers it straight away, subject to the queue's
// redrive policy.
//
// # Visibility
//
// While a message is in flight a background goroutine keeps extending its
// visibility timeout, so a slow store or mailer does not cause a duplicate
// delivery. Extension is best-effort and stops once the message has been
// in flight for [WithMaxMessageExtension]. Reading pauses while the number
// or total size of in-flight messages is at the limits set by
// [WithMaxOutstandingMessages] and [WithMaxOutstandingBytes].
package sqs

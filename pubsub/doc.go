// Package pubsub consumes bill notification messages from a Google Cloud
// Pub/Sub subscription.
//
// Each received message is delivered to a sink channel as a
// [notifier.QueueItem]. Ack acknowledges the message and Nack asks Pub/Sub
// to redeliver it. Ack deadlines are extended by the Pub/Sub client library
// within the limits set by the With* options.
//
//	client, err := pubsub.New(gcpClient, "bill-notifications-sub", logger)
//	if err != nil {
//		return err
//	}
//
//	if _, err := client.Init(); err != nil {
//		return err
//	}
//
//	items := make(chan *notifier.QueueItem)
//	go func() { _ = client.Receive(ctx, items) }()
//
//	return handler.Consume(ctx, items)
package pubsub

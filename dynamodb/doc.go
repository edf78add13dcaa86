// Package dynamodb provides a DynamoDB-backed implementation of the
// [github.com/BboySticker/serverless/notifier.TokenStore] interface.
//
// # Overview
//
// Each notification token is stored as a single item keyed by the recipient's
// email address:
//
//   - emailId:        partition key (S), the recipient key
//   - link:           bill link of the last notification sent (S)
//   - expirationTime: Unix seconds at which the token stops suppressing
//     notifications (N)
//
// The expirationTime attribute doubles as the table's TTL attribute, so
// DynamoDB removes expired tokens on its own. Deletion by TTL is lazy, which
// is why the notifier always compares expirationTime against the clock
// rather than relying on the item's absence.
//
// # Getting Started
//
//	client := dynamodb.New(&awsCfg, "csye6225", dynamodb.WithConsistentRead(true))
//
//	if err := client.Connect(); err != nil {
//	    return err
//	}
//
//	if err := client.Init(ctx, false); err != nil {
//	    return err
//	}
//
// Attribute names can be changed with [WithKeyAttribute], [WithLinkAttribute]
// and [WithExpirationAttribute] when an existing table uses a different
// layout. Supply [WithAPI] to inject a custom or mock DynamoDB client.
//
// # Concurrency
//
// [Client] is safe for concurrent use by multiple goroutines.
package dynamodb

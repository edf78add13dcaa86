// Package postgres provides a PostgreSQL-backed implementation of the
// notifier.TokenStore interface.
//
// It uses pgx v5 with connection pooling (pgxpool). Tokens live in a single
// table:
//
//	CREATE TABLE notification_tokens (
//	    recipient_key text PRIMARY KEY,
//	    link          text NOT NULL,
//	    expires_at    bigint NOT NULL
//	);
//
// expires_at holds Unix seconds, matching the notifier's token model.
//
// # Usage
//
//	client := postgres.New(
//	    postgres.WithHost("localhost"),
//	    postgres.WithUser("postgres"),
//	    postgres.WithPassword("secret"),
//	    postgres.WithDatabase("billing"),
//	)
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	if err := client.Init(ctx, false); err != nil {
//	    log.Fatal(err)
//	}
//
// # Cleanup
//
// Expired rows are ignored by the notifier but not deleted. Pass
// [WithTTLCleanupInterval] to have [Client.Init] start a goroutine that
// deletes them periodically, or call [Client.DeleteExpired] directly.
package postgres

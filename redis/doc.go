// Package redis provides a Redis-backed implementation of the
// notifier.TokenStore interface using github.com/redis/go-redis/v9.
//
// Each token is a hash stored under "<prefix><recipient>" with the fields
// "link" and "expires_at" (Unix seconds). Every write also sets an absolute
// key expiry at expires_at plus a small grace period, so Redis evicts tokens
// shortly after they stop suppressing notifications.
//
//	rdb := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	store, err := redis.New(rdb, redis.WithKeyPrefix("billnotify:token:"))
package redis

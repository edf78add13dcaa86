package sqs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/slackmgr/types"
	"golang.org/x/sync/semaphore"
)

// maxConcurrentExtensions bounds ChangeMessageVisibility calls per sweep.
const maxConcurrentExtensions = 3

// visibilityKeeper tracks in-flight messages and extends their visibility
// until they are settled or reach the maximum extension age. It also tracks
// the count and size of in-flight messages for read backpressure.
//
// Only the run goroutine touches the tracked map. The counters are atomic
// so that the reader can poll HasCapacity concurrently.
type visibilityKeeper struct {
	tracked map[string]*inFlightMessage
	count   atomic.Int64
	bytes   atomic.Int64
	opts    *Options
	logger  types.Logger
}

func newVisibilityKeeper(opts *Options, logger types.Logger) *visibilityKeeper {
	return &visibilityKeeper{
		tracked: make(map[string]*inFlightMessage),
		opts:    opts,
		logger:  logger,
	}
}

// HasCapacity reports whether the reader may fetch more messages.
func (k *visibilityKeeper) HasCapacity() bool {
	return k.count.Load() < int64(k.opts.maxOutstandingMessages) &&
		k.bytes.Load() < int64(k.opts.maxOutstandingBytes)
}

func (k *visibilityKeeper) run(ctx context.Context, sourceCh <-chan *inFlightMessage) {
	k.logger.Info("SQS visibility keeper started")
	defer k.logger.Info("SQS visibility keeper exited")

	interval := max(time.Duration(k.opts.visibilityTimeoutSeconds/3)*time.Second, 5*time.Second)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.sweep(ctx)
		case msg, ok := <-sourceCh:
			if !ok {
				return
			}

			k.track(msg)
		}
	}
}

// sweep drops settled and expired messages and extends the rest when due.
func (k *visibilityKeeper) sweep(ctx context.Context) {
	if len(k.tracked) == 0 {
		return
	}

	timeout := time.Duration(k.opts.visibilityTimeoutSeconds) * time.Second
	due := []*inFlightMessage{}

	for _, msg := range k.tracked {
		if msg.Settled() {
			k.untrack(msg)
			continue
		}

		if msg.Age()+timeout >= k.opts.maxMessageExtension {
			k.logger.WithField("message_id", msg.id).Info("SQS message reached the maximum visibility extension, it will be redelivered")
			k.untrack(msg)
			continue
		}

		if msg.DueForExtension() {
			due = append(due, msg)
		}
	}

	if len(due) > 0 {
		k.extend(ctx, due)
	}
}

func (k *visibilityKeeper) extend(ctx context.Context, due []*inFlightMessage) {
	started := time.Now()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []*inFlightMessage
	)

	sem := semaphore.NewWeighted(maxConcurrentExtensions)

	for _, msg := range due {
		wg.Go(func() {
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			if err := msg.Extend(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}

				k.logger.WithField("message_id", msg.id).Errorf("Failed to extend SQS message visibility, no longer tracking it: %v", err)

				mu.Lock()
				failed = append(failed, msg)
				mu.Unlock()
			}
		})
	}

	wg.Wait()

	for _, msg := range failed {
		k.untrack(msg)
	}

	k.logger.WithField("count", len(due)).WithField("elapsed", time.Since(started)).Debug("Extended SQS message visibility")
}

func (k *visibilityKeeper) track(msg *inFlightMessage) {
	if _, ok := k.tracked[msg.id]; ok {
		return
	}

	k.count.Add(1)
	k.bytes.Add(msg.size)

	k.tracked[msg.id] = msg
}

func (k *visibilityKeeper) untrack(msg *inFlightMessage) {
	if _, ok := k.tracked[msg.id]; !ok {
		return
	}

	k.count.Add(-1)
	k.bytes.Add(-msg.size)

	delete(k.tracked, msg.id)
}

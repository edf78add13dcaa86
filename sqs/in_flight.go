package sqs

import (
	"context"
	"sync"
	"time"
)

// inFlightMessage is a received message that has not yet been settled by the
// consumer. Exactly one of ack and release runs, at most once.
type inFlightMessage struct {
	id                string
	receivedAt        time.Time
	lastExtendedAt    time.Time
	visibilityTimeout time.Duration
	size              int64

	mu      sync.Mutex
	settled bool
	ack     func()
	release func()
	extend  func(ctx context.Context) error
}

func newInFlightMessage(id string, visibilityTimeoutSeconds int32, size int) *inFlightMessage {
	now := time.Now()

	return &inFlightMessage{
		id:                id,
		receivedAt:        now,
		lastExtendedAt:    now,
		visibilityTimeout: time.Duration(visibilityTimeoutSeconds) * time.Second,
		size:              int64(size),
	}
}

// Ack deletes the message from the queue.
func (m *inFlightMessage) Ack() {
	m.settle(m.ack)
}

// Nack makes the message visible again immediately.
func (m *inFlightMessage) Nack() {
	m.settle(m.release)
}

func (m *inFlightMessage) settle(f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.settled {
		return
	}

	m.settled = true

	if f != nil {
		f()
	}
}

func (m *inFlightMessage) Settled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.settled
}

// Age returns how long ago the message was received.
func (m *inFlightMessage) Age() time.Duration {
	return time.Since(m.receivedAt)
}

// DueForExtension reports whether half of the current visibility timeout
// has elapsed since the last extension.
func (m *inFlightMessage) DueForExtension() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return !m.settled && m.extend != nil && time.Since(m.lastExtendedAt) > m.visibilityTimeout/2
}

// Extend pushes the visibility timeout out by another full period. It is a
// no-op once the message has been settled.
func (m *inFlightMessage) Extend(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.settled || m.extend == nil {
		return nil
	}

	if err := m.extend(ctx); err != nil {
		return err
	}

	m.lastExtendedAt = time.Now()

	return nil
}

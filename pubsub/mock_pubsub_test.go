package pubsub

import (
	"context"
	"sync"

	"cloud.google.com/go/pubsub/v2"
	"github.com/slackmgr/types"
)

// mockSource hands out defaultSub and records requested subscriptions.
type mockSource struct {
	defaultSub *mockSubscriber
	requested  []string
	mu         sync.Mutex
}

func newMockSource() *mockSource {
	return &mockSource{defaultSub: newMockSubscriber()}
}

//nolint:ireturn // Satisfies subscriberSource
func (m *mockSource) Subscriber(name string) subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requested = append(m.requested, name)

	return m.defaultSub
}

// mockSubscriber captures the applied receive settings. Without a
// receiveFunc, Receive blocks until ctx is cancelled.
type mockSubscriber struct {
	receiveFunc func(ctx context.Context, f func(context.Context, *pubsub.Message)) error
	settings    pubsub.ReceiveSettings
	applied     int
	mu          sync.Mutex
}

func newMockSubscriber() *mockSubscriber {
	return &mockSubscriber{}
}

func (m *mockSubscriber) Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error {
	if m.receiveFunc != nil {
		return m.receiveFunc(ctx, f)
	}

	<-ctx.Done()

	return ctx.Err()
}

func (m *mockSubscriber) ApplySettings(settings pubsub.ReceiveSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings = settings
	m.applied++
}

func (m *mockSubscriber) snapshot() pubsub.ReceiveSettings {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.settings
}

// mockLogger is a no-op logger for testing.
type mockLogger struct{}

func newMockLogger() *mockLogger { return &mockLogger{} }

//nolint:ireturn // Must return interface to implement types.Logger
func (m *mockLogger) WithField(_ string, _ any) types.Logger { return m }

//nolint:ireturn // Must return interface to implement types.Logger
func (m *mockLogger) WithFields(_ map[string]any) types.Logger { return m }
func (m *mockLogger) Debug(_ string)                           {}
func (m *mockLogger) Debugf(_ string, _ ...any)                {}
func (m *mockLogger) Info(_ string)                            {}
func (m *mockLogger) Infof(_ string, _ ...any)                 {}
func (m *mockLogger) Error(_ string)                           {}
func (m *mockLogger) Errorf(_ string, _ ...any)                {}

package memory_test

import (
	"context"
	"sync"

	"github.com/BboySticker/serverless/notifier"
	"github.com/slackmgr/types"
)

type countingMailer struct {
	mu   sync.Mutex
	sent int
}

func (m *countingMailer) Send(_ context.Context, _ notifier.Email) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent++

	return "id", nil
}

func (m *countingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sent
}

type nopLogger struct{}

//nolint:ireturn
func (l nopLogger) WithField(_ string, _ any) types.Logger { return l }

//nolint:ireturn
func (l nopLogger) WithFields(_ map[string]any) types.Logger { return l }
func (nopLogger) Debug(_ string)                           {}
func (nopLogger) Debugf(_ string, _ ...any)                {}
func (nopLogger) Info(_ string)                            {}
func (nopLogger) Infof(_ string, _ ...any)                 {}
func (nopLogger) Error(_ string)                           {}
func (nopLogger) Errorf(_ string, _ ...any)                {}

package notifier_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BboySticker/serverless/notifier"
	"github.com/slackmgr/types"
)

var fixedTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

// fakeStore is an in-memory TokenStore that records calls and can fail on demand.
type fakeStore struct {
	mu        sync.Mutex
	tokens    map[string]notifier.Token
	findErr   error
	createErr error
	updateErr error
	finds     int
	creates   int
	updates   int
}

func newFakeStore(tokens ...notifier.Token) *fakeStore {
	s := &fakeStore{tokens: make(map[string]notifier.Token)}
	for _, t := range tokens {
		s.tokens[t.RecipientKey] = t
	}
	return s
}

func (s *fakeStore) FindToken(_ context.Context, recipient string) (*notifier.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finds++

	if s.findErr != nil {
		return nil, s.findErr
	}

	t, ok := s.tokens[recipient]
	if !ok {
		return nil, nil //nolint:nilnil
	}

	return &t, nil
}

func (s *fakeStore) CreateToken(_ context.Context, token *notifier.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creates++

	if s.createErr != nil {
		return s.createErr
	}

	s.tokens[token.RecipientKey] = *token

	return nil
}

func (s *fakeStore) UpdateToken(_ context.Context, token *notifier.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updates++

	if s.updateErr != nil {
		return s.updateErr
	}

	if _, ok := s.tokens[token.RecipientKey]; !ok {
		return errors.New("token not found")
	}

	s.tokens[token.RecipientKey] = *token

	return nil
}

func (s *fakeStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.creates + s.updates
}

func (s *fakeStore) token(recipient string) (notifier.Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[recipient]

	return t, ok
}

// fakeMailer records every email it is asked to send.
type fakeMailer struct {
	mu      sync.Mutex
	sent    []notifier.Email
	sendErr error
}

func (m *fakeMailer) Send(_ context.Context, email notifier.Email) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendErr != nil {
		return "", m.sendErr
	}

	m.sent = append(m.sent, email)

	return "msg-0001", nil
}

func (m *fakeMailer) emails() []notifier.Email {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]notifier.Email(nil), m.sent...)
}

// mockLogger is a no-op logger for testing.
type mockLogger struct{}

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

// recordingLogger captures Info and Error messages. Fields are ignored.
type recordingLogger struct {
	mu     sync.Mutex
	infos  []string
	errs   []string
}

var _ types.Logger = (*recordingLogger)(nil)

//nolint:ireturn // Must return interface to implement types.Logger
func (r *recordingLogger) WithField(_ string, _ any) types.Logger { return r }

//nolint:ireturn // Must return interface to implement types.Logger
func (r *recordingLogger) WithFields(_ map[string]any) types.Logger { return r }
func (r *recordingLogger) Debug(_ string)                           {}
func (r *recordingLogger) Debugf(_ string, _ ...any)                {}
func (r *recordingLogger) Infof(_ string, _ ...any)                 {}
func (r *recordingLogger) Errorf(_ string, _ ...any)                {}

func (r *recordingLogger) Info(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.infos = append(r.infos, msg)
}

func (r *recordingLogger) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errs = append(r.errs, msg)
}

func (r *recordingLogger) infoMessages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.infos...)
}

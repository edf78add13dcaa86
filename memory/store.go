// Package memory provides an in-process notifier.TokenStore.
//
// The store is intended for tests and single-instance local development. It
// keeps no state across restarts and is not shared between processes, so it
// offers no debouncing across Lambda instances or worker replicas.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BboySticker/serverless/notifier"
)

// ErrTokenNotFound is returned by UpdateToken when the recipient has no token.
var ErrTokenNotFound = errors.New("token not found")

// Store is a mutex-guarded map of recipient key to token.
type Store struct {
	mu     sync.RWMutex
	tokens map[string]notifier.Token
	clock  func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		tokens: make(map[string]notifier.Token),
		clock:  time.Now,
	}
}

// WithClock replaces the clock used by DeleteExpired. It returns the store for chaining.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

// FindToken returns a copy of the recipient's token, or nil if there is none.
func (s *Store) FindToken(ctx context.Context, recipient string) (*notifier.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[recipient]
	if !ok {
		return nil, nil //nolint:nilnil
	}

	return &token, nil
}

// CreateToken stores token, replacing any existing token for the recipient.
func (s *Store) CreateToken(ctx context.Context, token *notifier.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if token == nil {
		return errors.New("token cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[token.RecipientKey] = *token

	return nil
}

// UpdateToken overwrites the link and expiry of an existing token.
func (s *Store) UpdateToken(ctx context.Context, token *notifier.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if token == nil {
		return errors.New("token cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[token.RecipientKey]; !ok {
		return ErrTokenNotFound
	}

	s.tokens[token.RecipientKey] = *token

	return nil
}

// DeleteExpired removes expired tokens and returns how many were removed.
func (s *Store) DeleteExpired(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0

	for key, token := range s.tokens {
		if !token.Active(now) {
			delete(s.tokens, key)
			removed++
		}
	}

	return removed, nil
}

// Len returns the number of stored tokens.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.tokens)
}

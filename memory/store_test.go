package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BboySticker/serverless/memory"
	"github.com/BboySticker/serverless/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func TestStore_FindToken(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()

	token, err := s.FindToken(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Nil(t, token)

	require.NoError(t, s.CreateToken(ctx, &notifier.Token{RecipientKey: "a@b.com", Link: "x.com/v1/bills/1", ExpiresAt: 100}))

	token, err = s.FindToken(ctx, "a@b.com")
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "x.com/v1/bills/1", token.Link)

	// Returned tokens are copies.
	token.Link = "changed"
	again, _ := s.FindToken(ctx, "a@b.com")
	assert.Equal(t, "x.com/v1/bills/1", again.Link)
}

func TestStore_UpdateToken(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()

	err := s.UpdateToken(ctx, &notifier.Token{RecipientKey: "a@b.com"})
	require.ErrorIs(t, err, memory.ErrTokenNotFound)

	require.NoError(t, s.CreateToken(ctx, &notifier.Token{RecipientKey: "a@b.com", Link: "old", ExpiresAt: 1}))
	require.NoError(t, s.UpdateToken(ctx, &notifier.Token{RecipientKey: "a@b.com", Link: "new", ExpiresAt: 2}))

	token, _ := s.FindToken(ctx, "a@b.com")
	assert.Equal(t, "new", token.Link)
	assert.Equal(t, int64(2), token.ExpiresAt)
}

func TestStore_NilToken(t *testing.T) {
	t.Parallel()

	s := memory.New()

	require.Error(t, s.CreateToken(context.Background(), nil))
	require.Error(t, s.UpdateToken(context.Background(), nil))
}

func TestStore_CancelledContext(t *testing.T) {
	t.Parallel()

	s := memory.New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.FindToken(ctx, "a@b.com")
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, s.CreateToken(ctx, &notifier.Token{RecipientKey: "a@b.com"}), context.Canceled)
}

func TestStore_DeleteExpired(t *testing.T) {
	t.Parallel()

	s := memory.New().WithClock(func() time.Time { return fixedTime })
	ctx := context.Background()

	require.NoError(t, s.CreateToken(ctx, &notifier.Token{RecipientKey: "expired", ExpiresAt: fixedTime.Unix() - 1}))
	require.NoError(t, s.CreateToken(ctx, &notifier.Token{RecipientKey: "boundary", ExpiresAt: fixedTime.Unix()}))
	require.NoError(t, s.CreateToken(ctx, &notifier.Token{RecipientKey: "active", ExpiresAt: fixedTime.Unix() + 60}))

	removed, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, s.Len())
}

func TestStore_WithHandler(t *testing.T) {
	t.Parallel()

	s := memory.New()
	mailer := &countingMailer{}

	h, err := notifier.New(s, mailer, nopLogger{}, notifier.WithClock(func() time.Time { return fixedTime }))
	require.NoError(t, err)

	msg := `{"ownerEmail":"a@b.com","recordId":"42","domain":"x.com"}`

	var wg sync.WaitGroup
	for range 5 {
		wg.Go(func() {
			_, _ = h.Handle(context.Background(), msg)
		})
	}
	wg.Wait()

	outcome, err := h.Handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, notifier.OutcomeDebounced, outcome)
	assert.Equal(t, 1, s.Len())
	assert.GreaterOrEqual(t, mailer.count(), 1)
}

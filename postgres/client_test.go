package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BboySticker/serverless/notifier"
	"github.com/BboySticker/serverless/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

// Verify Client satisfies the token store contract.
var _ notifier.TokenStore = (*postgres.Client)(nil)

//nolint:ireturn // Returning interface is appropriate for test mock helper
func newClientWithMock(t *testing.T, opts ...postgres.Option) (*postgres.Client, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	opts = append([]postgres.Option{
		postgres.WithHost("localhost"),
		postgres.WithPort(5432),
		postgres.WithUser("testuser"),
		postgres.WithDatabase("testdb"),
		postgres.WithClock(func() time.Time { return fixedTime }),
	}, opts...)

	client := postgres.New(opts...)
	client.SetPool(mock)

	return client, mock
}

// =============================================================================
// Constructor and Connection Tests
// =============================================================================

func TestNew(t *testing.T) {
	t.Parallel()

	client := postgres.New(postgres.WithUser("testuser"), postgres.WithDatabase("testdb"))

	assert.NotNil(t, client)
	assert.False(t, client.HasActiveTTLCleanup())
}

func TestClose(t *testing.T) {
	t.Parallel()

	t.Run("close without connection is a no-op", func(t *testing.T) {
		t.Parallel()

		client := postgres.New()

		require.NoError(t, client.Close(context.Background()))
	})

	t.Run("close releases the pool", func(t *testing.T) {
		t.Parallel()

		client, mock := newClientWithMock(t)
		mock.ExpectClose()

		require.NoError(t, client.Close(context.Background()))
		require.NoError(t, mock.ExpectationsWereMet())

		_, err := client.FindToken(context.Background(), "a@b.com")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not connected")
	})
}

func TestConnect_InvalidConfig(t *testing.T) {
	t.Parallel()

	client := postgres.New(postgres.WithDatabase("testdb"))

	err := client.Connect(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid Postgres db configuration")
}

// =============================================================================
// Init Tests
// =============================================================================

func TestInit_NotConnected(t *testing.T) {
	t.Parallel()

	client := postgres.New(postgres.WithUser("testuser"), postgres.WithDatabase("testdb"))

	err := client.Init(context.Background(), false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestInit_CreatesAndVerifiesSchema(t *testing.T) {
	t.Parallel()

	client, mock := newClientWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS notification_tokens").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS notification_tokens_expires_at_idx").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT table_name, column_name, data_type, is_nullable FROM information_schema.columns").
		WithArgs("notification_tokens").
		WillReturnRows(pgxmock.NewRows([]string{"table_name", "column_name", "data_type", "is_nullable"}).
			AddRow("notification_tokens", "recipient_key", "text", "NO").
			AddRow("notification_tokens", "link", "text", "NO").
			AddRow("notification_tokens", "expires_at", "bigint", "NO"))

	err := client.Init(context.Background(), false)

	require.NoError(t, err)
	assert.False(t, client.HasActiveTTLCleanup())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInit_SchemaMismatch(t *testing.T) {
	t.Parallel()

	client, mock := newClientWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT table_name").
		WithArgs("notification_tokens").
		WillReturnRows(pgxmock.NewRows([]string{"table_name", "column_name", "data_type", "is_nullable"}).
			AddRow("notification_tokens", "recipient_key", "text", "NO").
			AddRow("notification_tokens", "link", "text", "NO").
			AddRow("notification_tokens", "expires_at", "timestamp with time zone", "NO"))

	err := client.Init(context.Background(), false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "data type mismatch")
}

func TestInit_CreateStatementFails(t *testing.T) {
	t.Parallel()

	client, mock := newClientWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err := client.Init(context.Background(), true)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInit_TTLCleanupStarted(t *testing.T) {
	t.Parallel()

	t.Run("cleanup goroutine starts after Init and stops after Close", func(t *testing.T) {
		t.Parallel()

		client, mock := newClientWithMock(t, postgres.WithTTLCleanupInterval(time.Hour))

		mock.ExpectBegin()

		for range 2 {
			mock.ExpectExec("").WillReturnResult(pgxmock.NewResult("", 0))
		}

		mock.ExpectCommit()

		require.NoError(t, client.Init(context.Background(), true))

		assert.True(t, client.HasActiveTTLCleanup())

		mock.ExpectClose()

		_ = client.Close(context.Background())

		assert.False(t, client.HasActiveTTLCleanup())
	})
}

// =============================================================================
// Token Tests
// =============================================================================

func TestFindToken(t *testing.T) {
	t.Parallel()

	t.Run("empty recipient returns error", func(t *testing.T) {
		t.Parallel()

		client, _ := newClientWithMock(t)

		_, err := client.FindToken(context.Background(), "")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "recipient cannot be empty")
	})

	t.Run("not found returns nil without error", func(t *testing.T) {
		t.Parallel()

		client, mock := newClientWithMock(t)

		mock.ExpectQuery("SELECT recipient_key, link, expires_at FROM notification_tokens").
			WithArgs("a@b.com").
			WillReturnRows(pgxmock.NewRows([]string{"recipient_key", "link", "expires_at"}))

		token, err := client.FindToken(context.Background(), "a@b.com")

		require.NoError(t, err)
		assert.Nil(t, token)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("found token returns data", func(t *testing.T) {
		t.Parallel()

		client, mock := newClientWithMock(t)

		mock.ExpectQuery("SELECT recipient_key, link, expires_at FROM notification_tokens").
			WithArgs("a@b.com").
			WillReturnRows(pgxmock.NewRows([]string{"recipient_key", "link", "expires_at"}).
				AddRow("a@b.com", "x.com/v1/bills/42", int64(1705323600)))

		token, err := client.FindToken(context.Background(), "a@b.com")

		require.NoError(t, err)
		require.NotNil(t, token)
		assert.Equal(t, notifier.Token{RecipientKey: "a@b.com", Link: "x.com/v1/bills/42", ExpiresAt: 1705323600}, *token)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error is wrapped", func(t *testing.T) {
		t.Parallel()

		client, mock := newClientWithMock(t)

		mock.ExpectQuery("SELECT recipient_key").
			WithArgs("a@b.com").
			WillReturnError(errors.New("connection reset"))

		_, err := client.FindToken(context.Background(), "a@b.com")

		require.Error(t, err)
		assert.NotErrorIs(t, err, pgx.ErrNoRows)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestCreateToken(t *testing.T) {
	t.Parallel()

	t.Run("nil token returns error", func(t *testing.T) {
		t.Parallel()

		client, _ := newClientWithMock(t)

		err := client.CreateToken(context.Background(), nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "token cannot be nil")
	})

	t.Run("inserts with upsert", func(t *testing.T) {
		t.Parallel()

		client, mock := newClientWithMock(t)

		mock.ExpectExec("INSERT INTO notification_tokens .* ON CONFLICT").
			WithArgs("a@b.com", "x.com/v1/bills/42", int64(1705323600)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := client.CreateToken(context.Background(), &notifier.Token{RecipientKey: "a@b.com", Link: "x.com/v1/bills/42", ExpiresAt: 1705323600})

		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec error is wrapped", func(t *testing.T) {
		t.Parallel()

		client, mock := newClientWithMock(t)

		mock.ExpectExec("INSERT INTO notification_tokens").
			WithArgs("a@b.com", "", int64(0)).
			WillReturnError(errors.New("disk full"))

		err := client.CreateToken(context.Background(), &notifier.Token{RecipientKey: "a@b.com"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})
}

func TestUpdateToken(t *testing.T) {
	t.Parallel()

	t.Run("updates existing row", func(t *testing.T) {
		t.Parallel()

		client, mock := newClientWithMock(t)

		mock.ExpectExec("UPDATE notification_tokens SET link").
			WithArgs("a@b.com", "x.com/v1/bills/7", int64(1705323600)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := client.UpdateToken(context.Background(), &notifier.Token{RecipientKey: "a@b.com", Link: "x.com/v1/bills/7", ExpiresAt: 1705323600})

		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row returns ErrTokenNotFound", func(t *testing.T) {
		t.Parallel()

		client, mock := newClientWithMock(t)

		mock.ExpectExec("UPDATE notification_tokens").
			WithArgs("a@b.com", "l", int64(1)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := client.UpdateToken(context.Background(), &notifier.Token{RecipientKey: "a@b.com", Link: "l", ExpiresAt: 1})

		require.ErrorIs(t, err, postgres.ErrTokenNotFound)
	})
}

func TestDeleteExpired(t *testing.T) {
	t.Parallel()

	client, mock := newClientWithMock(t, postgres.WithTokensTable("tokens"))

	mock.ExpectExec("DELETE FROM tokens WHERE expires_at <=").
		WithArgs(fixedTime.Unix()).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	deleted, err := client.DeleteExpired(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDropAllData(t *testing.T) {
	t.Parallel()

	t.Run("not connected", func(t *testing.T) {
		t.Parallel()

		client := postgres.New(postgres.WithUser("testuser"), postgres.WithDatabase("testdb"))

		err := client.DropAllData(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "not connected")
	})

	t.Run("drops token table", func(t *testing.T) {
		t.Parallel()

		client, mock := newClientWithMock(t)

		mock.ExpectBegin()
		mock.ExpectExec("DROP TABLE IF EXISTS notification_tokens").WillReturnResult(pgxmock.NewResult("DROP", 0))
		mock.ExpectCommit()

		require.NoError(t, client.DropAllData(context.Background()))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

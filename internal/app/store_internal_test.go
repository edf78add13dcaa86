//nolint:testpackage // Tests the unexported option builder
package app

import (
	"testing"
	"time"

	"github.com/BboySticker/serverless/internal/config"
)

func TestPostgresOptions_TTLCleanupInterval(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	base := len(postgresOptions(cfg))

	cfg.Postgres.TTLCleanupInterval = 10 * time.Minute

	if got := len(postgresOptions(cfg)); got != base+1 {
		t.Errorf("expected %d options with cleanup interval, got %d", base+1, got)
	}

	cfg.Postgres.TTLCleanupInterval = 0

	if got := len(postgresOptions(cfg)); got != base {
		t.Errorf("expected %d options without cleanup interval, got %d", base, got)
	}
}

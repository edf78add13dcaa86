package app

import (
	"context"
	"time"
)

// ExpiredTokenDeleter is implemented by stores that do not evict expired
// tokens on their own.
type ExpiredTokenDeleter interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// RunSweeper deletes expired tokens every store.sweep_interval until ctx is
// cancelled. It returns immediately when the interval is zero or the store
// evicts tokens itself.
func (a *App) RunSweeper(ctx context.Context) error {
	interval := a.Config.Store.SweepInterval

	deleter, ok := a.Store.(ExpiredTokenDeleter)
	if !ok || interval <= 0 {
		return nil
	}

	logger := a.Logger.WithField("sweep_interval", interval.String())
	logger.Info("Expired token sweeper started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Expired token sweeper exited")
			return nil
		case <-ticker.C:
			n, err := deleter.DeleteExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}

				logger.Errorf("Failed to delete expired tokens: %v", err)

				continue
			}

			if n > 0 {
				logger.WithField("count", n).Info("Deleted expired tokens")
			}
		}
	}
}

package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/genie/internal/store"
)

const sweepInterval = 15 * time.Minute

// StartSessionSweeper periodically deletes expired sessions until ctx is done.
func StartSessionSweeper(ctx context.Context, repo store.Repository, interval time.Duration) {
	if interval <= 0 {
		interval = sweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				sweepExpiredSessions(ctx, repo, time.Now())
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepExpiredSessions(ctx context.Context, repo store.Repository, now time.Time) int64 {
	deleted, err := repo.DeleteExpiredSessions(ctx, now)
	if err != nil {
		slog.Error("Session sweeper failed", "error", err)
		return 0
	}
	if deleted > 0 {
		slog.Info("Session sweeper removed expired sessions", "count", deleted)
	}
	return deleted
}

package store

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner is the part of a CheckpointStore the retention worker needs.
type Cleaner interface {
	CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error)
}

// CleanupCallback is called after each sweep that removed checkpoints.
type CleanupCallback func(removed int64)

// StartRetentionWorker runs a background goroutine that periodically removes
// checkpoints idle longer than ttl. It stops when ctx is cancelled.
func StartRetentionWorker(ctx context.Context, c Cleaner, interval, ttl time.Duration, onCleanup CleanupCallback) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweepExpired(ctx, c, ttl, onCleanup)
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepExpired(ctx context.Context, c Cleaner, ttl time.Duration, onCleanup CleanupCallback) {
	removed, err := c.CleanupExpired(ctx, ttl)
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Retention worker: context canceled during cleanup", "error", err)
			return
		}
		slog.Error("Retention worker failed to cleanup expired checkpoints", "error", err)
		return
	}
	if removed == 0 {
		return
	}

	slog.Info("Retention worker removed expired checkpoints", "count", removed)
	if onCleanup != nil {
		onCleanup(removed)
	}
}

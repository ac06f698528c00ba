package otp

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/parley/internal/observability/metrics"
	"github.com/ashureev/parley/internal/store"
)

// DefaultSweepInterval is how often expired codes are purged.
const DefaultSweepInterval = time.Minute

// StartSweeper runs a background goroutine that periodically deletes expired
// codes until ctx is canceled.
func StartSweeper(ctx context.Context, repo store.Repository, interval time.Duration, m *metrics.Metrics) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("OTP sweeper started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, repo, m, time.Now())
			case <-ctx.Done():
				slog.Info("OTP sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweep(ctx context.Context, repo store.Repository, m *metrics.Metrics, now time.Time) int64 {
	deleted, err := repo.DeleteExpiredOTPs(ctx, now)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("OTP sweeper failed to delete expired codes", "error", err)
		}
		return 0
	}
	if deleted > 0 {
		m.OTPSwept.Add(float64(deleted))
		slog.Debug("OTP sweeper removed expired codes", "count", deleted)
	}
	return deleted
}

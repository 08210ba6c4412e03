package points

import (
	"context"
	"log/slog"
	"time"
)

// RunExpireLoop runs Expire once at start, then every interval, until ctx is
// cancelled. Same ticker shape as the teacher's RunScheduleTopUpLoop.
func RunExpireLoop(ctx context.Context, svc *Service, logger *slog.Logger, interval time.Duration) {
	logger.Info("point expiry loop started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runExpireOnce(ctx, svc, logger)

	for {
		select {
		case <-ctx.Done():
			logger.Info("point expiry loop stopped")
			return
		case <-ticker.C:
			runExpireOnce(ctx, svc, logger)
		}
	}
}

func runExpireOnce(ctx context.Context, svc *Service, logger *slog.Logger) {
	count, err := svc.Expire(ctx)
	if err != nil {
		logger.Error("point expiry sweep", "error", err)
		return
	}
	if count > 0 {
		logger.Info("point expiry sweep complete", "expired_count", count)
	}
}

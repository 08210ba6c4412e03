package reservation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AutoProgress is the periodic sweep named in C6: requested reservations
// older than expireAfter become expired; confirmed reservations whose
// start+grace has passed without check-in become no_show.
func (s *Service) AutoProgress(ctx context.Context, expireAfter, noShowGrace time.Duration) error {
	now := time.Now().UTC()

	expiredIDs, err := s.store.ExpiredRequested(ctx, now.Add(-expireAfter))
	if err != nil {
		return err
	}
	for _, id := range expiredIDs {
		if _, err := s.Transition(ctx, id, StatusExpired, uuid.Nil, "auto-expired: no shop response"); err != nil {
			s.logger.Error("auto-expiring reservation", "reservation_id", id, "error", err)
		}
	}

	overdueIDs, err := s.store.OverdueConfirmed(ctx, now.Add(-noShowGrace))
	if err != nil {
		return err
	}
	for _, id := range overdueIDs {
		if _, err := s.Transition(ctx, id, StatusNoShow, uuid.Nil, "auto-marked: no check-in within grace period"); err != nil {
			s.logger.Error("auto-marking no-show", "reservation_id", id, "error", err)
		}
	}

	return nil
}

// RunAutoProgressLoop runs AutoProgress once at start, then every interval,
// until ctx is cancelled.
func RunAutoProgressLoop(ctx context.Context, svc *Service, logger *slog.Logger, interval, expireAfter, noShowGrace time.Duration) {
	logger.Info("reservation auto-progress loop started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := svc.AutoProgress(ctx, expireAfter, noShowGrace); err != nil {
		logger.Error("initial reservation auto-progress", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("reservation auto-progress loop stopped")
			return
		case <-ticker.C:
			if err := svc.AutoProgress(ctx, expireAfter, noShowGrace); err != nil {
				logger.Error("reservation auto-progress", "error", err)
			}
		}
	}
}

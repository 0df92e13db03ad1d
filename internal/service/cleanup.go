package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/notes-auth/internal/logging"
)

// ExpiredPurger removes refresh records whose expiry is at or before now.
type ExpiredPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// StartRefreshTokenCleanup purges expired refresh records every interval
// until ctx is cancelled. Refresh already rejects expired records, so this
// only bounds table growth.
func StartRefreshTokenCleanup(ctx context.Context, purger ExpiredPurger, interval time.Duration, clock Clock, log logging.Logger) error {
	if clock == nil {
		clock = NewRealClock()
	}
	if log == nil {
		log = logging.Discard()
	}
	if interval <= 0 {
		return fmt.Errorf("refresh token cleanup: interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info(ctx, "refresh token cleanup started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			log.Info(context.WithoutCancel(ctx), "refresh token cleanup stopped")
			return nil
		case <-ticker.C:
			PurgeExpiredRefreshTokens(ctx, purger, clock, log)
		}
	}
}

// PurgeExpiredRefreshTokens runs a single cleanup pass.
func PurgeExpiredRefreshTokens(ctx context.Context, purger ExpiredPurger, clock Clock, log logging.Logger) int64 {
	n, err := purger.DeleteExpired(ctx, clock.Now().UTC())
	if err != nil {
		log.Error(ctx, "refresh token cleanup failed", "error", err)
		return 0
	}
	if n > 0 {
		refreshTokensPurgedTotal.Add(float64(n))
		log.Info(ctx, "expired refresh tokens purged", "count", n)
	}
	return n
}

package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunTimer ticks room once per period until ctx is canceled. Missed ticks are not
// replayed; a slow tick simply delays the rollover.
func RunTimer(ctx context.Context, room *Room, period time.Duration, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if room.Tick(ctx) {
				log.Debug("round rolled over", zap.String("hint", room.Question().Hint))
			}
		}
	}
}

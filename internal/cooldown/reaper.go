package cooldown

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically sweeps expired cooldown windows.
type Reaper struct {
	manager  *Manager
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// NewReaper creates a reaper for manager.
func NewReaper(manager *Manager, interval time.Duration, logger *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reaper{manager: manager, logger: logger, interval: interval, now: time.Now}
}

// Start sweeps in a goroutine until ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	r.logger.Info("cooldown reaper started", "interval", r.interval)

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.logger.Info("cooldown reaper stopped")
				return
			case <-ticker.C:
				if n := r.manager.Sweep(r.now().UnixMilli()); n > 0 {
					r.logger.Debug("cooldowns reaped", "count", n)
				}
			}
		}
	}()
}

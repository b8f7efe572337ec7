package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweep is the one engine operation the background loop needs.
type Sweep interface {
	Sweep(ctx context.Context, limit int) (int, error)
}

// Sweeper cancels expired unpaid online orders on a fixed interval.
type Sweeper struct {
	Engine   Sweep
	Interval time.Duration
	Limit    int
	Logger   *zap.Logger
}

// Run blocks until ctx is cancelled. Sweep failures are logged and the next
// tick runs anyway; a broken pass must never stop the loop.
func (s *Sweeper) Run(ctx context.Context) {
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	log.Info("expiry sweeper started",
		zap.Duration("interval", s.Interval), zap.Int("limit", s.Limit))
	for {
		select {
		case <-ctx.Done():
			log.Info("expiry sweeper stopped")
			return
		case <-t.C:
			if _, err := s.Engine.Sweep(ctx, s.Limit); err != nil {
				log.Error("sweep tick failed", zap.Error(err))
			}
		}
	}
}

package target

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically retires targets whose window has ended.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	logger   zerolog.Logger
}

func NewSweeper(svc *Service, interval time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{svc: svc, interval: interval, logger: logger}
}

// Run sweeps once immediately, then on every tick until the context is
// cancelled. Sweep failures are logged and the loop keeps going; the next
// tick retries naturally.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("target sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	retired, err := s.svc.Sweep(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error().Err(err).Msg("target sweep failed")
		return
	}
	s.logger.Debug().Int("retired", retired).Msg("target sweep completed")
}

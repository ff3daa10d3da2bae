package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/ridehall/busline/internal/domain"
)

// Expirer reclaims every hold past its TTL and reports what was freed.
type Expirer interface {
	Expire(ctx context.Context) ([]domain.ExpiredHold, error)
}

// Sweeper periodically reclaims expired holds. Confirm and hold paths also
// reclaim lazily, so the sweeper only bounds how long a dead hold can sit on
// seats.
type Sweeper struct {
	expirer  Expirer
	interval time.Duration
	log      *slog.Logger
}

func New(expirer Expirer, interval time.Duration, log *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	return &Sweeper{
		expirer:  expirer,
		interval: interval,
		log:      log,
	}
}

// Run sweeps on a ticker until ctx is cancelled. A failed sweep is logged
// and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("sweeper started", "interval", s.interval.String())

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	expired, err := s.expirer.Expire(ctx)
	if err != nil {
		s.log.Error("sweep failed", "error", err)
		return
	}

	if len(expired) == 0 {
		return
	}

	seats := 0
	for _, eh := range expired {
		seats += len(eh.SeatNos)
	}

	s.log.Info("reclaimed expired holds", "holds", len(expired), "seats", seats)
}

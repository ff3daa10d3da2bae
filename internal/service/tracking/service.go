package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ridehall/busline/internal/domain"
	redisrepo "github.com/ridehall/busline/internal/repository/redis"
)

var ErrNoPosition = errors.New("no recent position")

const positionTTL = 2 * time.Minute

// Service stores the last driver-reported position per schedule and
// broadcasts updates. Positions live only in Redis; a bus that stops
// reporting simply ages out.
type Service struct {
	cache  *redisrepo.Cache
	pubsub *redisrepo.PositionsPubSub
}

func New(cache *redisrepo.Cache, pubsub *redisrepo.PositionsPubSub) *Service {
	return &Service{
		cache:  cache,
		pubsub: pubsub,
	}
}

// ReportPosition records a position and broadcasts it to subscribers.
func (s *Service) ReportPosition(ctx context.Context, pos domain.BusPosition) error {
	const op = "service.tracking.ReportPosition"

	if pos.ReportedAt.IsZero() {
		pos.ReportedAt = time.Now().UTC()
	}

	key := redisrepo.KeyBusPosition(pos.ScheduleID)
	if err := redisrepo.SetJSON(ctx, s.cache, key, pos, positionTTL); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := s.pubsub.PublishPosition(ctx, pos); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Latest returns the last reported position for a schedule.
//
// Returns tracking.ErrNoPosition when nothing was reported within the TTL.
func (s *Service) Latest(ctx context.Context, scheduleID int64) (*domain.BusPosition, error) {
	const op = "service.tracking.Latest"

	key := redisrepo.KeyBusPosition(scheduleID)

	pos, ok, err := redisrepo.GetJSON[domain.BusPosition](ctx, s.cache, key)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if !ok {
		return nil, fmt.Errorf("%s:%w", op, ErrNoPosition)
	}

	return &pos, nil
}

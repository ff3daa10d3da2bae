package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ridehall/busline/internal/domain"
	"github.com/ridehall/busline/internal/repository"
	postgresrepo "github.com/ridehall/busline/internal/repository/postgres"
	redisrepo "github.com/ridehall/busline/internal/repository/redis"
	"github.com/ridehall/busline/internal/uow"
)

type Service struct {
	store  *postgresrepo.Store
	cache  *redisrepo.Cache
	pubsub *redisrepo.SchedulesPubSub
	uow    *uow.UoW
}

func New(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisrepo.SchedulesPubSub,
) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		pubsub: pubsub,
		uow:    uow.NewUoW(store),
	}
}

// CreateRoute registers an origin/destination pair and returns its ID.
func (s *Service) CreateRoute(ctx context.Context, origin, destination string) (int64, error) {
	const op = "service.catalog.CreateRoute"

	id, err := s.store.Catalog().CreateRoute(ctx, origin, destination)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return id, nil
}

// CreateSchedule inserts the schedule row and materializes its seat map in a
// single transaction. A schedule is never visible without its seats.
func (s *Service) CreateSchedule(
	ctx context.Context,
	routeID int64,
	departs, arrives time.Time,
	totalSeats int,
) (*domain.Schedule, error) {
	const op = "service.catalog.CreateSchedule"

	if totalSeats <= 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidCapacity)
	}

	var scheduleID int64

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		id, err := s.store.Catalog().With(tx).
			CreateSchedule(ctx, routeID, departs, arrives, totalSeats)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrRouteNotFound)
			}

			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%s:%w", op, ErrScheduleConflict)
			}

			return fmt.Errorf("%s:%w", op, err)
		}

		if _, err := s.store.Catalog().With(tx).
			InitScheduleSeats(ctx, id, totalSeats); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		scheduleID = id

		return nil
	})
	if err != nil {
		return nil, err
	}

	sch, err := s.store.Query().GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return sch, nil
}

// DeactivateSchedule closes a schedule for new holds. Existing holds and
// bookings are untouched.
func (s *Service) DeactivateSchedule(ctx context.Context, scheduleID int64) error {
	const op = "service.catalog.DeactivateSchedule"

	if err := s.store.Catalog().DeactivateSchedule(ctx, scheduleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrScheduleNotFound)
		}

		return fmt.Errorf("%s:%w", op, err)
	}

	_ = s.cache.InvalidateSchedule(ctx, scheduleID)
	_ = s.pubsub.PublishScheduleChanged(ctx, scheduleID)

	return nil
}

package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ridehall/busline/internal/domain"
	"github.com/ridehall/busline/internal/repository"
	postgresrepo "github.com/ridehall/busline/internal/repository/postgres"
	redisrepo "github.com/ridehall/busline/internal/repository/redis"
	"github.com/ridehall/busline/internal/uow"
)

// Notifier receives committed transitions. Implementations must be safe to
// call after the transaction: failures are the notifier's problem, never the
// booking path's.
type Notifier interface {
	BookingConfirmed(ctx context.Context, bookingID uuid.UUID, scheduleID int64, holderID string, seatNos []int)
	HoldExpired(ctx context.Context, expired domain.ExpiredHold)
}

type Config struct {
	DefaultHoldTTL time.Duration
	MinHoldTTL     time.Duration
	MaxHoldTTL     time.Duration
}

type Service struct {
	store    *postgresrepo.Store
	cache    *redisrepo.Cache
	pubsub   *redisrepo.SchedulesPubSub
	limiter  *redisrepo.SlidingWindowLimiter
	notifier Notifier
	uow      *uow.UoW
	cfg      Config
}

func New(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisrepo.SchedulesPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	notifier Notifier,
	cfg Config,
) *Service {
	if cfg.MinHoldTTL <= 0 {
		cfg.MinHoldTTL = 15 * time.Second
	}

	if cfg.MaxHoldTTL <= 0 || cfg.MaxHoldTTL < cfg.MinHoldTTL {
		cfg.MaxHoldTTL = 5 * time.Minute
	}

	if cfg.DefaultHoldTTL < cfg.MinHoldTTL || cfg.DefaultHoldTTL > cfg.MaxHoldTTL {
		cfg.DefaultHoldTTL = 2 * time.Minute
	}

	return &Service{
		store:    store,
		cache:    cache,
		pubsub:   pubsub,
		limiter:  limiter,
		notifier: notifier,
		uow:      uow.NewUoW(store),
		cfg:      cfg,
	}
}

// CreateHold places an all-or-nothing hold on the requested seats.
//
// Returns:
//   - the hold ID and its expiry on success.
//   - reservation.SeatsUnavailableError naming the blocking seats.
//   - reservation.ErrScheduleNotFound / ErrScheduleInactive.
//   - reservation.RateLimitedError when rlKey exhausted its window.
func (s *Service) CreateHold(
	ctx context.Context,
	scheduleID int64,
	holderID string,
	seatNos []int,
	ttl time.Duration,
	rlKey string,
) (uuid.UUID, time.Time, error) {
	const op = "service.reservation.CreateHold"

	if len(seatNos) == 0 {
		return uuid.Nil, time.Time{}, fmt.Errorf("%s: no seats selected", op)
	}

	ttl = s.clampTTL(ttl)

	if s.limiter != nil && rlKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			return uuid.Nil, time.Time{}, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			return uuid.Nil, time.Time{}, fmt.Errorf("%s:%w", op, &RateLimitedError{RetryAfter: retry.String()})
		}
	}

	var holdID uuid.UUID
	var expiresAt time.Time

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		hid, exp, err := s.store.Reservations().
			With(tx).
			HoldSeats(ctx, scheduleID, holderID, seatNos, ttl)
		if err != nil {
			var unavailable *repository.SeatsUnavailableError
			if errors.As(err, &unavailable) {
				return fmt.Errorf("%s:%w", op, &SeatsUnavailableError{SeatNos: unavailable.SeatNos})
			}

			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrScheduleNotFound)
			}

			if errors.Is(err, repository.ErrScheduleInactive) {
				return fmt.Errorf("%s:%w", op, ErrScheduleInactive)
			}

			return fmt.Errorf("%s:%w", op, err)
		}

		holdID = hid
		expiresAt = exp

		after(func(ctx context.Context) {
			_ = s.cache.InvalidateSchedule(ctx, scheduleID)
			_ = s.pubsub.PublishScheduleChanged(ctx, scheduleID)
		})

		return nil
	})
	if err != nil {
		return uuid.Nil, time.Time{}, err
	}

	return holdID, expiresAt, nil
}

// Confirm promotes a hold to a booking.
//
// Returns reservation.ErrHoldNotFound both for unknown holds and for holds
// whose TTL elapsed: an expired hold's record is reclaimed, so to callers it
// no longer exists.
func (s *Service) Confirm(ctx context.Context, holdID uuid.UUID) (uuid.UUID, int64, error) {
	const op = "service.reservation.Confirm"

	var bookingID uuid.UUID
	var scheduleID int64
	var holderID string
	var seatNos []int

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		bid, sid, err := s.store.Reservations().With(tx).ConfirmHold(ctx, holdID)
		if err != nil {
			scheduleID = sid

			// An expired hold surfaces as absence: the record is gone (or
			// about to be swept) from the caller's point of view.
			if errors.Is(err, repository.ErrHoldExpired) {
				return fmt.Errorf("%s:%w", op, ErrHoldNotFound)
			}

			if errors.Is(err, repository.ErrNotFound) ||
				errors.Is(err, repository.ErrNothingToConfirm) {
				return fmt.Errorf("%s:%w", op, ErrHoldNotFound)
			}

			return fmt.Errorf("%s:%w", op, err)
		}

		bookingID = bid
		scheduleID = sid

		b, err := s.store.Query().With(tx).GetBooking(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		holderID = b.HolderID
		seatNos = b.SeatNos

		after(func(ctx context.Context) {
			_ = s.cache.InvalidateSchedule(ctx, scheduleID)
			_ = s.pubsub.PublishScheduleChanged(ctx, scheduleID)
			if s.notifier != nil {
				s.notifier.BookingConfirmed(ctx, bookingID, scheduleID, holderID, seatNos)
			}
		})

		return nil
	})

	return bookingID, scheduleID, err
}

// Release cancels a hold. Idempotent: releasing an unknown, already
// released, or expired hold is a no-op, and booked seats are never touched.
func (s *Service) Release(ctx context.Context, holdID uuid.UUID) error {
	const op = "service.reservation.Release"

	scheduleID, released, err := s.store.Reservations().ReleaseHold(ctx, holdID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}

		return fmt.Errorf("%s:%w", op, err)
	}

	if len(released) > 0 {
		_ = s.cache.InvalidateSchedule(ctx, scheduleID)
		_ = s.pubsub.PublishScheduleChanged(ctx, scheduleID)
	}

	return nil
}

// CancelBooking refunds a paid booking and frees its seats.
func (s *Service) CancelBooking(ctx context.Context, bookingID uuid.UUID) (int64, error) {
	const op = "service.reservation.CancelBooking"

	var scheduleID int64

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		sid, err := s.store.Reservations().With(tx).CancelBooking(ctx, bookingID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrBookingNotFound)
			}

			if errors.Is(err, repository.ErrInvalidState) {
				return fmt.Errorf("%s:%w", op, ErrBookingNotRefundable)
			}

			return fmt.Errorf("%s:%w", op, err)
		}

		scheduleID = sid

		after(func(ctx context.Context) {
			_ = s.cache.InvalidateSchedule(ctx, scheduleID)
			_ = s.pubsub.PublishScheduleChanged(ctx, scheduleID)
		})

		return nil
	})

	return scheduleID, err
}

// Expire reclaims every hold past its TTL. The sweeper calls this on a
// timer; each reclaimed hold is reported to the notifier after commit.
func (s *Service) Expire(ctx context.Context) ([]domain.ExpiredHold, error) {
	const op = "service.reservation.Expire"

	expired, err := s.store.Reservations().ExpireHolds(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	seen := make(map[int64]bool, len(expired))
	for _, eh := range expired {
		if !seen[eh.ScheduleID] {
			seen[eh.ScheduleID] = true
			_ = s.cache.InvalidateSchedule(ctx, eh.ScheduleID)
			_ = s.pubsub.PublishScheduleChanged(ctx, eh.ScheduleID)
		}
		if s.notifier != nil {
			s.notifier.HoldExpired(ctx, eh)
		}
	}

	return expired, nil
}

func (s *Service) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.cfg.DefaultHoldTTL
	}

	if ttl < s.cfg.MinHoldTTL {
		return s.cfg.MinHoldTTL
	}

	if ttl > s.cfg.MaxHoldTTL {
		return s.cfg.MaxHoldTTL
	}

	return ttl
}

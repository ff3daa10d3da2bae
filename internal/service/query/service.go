package query

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
)

type Config struct {
	ScheduleTTL     time.Duration
	AvailabilityTTL time.Duration
	SeatMapTTL      time.Duration
}

type Service struct {
	store *postgresrepo.Store
	cache *redisrepo.Cache
	cfg   Config
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.ScheduleTTL <= 0 {
		cfg.ScheduleTTL = 60 * time.Second
	}

	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = 15 * time.Second
	}

	if cfg.SeatMapTTL <= 0 {
		cfg.SeatMapTTL = 5 * time.Second
	}

	return &Service{
		store: store,
		cache: cache,
		cfg:   cfg,
	}
}

// GetSchedule retrieves a schedule through the cache.
//
// Returns query.ErrScheduleNotFound if the schedule does not exist.
func (s *Service) GetSchedule(ctx context.Context, id int64) (*domain.Schedule, error) {
	const op = "service.query.GetSchedule"

	key := redisrepo.KeySchedule(id)

	schedule, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.ScheduleTTL,
		func(ctx context.Context) (domain.Schedule, error) {
			sch, err := s.store.Query().GetSchedule(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Schedule{}, ErrScheduleNotFound
				}

				return domain.Schedule{}, err
			}

			return *sch, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &schedule, nil
}

// GetRoute retrieves a route (uncached; the admin path is cold).
func (s *Service) GetRoute(ctx context.Context, id int64) (*domain.Route, error) {
	const op = "service.query.GetRoute"

	rt, err := s.store.Query().GetRoute(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrRouteNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rt, nil
}

// Availability returns seat counts by state for a schedule.
func (s *Service) Availability(ctx context.Context, scheduleID int64) (*domain.ScheduleCounts, error) {
	const op = "service.query.Availability"

	key := redisrepo.KeyScheduleAvailability(scheduleID)

	counts, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.AvailabilityTTL,
		func(ctx context.Context) (domain.ScheduleCounts, error) {
			c, err := s.store.Query().CountsByStatus(ctx, scheduleID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.ScheduleCounts{}, ErrScheduleNotFound
				}

				return domain.ScheduleCounts{}, err
			}

			return *c, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &counts, nil
}

// SeatMap returns the schedule's seat map snapshot. The cache TTL is short
// and every mutation invalidates it, so clients see holds promptly.
func (s *Service) SeatMap(ctx context.Context, scheduleID int64) ([]domain.SeatState, error) {
	const op = "service.query.SeatMap"

	key := redisrepo.KeyScheduleSeatMap(scheduleID)

	seats, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.SeatMapTTL,
		func(ctx context.Context) ([]domain.SeatState, error) {
			snap, err := s.store.Query().SeatMapSnapshot(ctx, scheduleID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil, ErrScheduleNotFound
				}

				return nil, err
			}

			return snap, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return seats, nil
}

// GetHold returns a hold by ID, uncached. A hold past its expiry is
// reported as not found even if the sweeper has not reclaimed it yet.
func (s *Service) GetHold(ctx context.Context, id uuid.UUID) (*domain.Hold, error) {
	const op = "service.query.GetHold"

	h, err := s.store.Query().GetHold(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrHoldNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !h.ExpiresAt.After(time.Now()) {
		return nil, fmt.Errorf("%s: %w", op, ErrHoldNotFound)
	}

	return h, nil
}

// AuditResult reports whether replaying the ledger reproduces the stored
// seat map.
type AuditResult struct {
	ScheduleID int64          `json:"schedule_id"`
	Entries    int            `json:"entries"`
	Consistent bool           `json:"consistent"`
	Mismatches []SeatMismatch `json:"mismatches,omitempty"`
	ReplayErr  string         `json:"replay_error,omitempty"`
}

type SeatMismatch struct {
	SeatNo int               `json:"seat_no"`
	Stored domain.SeatStatus `json:"stored"`
	Replay domain.SeatStatus `json:"replayed"`
}

// Audit replays the schedule's ledger from empty and diffs the result
// against the live seat map. Transient holds make the two views diverge
// only when a mutation committed between the two reads, so a clean system
// reports consistent on a quiet schedule.
func (s *Service) Audit(ctx context.Context, scheduleID int64) (*AuditResult, error) {
	const op = "service.query.Audit"

	sch, err := s.store.Query().GetSchedule(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrScheduleNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entries, err := s.store.Query().ListLedger(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stored, err := s.store.Query().SeatMapSnapshot(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := &AuditResult{
		ScheduleID: scheduleID,
		Entries:    len(entries),
	}

	replayed, err := domain.ReplaySeatMap(sch.TotalSeats, entries)
	if err != nil {
		result.ReplayErr = err.Error()
		return result, nil
	}

	for _, st := range stored {
		if got := replayed[st.SeatNo]; got != st.Status {
			result.Mismatches = append(result.Mismatches, SeatMismatch{
				SeatNo: st.SeatNo,
				Stored: st.Status,
				Replay: got,
			})
		}
	}

	result.Consistent = len(result.Mismatches) == 0

	return result, nil
}

// Ledger returns the raw ledger entries of a schedule in sequence order.
func (s *Service) Ledger(ctx context.Context, scheduleID int64) ([]domain.LedgerEntry, error) {
	const op = "service.query.Ledger"

	entries, err := s.store.Query().ListLedger(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entries, nil
}

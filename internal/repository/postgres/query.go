package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ridehall/busline/internal/domain"
	"github.com/ridehall/busline/internal/repository"
)

type QueryRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *QueryRepo) With(db DB) *QueryRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *QueryRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// GetRoute retrieves a route by its ID.
//
// Returns repository.ErrNotFound if the route does not exist.
func (r *QueryRepo) GetRoute(ctx context.Context, id int64) (*domain.Route, error) {
	const op = "postgres.QueryRepo.GetRoute"

	db := r.handle()

	var rt domain.Route
	err := db.QueryRow(ctx,
		`SELECT id, origin, destination, active
		 FROM routes WHERE id = $1`,
		id,
	).Scan(&rt.ID, &rt.Origin, &rt.Destination, &rt.Active)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &rt, nil
}

// GetSchedule retrieves a schedule by its ID.
//
// Returns repository.ErrNotFound if the schedule does not exist.
func (r *QueryRepo) GetSchedule(ctx context.Context, id int64) (*domain.Schedule, error) {
	const op = "postgres.QueryRepo.GetSchedule"

	db := r.handle()

	var s domain.Schedule
	err := db.QueryRow(ctx,
		`SELECT id, route_id, departs_at, arrives_at, total_seats, active
		 FROM schedules WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.RouteID, &s.DepartsAt, &s.ArrivesAt, &s.TotalSeats, &s.Active)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &s, nil
}

// SeatMapSnapshot returns the full seat map of a schedule ordered by seat
// number. Each seat appears exactly once; the read is a single statement, so
// no seat can be observed mid-transition.
func (r *QueryRepo) SeatMapSnapshot(ctx context.Context, scheduleID int64) ([]domain.SeatState, error) {
	const op = "postgres.QueryRepo.SeatMapSnapshot"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT seat_no, status
		 FROM schedule_seats
		 WHERE schedule_id = $1
		 ORDER BY seat_no`,
		scheduleID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.SeatState
	for rows.Next() {
		var st domain.SeatState
		var status string
		if err := rows.Scan(&st.SeatNo, &status); err != nil {
			return nil, wrapDBErr(op, err)
		}
		st.Status = domain.SeatStatus(status)
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return out, nil
}

// CountsByStatus counts seats by state for a schedule.
func (r *QueryRepo) CountsByStatus(ctx context.Context, scheduleID int64) (*domain.ScheduleCounts, error) {
	const op = "postgres.QueryRepo.CountsByStatus"

	db := r.handle()

	var c domain.ScheduleCounts
	err := db.QueryRow(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN status = 'free' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'held' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'booked' THEN 1 ELSE 0 END), 0)
		 FROM schedule_seats
		 WHERE schedule_id = $1`,
		scheduleID,
	).Scan(&c.Free, &c.Held, &c.Booked)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	c.Total = c.Free + c.Held + c.Booked
	if c.Total == 0 {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return &c, nil
}

// GetHold retrieves a hold and the seats it covers.
//
// Returns repository.ErrNotFound if the hold does not exist. Expiry is not
// checked here; callers decide whether a past-expiry hold still counts.
func (r *QueryRepo) GetHold(ctx context.Context, id uuid.UUID) (*domain.Hold, error) {
	const op = "postgres.QueryRepo.GetHold"

	db := r.handle()

	var h domain.Hold
	err := db.QueryRow(ctx,
		`SELECT id, schedule_id, holder_id, expires_at, created_at
		 FROM holds WHERE id = $1`,
		id,
	).Scan(&h.ID, &h.ScheduleID, &h.HolderID, &h.ExpiresAt, &h.CreatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	rows, err := db.Query(ctx,
		`SELECT seat_no FROM schedule_seats
		 WHERE hold_id = $1
		 ORDER BY seat_no`,
		id,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	h.SeatNos, err = scanSeatNos(rows)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &h, nil
}

// GetBooking retrieves a booking by its ID.
//
// Returns repository.ErrNotFound if the booking does not exist.
func (r *QueryRepo) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgres.QueryRepo.GetBooking"

	db := r.handle()

	var b domain.Booking
	var rawSeats []int32
	var status string

	err := db.QueryRow(ctx,
		`SELECT id, schedule_id, holder_id, seat_nos, payment_status, created_at
		 FROM bookings WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.ScheduleID, &b.HolderID, &rawSeats, &status, &b.CreatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	b.SeatNos = fromPgSeatNos(rawSeats)
	b.PaymentStatus = domain.PaymentStatus(status)

	return &b, nil
}

// ListLedger returns every ledger entry of a schedule in sequence order,
// the input for seat-map reconstruction and audit.
func (r *QueryRepo) ListLedger(ctx context.Context, scheduleID int64) ([]domain.LedgerEntry, error) {
	const op = "postgres.QueryRepo.ListLedger"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, schedule_id, seq, entry_type, hold_id, booking_id, holder_id, seat_nos, recorded_at
		 FROM ledger_entries
		 WHERE schedule_id = $1
		 ORDER BY seq`,
		scheduleID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var entryType string
		var holdID, bookingID uuid.NullUUID
		var rawSeats []int32

		if err := rows.Scan(
			&e.ID,
			&e.ScheduleID,
			&e.Seq,
			&entryType,
			&holdID,
			&bookingID,
			&e.HolderID,
			&rawSeats,
			&e.RecordedAt,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}

		e.Type = domain.LedgerEntryType(entryType)
		e.HoldID = holdID.UUID
		e.BookingID = bookingID.UUID
		e.SeatNos = fromPgSeatNos(rawSeats)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

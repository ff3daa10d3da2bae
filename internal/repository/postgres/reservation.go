package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ridehall/busline/internal/domain"
	"github.com/ridehall/busline/internal/repository"
)

// ReservationRepo owns every seat-map mutation. Each mutation appends its
// ledger entry on the same transaction, so the seat map never gets ahead of
// or behind the ledger.
type ReservationRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *ReservationRepo) With(db DB) *ReservationRepo {
	cp := *r
	cp.db = db
	return &cp
}

// HoldSeats places an all-or-nothing hold on seatNos for holderID.
//
// Returns the hold ID and its expiry, or:
//   - repository.SeatsUnavailableError naming the seats that are not free.
//   - repository.ErrNotFound if the schedule does not exist.
//   - repository.ErrScheduleInactive if the schedule was deactivated.
func (r *ReservationRepo) HoldSeats(
	ctx context.Context,
	scheduleID int64,
	holderID string,
	seatNos []int,
	ttl time.Duration,
) (uuid.UUID, time.Time, error) {
	const op = "postgres.ReservationRepo.HoldSeats"

	var holdID uuid.UUID
	var expires time.Time

	err := r.inTx(ctx, func(ctx context.Context, db DB) error {
		var err error
		holdID, expires, err = r.holdSeatsCore(ctx, db, scheduleID, holderID, seatNos, ttl)
		return err
	})
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return holdID, expires, nil
}

// ConfirmHold promotes every seat of the hold to booked and creates the
// booking record. A hold past its expiry is reclaimed on the spot and
// reported as repository.ErrHoldExpired.
func (r *ReservationRepo) ConfirmHold(ctx context.Context, holdID uuid.UUID) (uuid.UUID, int64, error) {
	const op = "postgres.ReservationRepo.ConfirmHold"

	var bookingID uuid.UUID
	var scheduleID int64

	err := r.inTx(ctx, func(ctx context.Context, db DB) error {
		var err error
		bookingID, scheduleID, err = r.confirmHoldCore(ctx, db, holdID)
		return err
	})
	if err != nil {
		return uuid.Nil, scheduleID, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return bookingID, scheduleID, nil
}

// ReleaseHold returns every held seat of the hold to free.
// Returns repository.ErrNotFound when the hold no longer exists; callers
// treat that as success since release is idempotent.
func (r *ReservationRepo) ReleaseHold(ctx context.Context, holdID uuid.UUID) (int64, []int, error) {
	const op = "postgres.ReservationRepo.ReleaseHold"

	var scheduleID int64
	var released []int

	err := r.inTx(ctx, func(ctx context.Context, db DB) error {
		var err error
		scheduleID, released, err = r.releaseHoldCore(ctx, db, holdID, domain.EntryHoldReleased)
		return err
	})
	if err != nil {
		return 0, nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return scheduleID, released, nil
}

// ExpireHolds reclaims every hold past its expiry across all schedules and
// reports what it released. Holds whose seats were already confirmed or
// released lose the race harmlessly: the Held→Free precondition on the seat
// update means they contribute no seat transitions.
func (r *ReservationRepo) ExpireHolds(ctx context.Context) ([]domain.ExpiredHold, error) {
	const op = "postgres.ReservationRepo.ExpireHolds"

	var expired []domain.ExpiredHold

	err := r.inTx(ctx, func(ctx context.Context, db DB) error {
		expired = expired[:0]

		rows, err := db.Query(ctx,
			`SELECT id, schedule_id, holder_id
			 FROM holds
			 WHERE expires_at <= now()
			 ORDER BY schedule_id, id`,
		)
		if err != nil {
			return err
		}

		candidates, err := scanHoldRefs(rows)
		if err != nil {
			return err
		}

		for _, h := range candidates {
			seatNos, err := r.reclaimHold(ctx, db, h.scheduleID, h.id, h.holderID, domain.EntryHoldExpired)
			if err != nil {
				return err
			}
			expired = append(expired, domain.ExpiredHold{
				HoldID:     h.id,
				ScheduleID: h.scheduleID,
				HolderID:   h.holderID,
				SeatNos:    seatNos,
			})
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return expired, nil
}

// CancelBooking refunds a paid booking and frees its seats.
//
// Returns:
//   - repository.ErrNotFound if the booking does not exist.
//   - repository.ErrInvalidState if it is not in the paid state.
func (r *ReservationRepo) CancelBooking(ctx context.Context, bookingID uuid.UUID) (int64, error) {
	const op = "postgres.ReservationRepo.CancelBooking"

	var scheduleID int64

	err := r.inTx(ctx, func(ctx context.Context, db DB) error {
		var err error
		scheduleID, err = r.cancelBookingCore(ctx, db, bookingID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return scheduleID, nil
}

// inTx runs fn on the injected handle when present, otherwise on its own
// serializable transaction, restarted on serialization failure. fn must be
// safe to re-run.
func (r *ReservationRepo) inTx(ctx context.Context, fn func(ctx context.Context, db DB) error) error {
	if r.db != nil {
		return fn(ctx, r.db)
	}

	return runWithRetry(func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
			IsoLevel:   pgx.Serializable,
			AccessMode: pgx.ReadWrite,
		})
		if err != nil {
			return err
		}

		defer tx.Rollback(ctx)

		if err := fn(ctx, tx); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
}

func (r *ReservationRepo) holdSeatsCore(
	ctx context.Context,
	db DB,
	scheduleID int64,
	holderID string,
	seatNos []int,
	ttl time.Duration,
) (uuid.UUID, time.Time, error) {
	// A repeated seat number would update one row but count twice in the
	// all-or-nothing check, failing the hold for a free seat.
	seatNos = dedupeSeats(seatNos)

	var active bool
	if err := db.QueryRow(ctx,
		`SELECT active FROM schedules WHERE id = $1`,
		scheduleID,
	).Scan(&active); err != nil {
		return uuid.Nil, time.Time{}, err
	}
	if !active {
		return uuid.Nil, time.Time{}, repository.ErrScheduleInactive
	}

	// Reclaim expired holds on this schedule first so a retrying client is
	// not blocked waiting for the sweeper.
	rows, err := db.Query(ctx,
		`SELECT id, schedule_id, holder_id
		 FROM holds
		 WHERE schedule_id = $1 AND expires_at <= now()`,
		scheduleID,
	)
	if err != nil {
		return uuid.Nil, time.Time{}, err
	}

	stale, err := scanHoldRefs(rows)
	if err != nil {
		return uuid.Nil, time.Time{}, err
	}

	for _, h := range stale {
		if _, err := r.reclaimHold(ctx, db, h.scheduleID, h.id, h.holderID, domain.EntryHoldExpired); err != nil {
			return uuid.Nil, time.Time{}, err
		}
	}

	holdID := uuid.New()
	expires := time.Now().Add(ttl)

	if _, err := db.Exec(ctx,
		`INSERT INTO holds(id, schedule_id, holder_id, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		holdID, scheduleID, holderID, expires,
	); err != nil {
		return uuid.Nil, time.Time{}, err
	}

	got, err := db.Query(ctx,
		`UPDATE schedule_seats
		 SET status = 'held', hold_id = $3, hold_expires_at = $4
		 WHERE schedule_id = $1
		   AND seat_no = ANY($2)
		   AND status = 'free'
		 RETURNING seat_no`,
		scheduleID, pgSeatNos(seatNos), holdID, expires,
	)
	if err != nil {
		return uuid.Nil, time.Time{}, err
	}

	heldSeats, err := scanSeatNos(got)
	if err != nil {
		return uuid.Nil, time.Time{}, err
	}

	if len(heldSeats) != len(seatNos) {
		return uuid.Nil, time.Time{}, &repository.SeatsUnavailableError{
			SeatNos: missingSeats(seatNos, heldSeats),
		}
	}

	if err := appendLedger(ctx, db, domain.LedgerEntry{
		ScheduleID: scheduleID,
		Type:       domain.EntryHoldCreated,
		HoldID:     holdID,
		HolderID:   holderID,
		SeatNos:    seatNos,
	}); err != nil {
		return uuid.Nil, time.Time{}, err
	}

	return holdID, expires, nil
}

func (r *ReservationRepo) confirmHoldCore(
	ctx context.Context,
	db DB,
	holdID uuid.UUID,
) (uuid.UUID, int64, error) {
	var scheduleID int64
	var holderID string
	var expiresAt time.Time

	err := db.QueryRow(ctx,
		`SELECT schedule_id, holder_id, expires_at
		 FROM holds
		 WHERE id = $1`,
		holdID,
	).Scan(&scheduleID, &holderID, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, 0, repository.ErrNotFound
		}
		return uuid.Nil, 0, err
	}

	if !expiresAt.After(time.Now()) {
		// Expired but not yet swept: reclaim now, then report expiry.
		if _, err := r.reclaimHold(ctx, db, scheduleID, holdID, holderID, domain.EntryHoldExpired); err != nil {
			return uuid.Nil, scheduleID, err
		}
		return uuid.Nil, scheduleID, repository.ErrHoldExpired
	}

	bookingID := uuid.New()

	rows, err := db.Query(ctx,
		`UPDATE schedule_seats
		 SET status = 'booked', hold_id = NULL, hold_expires_at = NULL, booking_id = $2
		 WHERE hold_id = $1 AND status = 'held'
		 RETURNING seat_no`,
		holdID, bookingID,
	)
	if err != nil {
		return uuid.Nil, scheduleID, err
	}

	seatNos, err := scanSeatNos(rows)
	if err != nil {
		return uuid.Nil, scheduleID, err
	}

	if len(seatNos) == 0 {
		return uuid.Nil, scheduleID, repository.ErrNothingToConfirm
	}

	if _, err := db.Exec(ctx,
		`INSERT INTO bookings(id, schedule_id, holder_id, seat_nos, payment_status)
		 VALUES ($1, $2, $3, $4, 'paid')`,
		bookingID, scheduleID, holderID, pgSeatNos(seatNos),
	); err != nil {
		return uuid.Nil, scheduleID, err
	}

	if _, err := db.Exec(ctx, `DELETE FROM holds WHERE id = $1`, holdID); err != nil {
		return uuid.Nil, scheduleID, err
	}

	if err := appendLedger(ctx, db, domain.LedgerEntry{
		ScheduleID: scheduleID,
		Type:       domain.EntryHoldConfirmed,
		HoldID:     holdID,
		BookingID:  bookingID,
		HolderID:   holderID,
		SeatNos:    seatNos,
	}); err != nil {
		return uuid.Nil, scheduleID, err
	}

	return bookingID, scheduleID, nil
}

func (r *ReservationRepo) releaseHoldCore(
	ctx context.Context,
	db DB,
	holdID uuid.UUID,
	entryType domain.LedgerEntryType,
) (int64, []int, error) {
	var scheduleID int64
	var holderID string

	err := db.QueryRow(ctx,
		`SELECT schedule_id, holder_id FROM holds WHERE id = $1`,
		holdID,
	).Scan(&scheduleID, &holderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil, repository.ErrNotFound
		}
		return 0, nil, err
	}

	seatNos, err := r.reclaimHold(ctx, db, scheduleID, holdID, holderID, entryType)
	if err != nil {
		return 0, nil, err
	}

	return scheduleID, seatNos, nil
}

// reclaimHold frees the seats of one hold, appends the ledger entry, and
// deletes the hold row. The Held→Free precondition keeps it from touching
// seats that were confirmed in the meantime.
func (r *ReservationRepo) reclaimHold(
	ctx context.Context,
	db DB,
	scheduleID int64,
	holdID uuid.UUID,
	holderID string,
	entryType domain.LedgerEntryType,
) ([]int, error) {
	rows, err := db.Query(ctx,
		`UPDATE schedule_seats
		 SET status = 'free', hold_id = NULL, hold_expires_at = NULL
		 WHERE hold_id = $1 AND status = 'held'
		 RETURNING seat_no`,
		holdID,
	)
	if err != nil {
		return nil, err
	}

	seatNos, err := scanSeatNos(rows)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(ctx, `DELETE FROM holds WHERE id = $1`, holdID); err != nil {
		return nil, err
	}

	if len(seatNos) == 0 {
		return nil, nil
	}

	if err := appendLedger(ctx, db, domain.LedgerEntry{
		ScheduleID: scheduleID,
		Type:       entryType,
		HoldID:     holdID,
		HolderID:   holderID,
		SeatNos:    seatNos,
	}); err != nil {
		return nil, err
	}

	return seatNos, nil
}

func (r *ReservationRepo) cancelBookingCore(
	ctx context.Context,
	db DB,
	bookingID uuid.UUID,
) (int64, error) {
	var scheduleID int64
	var holderID string
	var rawSeats []int32

	err := db.QueryRow(ctx,
		`UPDATE bookings
		 SET payment_status = 'refunded'
		 WHERE id = $1 AND payment_status = 'paid'
		 RETURNING schedule_id, holder_id, seat_nos`,
		bookingID,
	).Scan(&scheduleID, &holderID, &rawSeats)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err2 := db.QueryRow(ctx,
				`SELECT EXISTS(SELECT 1 FROM bookings WHERE id = $1)`,
				bookingID,
			).Scan(&exists); err2 != nil {
				return 0, err2
			}
			if exists {
				return 0, repository.ErrInvalidState
			}
			return 0, repository.ErrNotFound
		}
		return 0, err
	}

	seatNos := fromPgSeatNos(rawSeats)

	if _, err := db.Exec(ctx,
		`UPDATE schedule_seats
		 SET status = 'free', booking_id = NULL
		 WHERE booking_id = $1 AND status = 'booked'`,
		bookingID,
	); err != nil {
		return 0, err
	}

	if err := appendLedger(ctx, db, domain.LedgerEntry{
		ScheduleID: scheduleID,
		Type:       domain.EntryBookingCancelled,
		BookingID:  bookingID,
		HolderID:   holderID,
		SeatNos:    seatNos,
	}); err != nil {
		return 0, err
	}

	return scheduleID, nil
}

type holdRef struct {
	id         uuid.UUID
	scheduleID int64
	holderID   string
}

func scanHoldRefs(rows pgx.Rows) ([]holdRef, error) {
	defer rows.Close()

	var out []holdRef
	for rows.Next() {
		var h holdRef
		if err := rows.Scan(&h.id, &h.scheduleID, &h.holderID); err != nil {
			return nil, err
		}
		out = append(out, h)
	}

	return out, rows.Err()
}

func scanSeatNos(rows pgx.Rows) ([]int, error) {
	defer rows.Close()

	var out []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}

	return out, rows.Err()
}

func dedupeSeats(seatNos []int) []int {
	seen := make(map[int]bool, len(seatNos))

	var out []int
	for _, n := range seatNos {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}

	return out
}

func missingSeats(requested, got []int) []int {
	have := make(map[int]bool, len(got))
	for _, n := range got {
		have[n] = true
	}

	var out []int
	for _, n := range requested {
		if !have[n] {
			out = append(out, n)
		}
	}

	return out
}

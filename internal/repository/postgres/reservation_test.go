package postgres

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridehall/busline/internal/domain"
	"github.com/ridehall/busline/internal/repository"
)

// fakeDB interprets the statements the reservation repo issues against an
// in-memory seat map, so the hold lifecycle runs without Postgres. Unknown
// statements error so SQL drift fails loudly.

type fakeSeat struct {
	status    domain.SeatStatus
	holdID    uuid.UUID
	bookingID uuid.UUID
}

type fakeHoldRow struct {
	scheduleID int64
	holderID   string
	expiresAt  time.Time
}

type fakeBooking struct {
	scheduleID int64
	holderID   string
	seatNos    []int
	status     string
}

type fakeEntry struct {
	entryType string
	seatNos   []int
}

type fakeDB struct {
	scheduleID int64
	active     bool
	totalSeats int
	seats      map[int]*fakeSeat
	holds      map[uuid.UUID]*fakeHoldRow
	bookings   map[uuid.UUID]*fakeBooking
	ledger     []fakeEntry
}

func newFakeDB(totalSeats int) *fakeDB {
	db := &fakeDB{
		scheduleID: 1,
		active:     true,
		totalSeats: totalSeats,
		seats:      make(map[int]*fakeSeat, totalSeats),
		holds:      make(map[uuid.UUID]*fakeHoldRow),
		bookings:   make(map[uuid.UUID]*fakeBooking),
	}
	for n := 1; n <= totalSeats; n++ {
		db.seats[n] = &fakeSeat{status: domain.SeatFree}
	}

	return db
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "INSERT INTO holds"):
		f.holds[args[0].(uuid.UUID)] = &fakeHoldRow{
			scheduleID: args[1].(int64),
			holderID:   args[2].(string),
			expiresAt:  args[3].(time.Time),
		}
	case strings.Contains(sql, "DELETE FROM holds"):
		delete(f.holds, args[0].(uuid.UUID))
	case strings.Contains(sql, "INSERT INTO ledger_entries"):
		f.ledger = append(f.ledger, fakeEntry{
			entryType: args[1].(string),
			seatNos:   fromPgSeatNos(args[5].([]int32)),
		})
	case strings.Contains(sql, "INSERT INTO bookings"):
		f.bookings[args[0].(uuid.UUID)] = &fakeBooking{
			scheduleID: args[1].(int64),
			holderID:   args[2].(string),
			seatNos:    fromPgSeatNos(args[3].([]int32)),
			status:     "paid",
		}
	case strings.Contains(sql, "WHERE booking_id = $1"):
		bookingID := args[0].(uuid.UUID)
		for _, s := range f.seats {
			if s.status == domain.SeatBooked && s.bookingID == bookingID {
				s.status = domain.SeatFree
				s.bookingID = uuid.Nil
			}
		}
	default:
		return pgconn.CommandTag{}, fmt.Errorf("fakeDB: unexpected exec: %s", sql)
	}

	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	switch {
	case strings.Contains(sql, "expires_at <= now()"):
		now := time.Now()
		var rows [][]any
		for id, h := range f.holds {
			if strings.Contains(sql, "schedule_id = $1") && h.scheduleID != args[0].(int64) {
				continue
			}
			if h.expiresAt.After(now) {
				continue
			}
			rows = append(rows, []any{id, h.scheduleID, h.holderID})
		}
		return &fakeRows{rows: rows}, nil

	case strings.Contains(sql, "SET status = 'held'"):
		holdID := args[2].(uuid.UUID)
		var rows [][]any
		for _, n32 := range args[1].([]int32) {
			s, ok := f.seats[int(n32)]
			if !ok || s.status != domain.SeatFree {
				continue
			}
			s.status = domain.SeatHeld
			s.holdID = holdID
			rows = append(rows, []any{int(n32)})
		}
		return &fakeRows{rows: rows}, nil

	case strings.Contains(sql, "SET status = 'booked'"):
		holdID := args[0].(uuid.UUID)
		bookingID := args[1].(uuid.UUID)
		var rows [][]any
		for n := 1; n <= f.totalSeats; n++ {
			s := f.seats[n]
			if s.status == domain.SeatHeld && s.holdID == holdID {
				s.status = domain.SeatBooked
				s.holdID = uuid.Nil
				s.bookingID = bookingID
				rows = append(rows, []any{n})
			}
		}
		return &fakeRows{rows: rows}, nil

	case strings.Contains(sql, "SET status = 'free'"):
		holdID := args[0].(uuid.UUID)
		var rows [][]any
		for n := 1; n <= f.totalSeats; n++ {
			s := f.seats[n]
			if s.status == domain.SeatHeld && s.holdID == holdID {
				s.status = domain.SeatFree
				s.holdID = uuid.Nil
				rows = append(rows, []any{n})
			}
		}
		return &fakeRows{rows: rows}, nil
	}

	return nil, fmt.Errorf("fakeDB: unexpected query: %s", sql)
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	switch {
	case strings.Contains(sql, "SELECT active FROM schedules"):
		if args[0].(int64) != f.scheduleID {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{vals: []any{f.active}}

	case strings.Contains(sql, "schedule_id, holder_id, expires_at"):
		h, ok := f.holds[args[0].(uuid.UUID)]
		if !ok {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{vals: []any{h.scheduleID, h.holderID, h.expiresAt}}

	case strings.Contains(sql, "SELECT schedule_id, holder_id FROM holds"):
		h, ok := f.holds[args[0].(uuid.UUID)]
		if !ok {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{vals: []any{h.scheduleID, h.holderID}}

	case strings.Contains(sql, "SET payment_status = 'refunded'"):
		b, ok := f.bookings[args[0].(uuid.UUID)]
		if !ok || b.status != "paid" {
			return fakeRow{err: pgx.ErrNoRows}
		}
		b.status = "refunded"
		return fakeRow{vals: []any{b.scheduleID, b.holderID, pgSeatNos(b.seatNos)}}

	case strings.Contains(sql, "SELECT EXISTS"):
		_, ok := f.bookings[args[0].(uuid.UUID)]
		return fakeRow{vals: []any{ok}}
	}

	return fakeRow{err: fmt.Errorf("fakeDB: unexpected query row: %s", sql)}
}

func (f *fakeDB) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	return nil
}

func (f *fakeDB) lastEntry(t *testing.T) fakeEntry {
	t.Helper()
	require.NotEmpty(t, f.ledger)
	return f.ledger[len(f.ledger)-1]
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i := range dest {
		if err := scanInto(dest[i], r.vals[i]); err != nil {
			return err
		}
	}
	return nil
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx <= len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	for i := range dest {
		if err := scanInto(dest[i], row[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.idx-1], nil
}

func scanInto(dest, val any) error {
	switch d := dest.(type) {
	case *int:
		*d = val.(int)
	case *int64:
		*d = val.(int64)
	case *string:
		*d = val.(string)
	case *bool:
		*d = val.(bool)
	case *time.Time:
		*d = val.(time.Time)
	case *uuid.UUID:
		*d = val.(uuid.UUID)
	case *[]int32:
		*d = val.([]int32)
	default:
		return fmt.Errorf("fakeDB: unsupported scan dest %T", dest)
	}
	return nil
}

func testRepo(db *fakeDB) *ReservationRepo {
	return (&ReservationRepo{}).With(db)
}

func TestHoldSeats_ConflictNamesBlockingSeats(t *testing.T) {
	db := newFakeDB(4)
	db.seats[2].status = domain.SeatHeld
	db.seats[2].holdID = uuid.New()

	repo := testRepo(db)

	_, _, err := repo.HoldSeats(context.Background(), 1, "rider-1", []int{1, 2, 3}, time.Minute)

	var unavailable *repository.SeatsUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []int{2}, unavailable.SeatNos)
	assert.ErrorIs(t, err, repository.ErrSeatsUnavailable)
}

func TestHoldSeats_DuplicateSeatNumbersCollapse(t *testing.T) {
	db := newFakeDB(6)
	repo := testRepo(db)

	holdID, _, err := repo.HoldSeats(context.Background(), 1, "rider-1", []int{5, 5}, time.Minute)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, holdID)

	assert.Equal(t, domain.SeatHeld, db.seats[5].status)
	assert.Equal(t, holdID, db.seats[5].holdID)

	entry := db.lastEntry(t)
	assert.Equal(t, string(domain.EntryHoldCreated), entry.entryType)
	assert.Equal(t, []int{5}, entry.seatNos)
}

func TestHoldSeats_ReclaimsExpiredHoldOnSchedule(t *testing.T) {
	db := newFakeDB(3)
	staleID := uuid.New()
	db.holds[staleID] = &fakeHoldRow{
		scheduleID: 1,
		holderID:   "rider-1",
		expiresAt:  time.Now().Add(-time.Minute),
	}
	db.seats[1].status = domain.SeatHeld
	db.seats[1].holdID = staleID

	repo := testRepo(db)

	holdID, _, err := repo.HoldSeats(context.Background(), 1, "rider-2", []int{1}, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, domain.SeatHeld, db.seats[1].status)
	assert.Equal(t, holdID, db.seats[1].holdID)
	assert.NotContains(t, db.holds, staleID)
}

func TestReleaseHold_IdempotentTwice(t *testing.T) {
	db := newFakeDB(4)
	repo := testRepo(db)

	holdID, _, err := repo.HoldSeats(context.Background(), 1, "rider-1", []int{1, 2}, time.Minute)
	require.NoError(t, err)

	_, released, err := repo.ReleaseHold(context.Background(), holdID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2}, released)
	assert.Equal(t, domain.SeatFree, db.seats[1].status)
	assert.Equal(t, domain.SeatFree, db.seats[2].status)
	assert.Equal(t, string(domain.EntryHoldReleased), db.lastEntry(t).entryType)

	_, _, err = repo.ReleaseHold(context.Background(), holdID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, domain.SeatFree, db.seats[1].status)
	assert.Equal(t, domain.SeatFree, db.seats[2].status)
}

func TestReleaseHold_NeverTouchesBookedSeats(t *testing.T) {
	db := newFakeDB(4)
	repo := testRepo(db)

	holdID, _, err := repo.HoldSeats(context.Background(), 1, "rider-1", []int{3}, time.Minute)
	require.NoError(t, err)

	bookingID, _, err := repo.ConfirmHold(context.Background(), holdID)
	require.NoError(t, err)
	require.Equal(t, domain.SeatBooked, db.seats[3].status)
	require.Equal(t, []int{3}, db.bookings[bookingID].seatNos)

	_, _, err = repo.ReleaseHold(context.Background(), holdID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, domain.SeatBooked, db.seats[3].status)
}

func TestConfirmHold_ExpiredHoldIsReclaimed(t *testing.T) {
	db := newFakeDB(4)
	repo := testRepo(db)

	holdID, _, err := repo.HoldSeats(context.Background(), 1, "rider-1", []int{1}, time.Minute)
	require.NoError(t, err)

	db.holds[holdID].expiresAt = time.Now().Add(-time.Second)

	_, _, err = repo.ConfirmHold(context.Background(), holdID)
	assert.ErrorIs(t, err, repository.ErrHoldExpired)
	assert.Equal(t, domain.SeatFree, db.seats[1].status)
	assert.NotContains(t, db.holds, holdID)
	assert.Equal(t, string(domain.EntryHoldExpired), db.lastEntry(t).entryType)
}

func TestCancelBooking_RefundsAndFreesSeats(t *testing.T) {
	db := newFakeDB(4)
	repo := testRepo(db)

	holdID, _, err := repo.HoldSeats(context.Background(), 1, "rider-1", []int{1, 2}, time.Minute)
	require.NoError(t, err)

	bookingID, _, err := repo.ConfirmHold(context.Background(), holdID)
	require.NoError(t, err)
	require.Equal(t, "paid", db.bookings[bookingID].status)

	scheduleID, err := repo.CancelBooking(context.Background(), bookingID)
	require.NoError(t, err)

	assert.Equal(t, int64(1), scheduleID)
	assert.Equal(t, "refunded", db.bookings[bookingID].status)
	assert.Equal(t, domain.SeatFree, db.seats[1].status)
	assert.Equal(t, domain.SeatFree, db.seats[2].status)
	assert.Equal(t, string(domain.EntryBookingCancelled), db.lastEntry(t).entryType)
}

func TestCancelBooking_OnlyPaidBookings(t *testing.T) {
	db := newFakeDB(4)
	repo := testRepo(db)

	holdID, _, err := repo.HoldSeats(context.Background(), 1, "rider-1", []int{1}, time.Minute)
	require.NoError(t, err)

	bookingID, _, err := repo.ConfirmHold(context.Background(), holdID)
	require.NoError(t, err)

	_, err = repo.CancelBooking(context.Background(), bookingID)
	require.NoError(t, err)

	_, err = repo.CancelBooking(context.Background(), bookingID)
	assert.ErrorIs(t, err, repository.ErrInvalidState)

	_, err = repo.CancelBooking(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type LedgerEntryType string

const (
	EntryHoldCreated      LedgerEntryType = "hold-created"
	EntryHoldConfirmed    LedgerEntryType = "hold-confirmed"
	EntryHoldReleased     LedgerEntryType = "hold-released"
	EntryHoldExpired      LedgerEntryType = "hold-expired"
	EntryBookingCancelled LedgerEntryType = "booking-cancelled"
)

// LedgerEntry is one committed seat-state transition. Entries for a schedule
// carry a gapless, monotonically increasing Seq and are the source of truth
// from which the seat map can be rebuilt.
type LedgerEntry struct {
	ID         int64
	ScheduleID int64
	Seq        int64
	Type       LedgerEntryType
	HoldID     uuid.UUID
	BookingID  uuid.UUID
	HolderID   string
	SeatNos    []int
	RecordedAt time.Time
}

// ReplaySeatMap folds ledger entries over an all-free seat map of
// totalSeats seats. It returns an error if any entry names a seat outside
// 1..totalSeats or demands an illegal state transition, which indicates a
// corrupt ledger rather than a recoverable condition.
func ReplaySeatMap(totalSeats int, entries []LedgerEntry) (map[int]SeatStatus, error) {
	seats := make(map[int]SeatStatus, totalSeats)
	for n := 1; n <= totalSeats; n++ {
		seats[n] = SeatFree
	}

	for _, e := range entries {
		from, to, err := transition(e.Type)
		if err != nil {
			return nil, fmt.Errorf("ledger seq %d: %w", e.Seq, err)
		}

		for _, n := range e.SeatNos {
			cur, ok := seats[n]
			if !ok {
				return nil, fmt.Errorf("ledger seq %d: seat %d outside 1..%d", e.Seq, n, totalSeats)
			}
			if cur != from {
				return nil, fmt.Errorf(
					"ledger seq %d: seat %d is %s, %s requires %s",
					e.Seq, n, cur, e.Type, from,
				)
			}
			seats[n] = to
		}
	}

	return seats, nil
}

func transition(t LedgerEntryType) (from, to SeatStatus, err error) {
	switch t {
	case EntryHoldCreated:
		return SeatFree, SeatHeld, nil
	case EntryHoldConfirmed:
		return SeatHeld, SeatBooked, nil
	case EntryHoldReleased, EntryHoldExpired:
		return SeatHeld, SeatFree, nil
	case EntryBookingCancelled:
		return SeatBooked, SeatFree, nil
	default:
		return "", "", fmt.Errorf("unknown entry type %q", t)
	}
}

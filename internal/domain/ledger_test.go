package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(seq int64, t LedgerEntryType, seats ...int) LedgerEntry {
	return LedgerEntry{
		ScheduleID: 1,
		Seq:        seq,
		Type:       t,
		HoldID:     uuid.New(),
		SeatNos:    seats,
	}
}

func TestReplaySeatMap_Empty(t *testing.T) {
	seats, err := ReplaySeatMap(3, nil)

	require.NoError(t, err)
	assert.Equal(t, map[int]SeatStatus{1: SeatFree, 2: SeatFree, 3: SeatFree}, seats)
}

func TestReplaySeatMap_HoldConfirmExpire(t *testing.T) {
	// Two seats {1,2}: caller1 holds {1}, caller2 holds {2}; caller1
	// confirms, caller2's hold expires. Seat 1 ends booked, seat 2 free.
	entries := []LedgerEntry{
		entry(1, EntryHoldCreated, 1),
		entry(2, EntryHoldCreated, 2),
		entry(3, EntryHoldConfirmed, 1),
		entry(4, EntryHoldExpired, 2),
	}

	seats, err := ReplaySeatMap(2, entries)

	require.NoError(t, err)
	assert.Equal(t, SeatBooked, seats[1])
	assert.Equal(t, SeatFree, seats[2])
}

func TestReplaySeatMap_ReleaseThenRehold(t *testing.T) {
	entries := []LedgerEntry{
		entry(1, EntryHoldCreated, 1, 2),
		entry(2, EntryHoldReleased, 1, 2),
		entry(3, EntryHoldCreated, 2),
		entry(4, EntryHoldConfirmed, 2),
	}

	seats, err := ReplaySeatMap(2, entries)

	require.NoError(t, err)
	assert.Equal(t, SeatFree, seats[1])
	assert.Equal(t, SeatBooked, seats[2])
}

func TestReplaySeatMap_CancelledBookingFreesSeats(t *testing.T) {
	entries := []LedgerEntry{
		entry(1, EntryHoldCreated, 3, 4),
		entry(2, EntryHoldConfirmed, 3, 4),
		entry(3, EntryBookingCancelled, 3, 4),
	}

	seats, err := ReplaySeatMap(4, entries)

	require.NoError(t, err)
	assert.Equal(t, SeatFree, seats[3])
	assert.Equal(t, SeatFree, seats[4])
}

func TestReplaySeatMap_IllegalTransition(t *testing.T) {
	tests := []struct {
		name    string
		entries []LedgerEntry
	}{
		{
			name: "confirm without hold",
			entries: []LedgerEntry{
				entry(1, EntryHoldConfirmed, 1),
			},
		},
		{
			name: "double hold",
			entries: []LedgerEntry{
				entry(1, EntryHoldCreated, 1),
				entry(2, EntryHoldCreated, 1),
			},
		},
		{
			name: "cancel a held seat",
			entries: []LedgerEntry{
				entry(1, EntryHoldCreated, 1),
				entry(2, EntryBookingCancelled, 1),
			},
		},
		{
			name: "seat out of range",
			entries: []LedgerEntry{
				entry(1, EntryHoldCreated, 9),
			},
		},
		{
			name: "unknown type",
			entries: []LedgerEntry{
				entry(1, LedgerEntryType("seat-teleported"), 1),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReplaySeatMap(2, tt.entries)
			require.Error(t, err)
		})
	}
}

func TestReplaySeatMap_Deterministic(t *testing.T) {
	entries := []LedgerEntry{
		entry(1, EntryHoldCreated, 1, 2, 3),
		entry(2, EntryHoldReleased, 1, 2, 3),
		entry(3, EntryHoldCreated, 2),
		entry(4, EntryHoldConfirmed, 2),
		entry(5, EntryHoldCreated, 1),
		entry(6, EntryHoldExpired, 1),
	}

	a, err := ReplaySeatMap(5, entries)
	require.NoError(t, err)
	b, err := ReplaySeatMap(5, entries)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

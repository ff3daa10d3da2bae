package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ridehall/busline/internal/domain"
)

// appendLedger writes one ledger entry with the next per-schedule sequence
// number. Callers run it on the same transaction as the seat-map mutation it
// records; the serializable isolation level keeps the MAX(seq)+1 assignment
// free of duplicates.
func appendLedger(ctx context.Context, db DB, e domain.LedgerEntry) error {
	const op = "postgres.appendLedger"

	_, err := db.Exec(ctx,
		`INSERT INTO ledger_entries(schedule_id, seq, entry_type, hold_id, booking_id, holder_id, seat_nos)
		 SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5, $6
		 FROM ledger_entries
		 WHERE schedule_id = $1`,
		e.ScheduleID,
		string(e.Type),
		nullableUUID(e.HoldID),
		nullableUUID(e.BookingID),
		e.HolderID,
		pgSeatNos(e.SeatNos),
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

func nullableUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

func pgSeatNos(seatNos []int) []int32 {
	out := make([]int32, len(seatNos))
	for i, n := range seatNos {
		out[i] = int32(n)
	}
	return out
}

func fromPgSeatNos(in []int32) []int {
	out := make([]int, len(in))
	for i, n := range in {
		out[i] = int(n)
	}
	return out
}

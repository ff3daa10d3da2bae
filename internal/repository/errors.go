package repository

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrSeatsUnavailable = errors.New("some seats unavailable")
	ErrHoldExpired      = errors.New("hold expired")
	ErrNothingToConfirm = errors.New("nothing to confirm")
	ErrInvalidState     = errors.New("invalid seat state for operation")
	ErrScheduleInactive = errors.New("schedule is not active")
)

// SeatsUnavailableError names the seats that blocked an all-or-nothing hold.
// It matches ErrSeatsUnavailable under errors.Is.
type SeatsUnavailableError struct {
	SeatNos []int
}

func (e *SeatsUnavailableError) Error() string {
	return fmt.Sprintf("seats unavailable: %v", e.SeatNos)
}

func (e *SeatsUnavailableError) Is(target error) bool {
	return target == ErrSeatsUnavailable
}

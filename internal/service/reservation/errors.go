package reservation

import (
	"errors"
	"fmt"
)

var (
	ErrSeatsUnavailable     = errors.New("some seats are unavailable")
	ErrHoldNotFound         = errors.New("hold not found")
	ErrScheduleNotFound     = errors.New("schedule not found")
	ErrScheduleInactive     = errors.New("schedule is not active")
	ErrBookingNotFound      = errors.New("booking not found")
	ErrBookingNotRefundable = errors.New("booking is not refundable")
	ErrRateLimited          = errors.New("rate limited")
)

// SeatsUnavailableError reports which requested seats blocked the hold.
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

// RateLimitedError carries the retry hint for throttled hold requests.
// It matches ErrRateLimited under errors.Is.
type RateLimitedError struct {
	RetryAfter string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

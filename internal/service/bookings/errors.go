package bookings

import "errors"

var ErrBookingNotFound = errors.New("booking not found")

package query

import "errors"

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrRouteNotFound    = errors.New("route not found")
	ErrHoldNotFound     = errors.New("hold not found")
)

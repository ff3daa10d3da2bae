package catalog

import "errors"

var (
	ErrRouteNotFound    = errors.New("route does not exist")
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrScheduleConflict = errors.New("schedule already exists")
	ErrInvalidCapacity  = errors.New("total seats must be positive")
)

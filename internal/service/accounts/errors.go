package accounts

import "errors"

var (
	ErrEmailTaken        = errors.New("email already registered")
	ErrPassengerNotFound = errors.New("passenger not found")
	ErrWeakPassword      = errors.New("password too short")
)

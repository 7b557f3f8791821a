package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidTimezone = errors.New("invalid timezone")
)

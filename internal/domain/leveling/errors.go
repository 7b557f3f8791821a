package leveling

import "errors"

// Sentinel kinds for leveling errors.
var (
	ErrInvalidAmount = errors.New("invalid xp amount")
	ErrInvalidLevel  = errors.New("invalid level")
)

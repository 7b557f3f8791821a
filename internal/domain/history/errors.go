package history

import (
	"errors"

	"github.com/okian/profilequest/internal/domain/leveling"
)

// Sentinel kinds for history errors.
var (
	ErrInvalidRange = errors.New("invalid range")
	// ErrInvalidAmount is shared with the leveling engine so callers can match
	// one sentinel for bad XP values.
	ErrInvalidAmount = leveling.ErrInvalidAmount
)

package questgen

import "errors"

// Sentinel errors.
var (
	ErrGeneration   = errors.New("quest generation failed")
	ErrInvalidDraft = errors.New("invalid quest")
)

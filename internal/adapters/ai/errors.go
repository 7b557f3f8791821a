package ai

import "errors"

// Sentinel errors.
var (
	ErrDisabled    = errors.New("ai client not configured")
	ErrUpstream    = errors.New("ai provider request failed")
	ErrEmptyResult = errors.New("ai provider returned no content")
	ErrBadDataURL  = errors.New("malformed data url")
)

package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("already exists")
	ErrAlreadyCompleted = errors.New("quest already completed")
)

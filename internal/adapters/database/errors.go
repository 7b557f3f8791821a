package database

import "errors"

// Sentinel kinds for database errors.
var (
	ErrOpen           = errors.New("open database")
	ErrMigrate        = errors.New("migrate database")
	ErrUnknownDialect = errors.New("unknown dialect")
)

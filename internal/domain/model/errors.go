package model

import "errors"

// ErrInvalidStatus is returned for unknown quest status filters.
var ErrInvalidStatus = errors.New("invalid quest status")

package store

import "errors"

// Sentinel kinds for store errors.
var (
	ErrUnknownUser = errors.New("unknown user")
)

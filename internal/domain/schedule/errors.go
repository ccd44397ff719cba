package schedule

import (
	"errors"
)

// Sentinel kinds for master data errors. All are startup-fatal.
var (
	ErrStartNotSet       = errors.New("contest start time is not set")
	ErrPeriodNotSet      = errors.New("contest period is not set")
	ErrInvalidCheckpoint = errors.New("invalid checkpoint definition")
	ErrInvalidTask       = errors.New("invalid task definition")
	ErrLoadMasterData    = errors.New("load master data failed")
)

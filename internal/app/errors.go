package service

import "errors"

// Sentinel kinds for request outcomes. The HTTP layer maps these onto the
// documented status codes and bodies.
var (
	// ErrNotFound covers bad tokens, malformed arguments and task times
	// outside the known schedule.
	ErrNotFound = errors.New("not found")

	// ErrBeforeStart marks requests arriving before the contest start.
	ErrBeforeStart = errors.New("before contest start")

	// ErrGameFinished marks requests arriving after the contest period.
	ErrGameFinished = errors.New("game finished")

	// ErrTimeLimited is the contention outcome of the rate-limit
	// protocol; it is never retried server-side.
	ErrTimeLimited = errors.New("time limit collision")

	// ErrNoTaskAtTime means no task activates at the requested time.
	ErrNoTaskAtTime = errors.New("no task at requested time")
)

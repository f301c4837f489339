package model

import "errors"

var (
	// ErrCommandRequired is returned when a session creation request names no program.
	ErrCommandRequired = errors.New("command or file is required")

	// ErrInvalidSize is returned for a window size outside 1..65535.
	ErrInvalidSize = errors.New("cols and rows must be between 1 and 65535")

	// ErrInvalidSignal is returned when a signal name or number is not recognised.
	ErrInvalidSignal = errors.New("unknown signal")

	// ErrSessionNotFound is returned when a session is not found.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionNotRunning is returned when a live-only operation targets a finished session.
	ErrSessionNotRunning = errors.New("session is not running")

	// ErrConcurrencyLimit is returned when the maximum number of concurrent sessions is reached.
	ErrConcurrencyLimit = errors.New("concurrent session limit exceeded")
)

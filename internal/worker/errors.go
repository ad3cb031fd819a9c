package worker

import "errors"

var (
	// ErrStopped is returned for requests made after the worker exited.
	ErrStopped = errors.New("worker: stopped")

	// ErrNoSource is returned when a load names no source and none is configured.
	ErrNoSource = errors.New("worker: no catalogue source")
)

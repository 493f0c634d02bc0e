package models

import "errors"

var (
	// ErrSignalNotFound is returned when a signal id does not exist.
	ErrSignalNotFound = errors.New("signal not found")

	// ErrSignalAlreadyAnalyzed is returned when a signal has already been
	// claimed. It is terminal; retrying cannot succeed.
	ErrSignalAlreadyAnalyzed = errors.New("signal already analyzed")

	// ErrStoreUnreachable marks a failure to reach the backing store.
	ErrStoreUnreachable = errors.New("store unreachable")
)

package search

import "errors"

var (
	// ErrMissingSummary indicates the engine output ended without a summary line.
	ErrMissingSummary = errors.New("ripgrep output has no summary")

	// ErrLock indicates a search could not obtain a slot in the gate.
	ErrLock = errors.New("failed to acquire search lock")
)

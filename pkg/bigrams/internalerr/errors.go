package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")

	// Model preconditions
	ErrEmptyDistribution = errors.New("distribution has no items")
	ErrNonPositiveCount  = errors.New("smoothed count must be positive")
	ErrEmptySequence     = errors.New("token sequence is empty")
	ErrUnknownContext    = errors.New("no distribution for context token")
	ErrGenerationStalled = errors.New("no usable token could be sampled")
)

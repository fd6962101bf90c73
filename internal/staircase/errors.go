package staircase

import "errors"

var (
	// ErrInvalidConfiguration is returned by New and ParseCeilingBehaviour.
	ErrInvalidConfiguration = errors.New("invalid staircase configuration")

	// ErrInvariantViolation is returned by RecordResponse when both the
	// step-down and step-up rules are satisfied by the same response.
	ErrInvariantViolation = errors.New("staircase invariant violation")
)

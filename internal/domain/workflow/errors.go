package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a trigger is not configured for the current state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned by Build when a configured state is unknown
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when every guard for a configured trigger rejects it
	ErrGuardFailed = errors.New("guard condition failed")
)

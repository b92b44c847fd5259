package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a trigger is not permitted in the current state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrTerminal is returned when a trigger is fired after the run has finished
	ErrTerminal = errors.New("run already finished")
)

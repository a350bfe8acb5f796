package workflow

import "context"

// StateMachine tracks the current state of one record and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger would succeed in the current state
	CanFire(ctx context.Context, trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed.
	// Failures are reported as *TransitionError.
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers configured for the current state
	PermittedTriggers() []Trigger
}

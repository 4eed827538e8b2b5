package contract

import "errors"

var (
	// Recoverable at the runtime boundary: recorded into state, cycle continues.
	ErrProvider     = errors.New("external provider call failed")
	ErrPrecondition = errors.New("worker precondition not met")
	ErrTimeout      = errors.New("worker execution timed out")

	// Recovered by forced re-decision, then finish after repeated violations.
	ErrRouting = errors.New("invalid routing decision")

	// Not recoverable: terminates the session with a failed status.
	ErrRuntimeFault = errors.New("conversation state fault")

	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrValidation      = errors.New("validation failed")

	ErrProfileNotFound = errors.New("candidate profile not found")
)

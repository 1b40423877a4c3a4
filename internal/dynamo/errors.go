package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for solver operations.
var (
	// ErrModelDomain indicates a state/control pair outside the model's
	// validity region. Not retried: it aborts the current solve.
	ErrModelDomain = errors.New("nloc: state outside model domain")

	// ErrInvalidState indicates a state vector containing NaN or Inf.
	ErrInvalidState = errors.New("nloc: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates mismatched state/control dimensions.
	ErrDimensionMismatch = errors.New("nloc: dimension mismatch")

	// ErrHorizon indicates a horizon of length zero.
	ErrHorizon = errors.New("nloc: horizon must contain at least one timestep")
)

// ModelError wraps a model evaluation failure with the timestep at which
// it occurred.
type ModelError struct {
	Step    int
	State   State
	Wrapped error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model evaluation failed at step %d: %v", e.Step, e.Wrapped)
}

func (e *ModelError) Unwrap() error {
	return e.Wrapped
}
